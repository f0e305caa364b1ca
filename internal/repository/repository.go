// Package repository declares the persistence interfaces used by the
// service layer. The sqlite subpackage implements all of them on one *DB.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sakif/learnify/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores accounts. Emails are compared case-insensitively;
// CreateUser returns an apperror Conflict when the email is taken.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserName(ctx context.Context, email, name string) (*model.User, error)
	UpsertUserByEmail(ctx context.Context, user *model.User) error
}

// SessionRepository stores session token hashes.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	// GetSession returns NotFound when the hash is unknown or the row expired
	// at or before now.
	GetSession(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error)
	// DeleteSession is idempotent.
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type ProfessorRepository interface {
	ListProfessors(ctx context.Context) ([]model.Professor, error)
	UpsertProfessor(ctx context.Context, professor *model.Professor) error
}

// CourseRepository stores courses and applies review transitions.
//
// The Transition/Replace methods are conditional updates: they only touch
// the row while its review_status is one of from, and report whether a row
// was changed. Callers re-read on false to find out why.
type CourseRepository interface {
	CreateCourse(ctx context.Context, course *model.Course) error
	GetCourse(ctx context.Context, cid string) (*model.Course, error)
	ListCoursesByOwner(ctx context.Context, ownerEmail string, opts ListOptions) ([]model.Course, error)
	GetCourseByReviewToken(ctx context.Context, tokenHash string) (*model.Course, error)
	FindVerifiedDuplicate(ctx context.Context, cid, name, category string) (*model.Course, error)
	TransitionReview(ctx context.Context, cid string, from []model.ReviewStatus, update model.ReviewUpdate) (bool, error)
	TransitionReviewByToken(ctx context.Context, tokenHash string, update model.ReviewUpdate) (bool, error)
	ReplaceContent(ctx context.Context, cid string, from []model.ReviewStatus, content json.RawMessage) (bool, error)
}

// EnrollmentRepository stores course enrollments, one per (user, course).
type EnrollmentRepository interface {
	CreateEnrollment(ctx context.Context, enrollment *model.Enrollment) error
	GetEnrollment(ctx context.Context, userEmail, cid string) (*model.EnrolledCourse, error)
	ListEnrollments(ctx context.Context, userEmail string) ([]model.EnrolledCourse, error)
	UpdateCompletedChapters(ctx context.Context, userEmail, cid string, chapters []int) (*model.Enrollment, error)
}
