package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/repository"
)

// EnrollmentService lets learners join courses and track progress. Course
// content is only handed out once a professor has verified it.
type EnrollmentService struct {
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
	logger      *slog.Logger
}

func NewEnrollmentService(enrollments repository.EnrollmentRepository, courses repository.CourseRepository, logger *slog.Logger) *EnrollmentService {
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		logger:      logger,
	}
}

// Enroll joins the caller to a course. Enrolling twice returns the existing
// enrollment with already set to true.
func (s *EnrollmentService) Enroll(ctx context.Context, email, cid string) (enrollment *model.Enrollment, already bool, err error) {
	email = model.NormalizeEmail(email)
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return nil, false, apperror.ValidationFailed("courseId", "courseId is required")
	}

	if existing, err := s.enrollments.GetEnrollment(ctx, email, cid); err == nil {
		return &existing.Enrollment, true, nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("service/enrollment: %w", err)
	}

	if _, err := s.courses.GetCourse(ctx, cid); err != nil {
		return nil, false, err
	}

	e := &model.Enrollment{CID: cid, UserEmail: email, CompletedChapters: []int{}}
	if err := s.enrollments.CreateEnrollment(ctx, e); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Concurrent enroll from the same user.
			existing, getErr := s.enrollments.GetEnrollment(ctx, email, cid)
			if getErr != nil {
				return nil, false, fmt.Errorf("service/enrollment: %w", getErr)
			}
			return &existing.Enrollment, true, nil
		}
		return nil, false, fmt.Errorf("service/enrollment: enrolling: %w", err)
	}

	s.logger.Info("user enrolled", slog.String("cid", cid))
	return e, false, nil
}

// Get returns one enrollment with its course. Unverified courses are
// withheld with a Forbidden that carries the current review status.
func (s *EnrollmentService) Get(ctx context.Context, email, cid string) (*model.LearnerEnrollment, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return nil, apperror.ValidationFailed("courseId", "courseId is required")
	}

	ec, err := s.enrollments.GetEnrollment(ctx, model.NormalizeEmail(email), cid)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("enrollment not found")
		}
		return nil, fmt.Errorf("service/enrollment: %w", err)
	}

	if status := ec.Course.Status(); status != model.ReviewVerified {
		return nil, apperror.ForbiddenWith("course content is pending verification",
			map[string]any{"reviewStatus": string(status)})
	}
	view := ec.ForLearner()
	return &view, nil
}

// List returns every enrollment of the caller. Courses that are not yet
// verified are listed without their outline or content.
func (s *EnrollmentService) List(ctx context.Context, email string) ([]model.LearnerEnrollment, error) {
	list, err := s.enrollments.ListEnrollments(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: listing: %w", err)
	}
	out := make([]model.LearnerEnrollment, 0, len(list))
	for _, ec := range list {
		out = append(out, ec.ForLearner())
	}
	return out, nil
}

// UpdateProgress replaces the set of completed chapter indexes.
func (s *EnrollmentService) UpdateProgress(ctx context.Context, email, cid string, completed []int) (*model.Enrollment, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return nil, apperror.ValidationFailed("courseId", "courseId is required")
	}

	seen := make(map[int]bool, len(completed))
	chapters := make([]int, 0, len(completed))
	for _, ch := range completed {
		if ch < 0 {
			return nil, apperror.ValidationFailed("completedChapters", "chapter indexes must not be negative")
		}
		if !seen[ch] {
			seen[ch] = true
			chapters = append(chapters, ch)
		}
	}

	e, err := s.enrollments.UpdateCompletedChapters(ctx, model.NormalizeEmail(email), cid, chapters)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("enrollment not found")
		}
		return nil, fmt.Errorf("service/enrollment: updating progress: %w", err)
	}
	return e, nil
}
