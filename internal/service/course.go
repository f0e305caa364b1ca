// Package service contains the business logic of learnify.
//
//	Handler (HTTP) → Service (rules, guards, orchestration) → Repository (SQL)
//
// Services take primitives and model types, never *http.Request, and
// return apperror values; only the handler layer knows status codes.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/generator"
	"github.com/sakif/learnify/internal/metrics"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// CourseService manages course outlines and their generated content.
type CourseService struct {
	courses  repository.CourseRepository
	pipeline *generator.Pipeline
	logger   *slog.Logger
}

func NewCourseService(courses repository.CourseRepository, pipeline *generator.Pipeline, logger *slog.Logger) *CourseService {
	return &CourseService{
		courses:  courses,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Create stores a new draft course for owner. The layout has already been
// validated at the boundary.
func (s *CourseService) Create(ctx context.Context, owner string, layout model.CourseLayout) (*model.Course, error) {
	layout.Name = strings.TrimSpace(layout.Name)
	layout.Category = strings.TrimSpace(layout.Category)
	layout.Level = strings.TrimSpace(layout.Level)
	if layout.Name == "" {
		return nil, apperror.ValidationFailed("name", "course name is required")
	}
	if layout.Category == "" {
		return nil, apperror.ValidationFailed("category", "course category is required")
	}
	if layout.NoOfChapters == 0 {
		layout.NoOfChapters = len(layout.Chapters)
	}

	course := &model.Course{
		OwnerEmail:   model.NormalizeEmail(owner),
		Name:         layout.Name,
		Description:  strings.TrimSpace(layout.Description),
		Category:     layout.Category,
		Level:        layout.Level,
		NoOfChapters: layout.NoOfChapters,
		Layout:       layout,
	}
	if err := s.courses.CreateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("service/course: creating course: %w", err)
	}

	s.logger.Info("course created",
		slog.String("cid", course.CID),
		slog.String("owner", course.OwnerEmail),
	)
	return course, nil
}

// Get returns the caller's course: 404 when it does not exist, 403 when it
// belongs to someone else.
func (s *CourseService) Get(ctx context.Context, caller, cid string) (*model.Course, error) {
	return loadOwnedCourse(ctx, s.courses, caller, cid)
}

// List returns the caller's courses, newest first.
func (s *CourseService) List(ctx context.Context, caller string, limit, offset int) ([]model.Course, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	courses, err := s.courses.ListCoursesByOwner(ctx, model.NormalizeEmail(caller), repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("service/course: listing courses: %w", err)
	}
	return courses, nil
}

// GenerateContent (re)generates the chapter content of a course and resets
// its review to draft.
//
// Guards, in order:
//  1. A course pending verification is never regenerated, whoever asks: the
//     professor may be reading the current content through the review link.
//  2. Only the owner may regenerate.
//  3. If another course with the same name and category is already verified,
//     the caller is pointed at it instead of producing a duplicate.
func (s *CourseService) GenerateContent(ctx context.Context, caller, cid string) (*model.Course, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return nil, apperror.ValidationFailed("courseId", "courseId is required")
	}
	course, err := s.courses.GetCourse(ctx, cid)
	if err != nil {
		return nil, err
	}
	if course.Status() == model.ReviewPendingVerification {
		return nil, pendingConflict()
	}
	if err := checkOwner(course, caller); err != nil {
		return nil, err
	}

	dup, err := s.courses.FindVerifiedDuplicate(ctx, course.CID, course.Name, course.Category)
	switch {
	case err == nil:
		return nil, apperror.ConflictWith(
			"a verified course with the same name and category already exists",
			map[string]any{"existingCourseId": dup.CID},
		)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/course: checking duplicates: %w", err)
	}

	if len(course.Layout.Chapters) == 0 {
		return nil, apperror.ValidationFailed("chapters", "course outline has no chapters")
	}

	chapters, err := s.pipeline.Run(ctx, course.Layout)
	if err != nil {
		if errors.Is(err, generator.ErrNotConfigured) {
			return nil, apperror.Internal("content generation is not configured", err)
		}
		return nil, apperror.Internal("content generation failed", err)
	}
	content, err := json.Marshal(chapters)
	if err != nil {
		return nil, fmt.Errorf("service/course: encoding content: %w", err)
	}

	applied, err := s.courses.ReplaceContent(ctx, course.CID,
		[]model.ReviewStatus{model.ReviewDraft, model.ReviewNeedsChanges, model.ReviewVerified},
		content,
	)
	if err != nil {
		return nil, fmt.Errorf("service/course: storing content: %w", err)
	}
	if !applied {
		// Submitted for review while generation was running.
		return nil, pendingConflict()
	}

	metrics.ReviewTransitions.WithLabelValues("regenerate", string(model.ReviewDraft)).Inc()
	s.logger.Info("course content generated",
		slog.String("cid", course.CID),
		slog.Int("chapters", len(chapters)),
	)

	course.CourseContent = content
	course.ReviewStatus = model.ReviewDraft
	course.ReviewTokenHash = nil
	course.ReviewProfessorEmail = nil
	course.ReviewFeedback = nil
	course.ReviewRequestedAt = nil
	course.ReviewReviewedAt = nil
	return course, nil
}

func pendingConflict() error {
	return apperror.ConflictWith(
		"course is pending verification; cancel the review before regenerating content",
		map[string]any{"reviewStatus": string(model.ReviewPendingVerification)},
	)
}
