package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/auth"
	"github.com/sakif/learnify/internal/matching"
	"github.com/sakif/learnify/internal/metrics"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/notify"
	"github.com/sakif/learnify/internal/repository"
)

// Review actions a professor can take through a review link.
const (
	ActionApprove        = "approve"
	ActionRequestChanges = "request_changes"
)

// ReviewService runs the course verification workflow:
//
//	draft / needs_changes --submit--> pending_verification --approve--> verified
//	                                          |            --request_changes--> needs_changes
//	                                          '--cancel--> draft
//
// Authors act through their session. Professors have no account; holding the
// raw review token from the emailed link is their only authorization, and it
// covers exactly one course for one review cycle.
//
// Every transition is a single conditional update keyed on the expected
// status, so a guard that passed on read cannot be overtaken by a concurrent
// request before the write.
type ReviewService struct {
	courses    repository.CourseRepository
	professors repository.ProfessorRepository
	notifier   notify.Dispatcher
	linkFor    func(rawToken string) string
	logger     *slog.Logger
	now        func() time.Time
}

// NewReviewService creates a ReviewService. linkFor turns a raw review token
// into the URL sent to the professor.
func NewReviewService(
	courses repository.CourseRepository,
	professors repository.ProfessorRepository,
	notifier notify.Dispatcher,
	linkFor func(rawToken string) string,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		courses:    courses,
		professors: professors,
		notifier:   notifier,
		linkFor:    linkFor,
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitResult describes the course after a submit.
//
// Notification is nil when the course was already pending and nothing was
// sent. VerificationLink is set only when delivery failed, so the author can
// pass the link on by other means.
type SubmitResult struct {
	Status           model.ReviewStatus
	ProfessorEmail   string
	RequestedAt      *time.Time
	Notification     *notify.Result
	VerificationLink string
}

// Submit sends the caller's course for verification.
//
// Re-submitting a course that is already pending is a no-op: the token and
// professor of the open cycle are kept and no mail goes out.
func (s *ReviewService) Submit(ctx context.Context, caller, cid, professorEmail string) (*SubmitResult, error) {
	course, err := s.ownedCourse(ctx, caller, cid)
	if err != nil {
		return nil, err
	}
	if !course.HasContent() {
		return nil, apperror.ValidationFailed("courseId", "generate course content before submitting for verification")
	}

	switch course.Status() {
	case model.ReviewPendingVerification:
		return pendingResult(course), nil
	case model.ReviewVerified:
		return nil, apperror.InvalidState("course is already verified")
	}

	pool, err := s.professors.ListProfessors(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/review: listing professors: %w", err)
	}
	professor, err := matching.Pick(pool, matching.SubjectOf(course), professorEmail)
	if err != nil {
		return nil, professorError(err)
	}

	raw, hash, err := auth.NewToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	applied, err := s.courses.TransitionReview(ctx, course.CID,
		[]model.ReviewStatus{model.ReviewDraft, model.ReviewNeedsChanges},
		model.ReviewUpdate{
			Status:         model.ReviewPendingVerification,
			TokenHash:      &hash,
			ProfessorEmail: &professor.Email,
			RequestedAt:    &now,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("service/review: submitting %s: %w", course.CID, err)
	}
	if !applied {
		// Lost a race. A concurrent submit that won leaves the course
		// pending, which is the state this caller asked for.
		current, err := s.courses.GetCourse(ctx, course.CID)
		if err != nil {
			return nil, err
		}
		if current.Status() == model.ReviewPendingVerification {
			return pendingResult(current), nil
		}
		return nil, apperror.InvalidState(fmt.Sprintf("course is %s and cannot be submitted", current.Status()))
	}

	metrics.ReviewTransitions.WithLabelValues("submit", string(model.ReviewPendingVerification)).Inc()
	s.logger.Info("course submitted for verification",
		slog.String("cid", course.CID),
		slog.String("professor", professor.Email),
	)

	link := s.linkFor(raw)
	result := s.notifier.SendReviewRequest(ctx, notify.ReviewRequest{
		To:             professor.Email,
		CourseName:     displayName(course),
		CourseLevel:    course.Level,
		CourseCategory: course.Category,
		Link:           link,
	})

	out := &SubmitResult{
		Status:         model.ReviewPendingVerification,
		ProfessorEmail: professor.Email,
		RequestedAt:    &now,
		Notification:   &result,
	}
	if !result.OK {
		s.logger.Debug("review link issued without delivery",
			slog.String("cid", course.CID),
			slog.String("reason", result.Reason),
			slog.String("link", link),
		)
		out.VerificationLink = link
	}
	return out, nil
}

// Cancel withdraws a pending review and returns the course to a clean draft.
// The outstanding link stops working.
func (s *ReviewService) Cancel(ctx context.Context, caller, cid string) error {
	course, err := s.ownedCourse(ctx, caller, cid)
	if err != nil {
		return err
	}
	if course.Status() != model.ReviewPendingVerification {
		return apperror.InvalidState("can only cancel courses in pending_verification status")
	}

	applied, err := s.courses.TransitionReview(ctx, course.CID,
		[]model.ReviewStatus{model.ReviewPendingVerification}, model.DraftReview())
	if err != nil {
		return fmt.Errorf("service/review: cancelling %s: %w", course.CID, err)
	}
	if !applied {
		return apperror.InvalidState("can only cancel courses in pending_verification status")
	}

	metrics.ReviewTransitions.WithLabelValues("cancel", string(model.ReviewDraft)).Inc()
	s.logger.Info("verification cancelled", slog.String("cid", course.CID))
	return nil
}

// Resolve returns the course a review link points at.
func (s *ReviewService) Resolve(ctx context.Context, rawToken string) (*model.Course, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, apperror.ValidationFailed("token", "token is required")
	}

	course, err := s.courses.GetCourseByReviewToken(ctx, auth.HashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if course.Status() != model.ReviewPendingVerification {
		return nil, invalidLink()
	}
	return course, nil
}

// Review records the professor's decision for the course behind rawToken
// and consumes the token.
func (s *ReviewService) Review(ctx context.Context, rawToken, action, feedback string) (model.ReviewStatus, error) {
	rawToken = strings.TrimSpace(rawToken)
	action = strings.TrimSpace(action)
	feedback = strings.TrimSpace(feedback)

	if rawToken == "" {
		return "", apperror.ValidationFailed("token", "token is required")
	}

	var next model.ReviewStatus
	switch action {
	case ActionApprove:
		next = model.ReviewVerified
	case ActionRequestChanges:
		if feedback == "" {
			return "", apperror.ValidationFailed("feedback", "feedback is required to request changes")
		}
		next = model.ReviewNeedsChanges
	default:
		return "", apperror.ValidationFailed("action", "action must be approve or request_changes")
	}

	hash := auth.HashToken(rawToken)
	course, err := s.courses.GetCourseByReviewToken(ctx, hash)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	update := model.ReviewUpdate{
		Status:         next,
		ProfessorEmail: course.ReviewProfessorEmail,
		RequestedAt:    course.ReviewRequestedAt,
		ReviewedAt:     &now,
	}
	if next == model.ReviewNeedsChanges {
		update.Feedback = &feedback
	}

	applied, err := s.courses.TransitionReviewByToken(ctx, hash, update)
	if err != nil {
		return "", fmt.Errorf("service/review: reviewing %s: %w", course.CID, err)
	}
	if !applied {
		// Consumed by a concurrent review or cancel.
		return "", invalidLink()
	}

	metrics.ReviewTransitions.WithLabelValues(action, string(next)).Inc()
	s.logger.Info("course reviewed",
		slog.String("cid", course.CID),
		slog.String("status", string(next)),
	)
	return next, nil
}

// ownedCourse loads cid and checks the caller owns it: 404 when it does not
// exist, 403 when it belongs to someone else.
func (s *ReviewService) ownedCourse(ctx context.Context, caller, cid string) (*model.Course, error) {
	return loadOwnedCourse(ctx, s.courses, caller, cid)
}

func loadOwnedCourse(ctx context.Context, courses repository.CourseRepository, caller, cid string) (*model.Course, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return nil, apperror.ValidationFailed("courseId", "courseId is required")
	}
	course, err := courses.GetCourse(ctx, cid)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(course, caller); err != nil {
		return nil, err
	}
	return course, nil
}

func checkOwner(course *model.Course, caller string) error {
	if model.NormalizeEmail(course.OwnerEmail) != model.NormalizeEmail(caller) {
		return apperror.Forbidden("you do not own this course")
	}
	return nil
}

func pendingResult(c *model.Course) *SubmitResult {
	out := &SubmitResult{
		Status:      model.ReviewPendingVerification,
		RequestedAt: c.ReviewRequestedAt,
	}
	if c.ReviewProfessorEmail != nil {
		out.ProfessorEmail = *c.ReviewProfessorEmail
	}
	return out
}

func professorError(err error) error {
	switch {
	case errors.Is(err, matching.ErrProfessorNotAvailable):
		return apperror.ValidationFailed("professorEmail", "selected professor is not available")
	case errors.Is(err, matching.ErrNotRelevant):
		return apperror.ValidationFailed("professorEmail", "selected professor does not cover this course's subject")
	case errors.Is(err, matching.ErrNoMatch):
		return apperror.ValidationFailed("professorEmail", "no professor is available for this course's subject")
	}
	return err
}

func invalidLink() error {
	return apperror.NotFoundMessage("invalid or expired link")
}

// displayName prefers the outline's name over the column copy.
func displayName(c *model.Course) string {
	if name := strings.TrimSpace(c.Layout.Name); name != "" {
		return name
	}
	return c.Name
}
