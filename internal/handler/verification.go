package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/service"
)

// VerificationHandler serves both sides of course review: the author's
// submit and cancel, and the professor's token-authorized view and decision.
type VerificationHandler struct {
	reviews *service.ReviewService
	logger  *slog.Logger
}

func NewVerificationHandler(reviews *service.ReviewService, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{reviews: reviews, logger: logger}
}

type submitRequest struct {
	CourseID       string `json:"courseId" validate:"required"`
	ProfessorEmail string `json:"professorEmail" validate:"omitempty,email"`
}

// submitResponse carries the delivery outcome next to the new status. The
// email fields are absent on an idempotent re-submit, when nothing was sent.
type submitResponse struct {
	OK                bool               `json:"ok"`
	Status            model.ReviewStatus `json:"status"`
	ProfessorEmail    string             `json:"professorEmail,omitempty"`
	ReviewRequestedAt *time.Time         `json:"reviewRequestedAt,omitempty"`
	EmailSent         *bool              `json:"emailSent,omitempty"`
	EmailReason       string             `json:"emailReason,omitempty"`
	EmailMissing      []string           `json:"emailMissing,omitempty"`
	EmailMessage      string             `json:"emailMessage,omitempty"`
	VerificationLink  string             `json:"verificationLink,omitempty"`
}

// HandleSubmit sends the caller's course to a professor.
//
// HTTP: POST /courses/submit-verification
// Auth: Required (owner)
//
// A failed email does not fail the request: the course is still pending and
// the response carries the link so the author can forward it.
func (h *VerificationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.reviews.Submit(r.Context(), caller(r), req.CourseID, req.ProfessorEmail)
	if err != nil {
		writeError(w, err)
		return
	}

	body := submitResponse{
		OK:                true,
		Status:            res.Status,
		ProfessorEmail:    res.ProfessorEmail,
		ReviewRequestedAt: res.RequestedAt,
	}
	if n := res.Notification; n != nil {
		sent := n.OK
		body.EmailSent = &sent
		body.EmailReason = n.Reason
		body.EmailMissing = n.Missing
		body.EmailMessage = n.Message
		body.VerificationLink = res.VerificationLink
	}
	writeJSON(w, http.StatusOK, body)
}

// HandleCancel withdraws a pending review.
//
// HTTP: POST /courses/cancel-verification
// Auth: Required (owner)
func (h *VerificationHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req courseIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.reviews.Cancel(r.Context(), caller(r), req.CourseID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Verification cancelled successfully",
	})
}

// reviewCourse is what a professor sees through a review link: the content
// and its review state, without the owner or any token material.
type reviewCourse struct {
	CID               string             `json:"cid"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	Category          string             `json:"category"`
	Level             string             `json:"level"`
	NoOfChapters      int                `json:"noOfChapters"`
	Chapters          []model.Chapter    `json:"chapters"`
	CourseContent     json.RawMessage    `json:"courseContent"`
	ReviewStatus      model.ReviewStatus `json:"reviewStatus"`
	ReviewFeedback    *string            `json:"reviewFeedback"`
	ReviewRequestedAt *time.Time         `json:"reviewRequestedAt"`
}

func newReviewCourse(c *model.Course) reviewCourse {
	content := c.CourseContent
	if !model.ContentPresent(content) {
		content = json.RawMessage("[]")
	}
	chapters := c.Layout.Chapters
	if chapters == nil {
		chapters = []model.Chapter{}
	}
	return reviewCourse{
		CID:               c.CID,
		Name:              c.Name,
		Description:       c.Description,
		Category:          c.Category,
		Level:             c.Level,
		NoOfChapters:      c.NoOfChapters,
		Chapters:          chapters,
		CourseContent:     content,
		ReviewStatus:      c.Status(),
		ReviewFeedback:    c.ReviewFeedback,
		ReviewRequestedAt: c.ReviewRequestedAt,
	}
}

// HandleView shows the course behind a review link.
//
// HTTP: GET /verification?token=...
// Auth: the token itself
func (h *VerificationHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	course, err := h.reviews.Resolve(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"course": newReviewCourse(course)})
}

type reviewRequest struct {
	Token    string `json:"token" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

// HandleReview records the professor's decision and consumes the link.
//
// HTTP: POST /verification/review
// Auth: the token itself
func (h *VerificationHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	status, err := h.reviews.Review(r.Context(), req.Token, req.Action, req.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": status})
}
