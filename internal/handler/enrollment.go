package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/learnify/internal/service"
)

// EnrollmentHandler serves a learner's enrollments and chapter progress.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	logger      *slog.Logger
}

func NewEnrollmentHandler(enrollments *service.EnrollmentService, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, logger: logger}
}

type progressRequest struct {
	CourseID          string `json:"courseId" validate:"required"`
	CompletedChapters []int  `json:"completedChapters" validate:"max=500"`
}

// HandleEnroll joins the caller to a course. Enrolling twice is not an
// error; the existing enrollment comes back with alreadyEnrolled set.
//
// HTTP: POST /enroll-course
func (h *EnrollmentHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	var req courseIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	enrollment, already, err := h.enrollments.Enroll(r.Context(), caller(r), req.CourseID)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if already {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"enrollment":      enrollment,
		"alreadyEnrolled": already,
	})
}

// HandleGet lists the caller's enrollments, or returns one when courseId is
// given. A single enrollment is only shown once its course is verified; the
// list carries content for verified courses only.
//
// HTTP: GET /enroll-course[?courseId=...]
func (h *EnrollmentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if cid := r.URL.Query().Get("courseId"); cid != "" {
		ec, err := h.enrollments.Get(r.Context(), caller(r), cid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ec)
		return
	}

	list, err := h.enrollments.List(r.Context(), caller(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrolledCourses": list})
}

// HandleProgress replaces the caller's completed chapters for a course.
//
// HTTP: PUT /enroll-course
func (h *EnrollmentHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	enrollment, err := h.enrollments.UpdateProgress(r.Context(), caller(r), req.CourseID, req.CompletedChapters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrollment": enrollment})
}
