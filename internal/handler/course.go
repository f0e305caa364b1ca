package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/service"
)

// CourseHandler serves course authoring: create, read and content
// generation. Every route requires a signed-in caller.
type CourseHandler struct {
	courses *service.CourseService
	logger  *slog.Logger
}

func NewCourseHandler(courses *service.CourseService, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{courses: courses, logger: logger}
}

type courseIDRequest struct {
	CourseID string `json:"courseId" validate:"required"`
}

// HandleCreate stores a new draft course from its outline.
//
// HTTP: POST /courses
func (h *CourseHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var layout model.CourseLayout
	if err := decodeJSON(w, r, &layout); err != nil {
		writeError(w, err)
		return
	}

	course, err := h.courses.Create(r.Context(), caller(r), layout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, course)
}

// HandleList returns the caller's courses, newest first.
//
// HTTP: GET /courses?limit=20&offset=0
func (h *CourseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	courses, err := h.courses.List(r.Context(), caller(r), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

// HandleGet returns one of the caller's courses.
//
// HTTP: GET /courses/{cid}
func (h *CourseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.Get(r.Context(), caller(r), chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// HandleGenerateContent (re)generates chapter content. The course goes back
// to draft and any earlier review outcome is dropped.
//
// HTTP: POST /courses/generate-content
func (h *CourseHandler) HandleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var req courseIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	course, err := h.courses.GenerateContent(r.Context(), caller(r), req.CourseID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"courseName":    course.Name,
		"courseContent": course.CourseContent,
	})
}

// queryInt parses an optional integer query parameter. Absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
