package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/service"
)

// ProfessorHandler lists the reviewers a course can be sent to.
type ProfessorHandler struct {
	professors *service.ProfessorService
	logger     *slog.Logger
}

func NewProfessorHandler(professors *service.ProfessorService, logger *slog.Logger) *ProfessorHandler {
	return &ProfessorHandler{professors: professors, logger: logger}
}

// HandleList returns every professor. Public.
//
// HTTP: GET /professors
func (h *ProfessorHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.professors.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []model.Professor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"professors": list})
}
