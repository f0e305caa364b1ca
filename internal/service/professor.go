package service

import (
	"context"
	"fmt"

	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/repository"
)

// ProfessorService exposes the reviewer pool.
type ProfessorService struct {
	professors repository.ProfessorRepository
}

func NewProfessorService(professors repository.ProfessorRepository) *ProfessorService {
	return &ProfessorService{professors: professors}
}

func (s *ProfessorService) List(ctx context.Context) ([]model.Professor, error) {
	list, err := s.professors.ListProfessors(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/professor: %w", err)
	}
	return list, nil
}

// Import upserts professors, e.g. from a seed file, and returns how many
// were written.
func (s *ProfessorService) Import(ctx context.Context, list []model.Professor) (int, error) {
	for i := range list {
		p := &list[i]
		if model.NormalizeEmail(p.Email) == "" || p.Name == "" {
			return i, fmt.Errorf("service/professor: entry %d needs an email and a name", i)
		}
		if err := s.professors.UpsertProfessor(ctx, p); err != nil {
			return i, fmt.Errorf("service/professor: upserting %s: %w", p.Email, err)
		}
	}
	return len(list), nil
}
