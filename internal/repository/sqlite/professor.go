package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/repository"
)

var _ repository.ProfessorRepository = (*DB)(nil)

// ListProfessors returns the verified reviewer pool in a stable order.
// The order matters: matching keeps the first of several equal scores.
func (db *DB) ListProfessors(ctx context.Context) ([]model.Professor, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT email, name, specializations, bio FROM professors
		 WHERE is_verified = 1 ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing professors: %w", err)
	}
	defer rows.Close()

	professors := []model.Professor{}
	for rows.Next() {
		var (
			p     model.Professor
			specs string
		)
		if err := rows.Scan(&p.Email, &p.Name, &specs, &p.Bio); err != nil {
			return nil, fmt.Errorf("sqlite: scanning professor: %w", err)
		}
		if err := json.Unmarshal([]byte(specs), &p.Specializations); err != nil {
			return nil, fmt.Errorf("sqlite: decoding specializations for %s: %w", p.Email, err)
		}
		professors = append(professors, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating professors: %w", err)
	}
	return professors, nil
}

// UpsertProfessor inserts a professor or overwrites the profile of an
// existing one with the same email.
func (db *DB) UpsertProfessor(ctx context.Context, p *model.Professor) error {
	specs := p.Specializations
	if specs == nil {
		specs = []string{}
	}
	encoded, err := json.Marshal(specs)
	if err != nil {
		return fmt.Errorf("sqlite: encoding specializations: %w", err)
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO professors (email, name, specializations, bio, is_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET
		     name = excluded.name,
		     specializations = excluded.specializations,
		     bio = excluded.bio,
		     updated_at = excluded.updated_at`,
		model.NormalizeEmail(p.Email), p.Name, string(encoded), p.Bio, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting professor %s: %w", p.Email, err)
	}
	return nil
}
