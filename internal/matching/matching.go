// Package matching picks a reviewing professor for a course.
//
// Relevance is a substring heuristic over the professor's specializations,
// not semantic matching. Words of three characters or fewer are ignored so
// that "for", "the", "and" and similar never count as a match.
package matching

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/learnify/internal/model"
)

const (
	nameWordPoints     = 10
	categoryPoints     = 5
	categoryWordPoints = 2
	minWordLen         = 4
)

var (
	// ErrProfessorNotAvailable means an explicitly chosen professor is not
	// in the pool.
	ErrProfessorNotAvailable = errors.New("matching: professor not available")

	// ErrNotRelevant means an explicitly chosen professor scores 0 for the
	// course.
	ErrNotRelevant = errors.New("matching: professor not relevant to course")

	// ErrNoMatch means no professor in the pool scores above 0.
	ErrNoMatch = errors.New("matching: no eligible professor")
)

// Subject is the part of a course the score looks at.
type Subject struct {
	Name     string
	Category string
}

// SubjectOf returns the scoring subject of c.
func SubjectOf(c *model.Course) Subject {
	return Subject{Name: c.Name, Category: c.Category}
}

// Score rates how well p fits s. 0 means no match.
func Score(p model.Professor, s Subject) int {
	skills := strings.ToLower(strings.Join(p.Specializations, " "))
	if skills == "" {
		return 0
	}

	score := 0
	for _, word := range strings.Fields(strings.ToLower(s.Name)) {
		if utf8.RuneCountInString(word) >= minWordLen && strings.Contains(skills, word) {
			score += nameWordPoints
		}
	}

	category := strings.ToLower(strings.TrimSpace(s.Category))
	if category == "" {
		return score
	}
	if strings.Contains(skills, category) {
		score += categoryPoints
	}
	for _, word := range splitCategory(category) {
		if utf8.RuneCountInString(word) >= minWordLen && strings.Contains(skills, word) {
			score += categoryWordPoints
		}
	}
	return score
}

// splitCategory breaks "Data Science & AI, Web" into its words.
func splitCategory(category string) []string {
	return strings.FieldsFunc(category, func(r rune) bool {
		return r == '&' || r == ',' || unicode.IsSpace(r)
	})
}

// Pick chooses the reviewer for s from pool.
//
// With an explicit email, that professor must be in the pool and score
// above 0. Without one, the highest scorer wins and ties keep the earliest
// professor in pool order.
func Pick(pool []model.Professor, s Subject, explicit string) (model.Professor, error) {
	explicit = model.NormalizeEmail(explicit)
	if explicit != "" {
		for _, p := range pool {
			if model.NormalizeEmail(p.Email) != explicit {
				continue
			}
			if Score(p, s) <= 0 {
				return model.Professor{}, ErrNotRelevant
			}
			return p, nil
		}
		return model.Professor{}, ErrProfessorNotAvailable
	}

	best, bestScore := -1, 0
	for i, p := range pool {
		if score := Score(p, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return model.Professor{}, ErrNoMatch
	}
	return pool[best], nil
}
