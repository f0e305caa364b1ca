package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sakif/learnify/internal/model"
)

// seedFile is the layout of a professor seed file:
//
//	professors:
//	  - email: anuj@learnify.example
//	    name: Dr Anuj
//	    specializations: [Python, JavaScript]
//	    bio: ...
type seedFile struct {
	Professors []model.Professor `yaml:"professors"`
}

func loadProfessors(path string) ([]model.Professor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return parseProfessors(raw)
}

// parseProfessors decodes a seed file. Unknown keys are rejected so a typo
// like "specialisations" fails loudly instead of seeding empty lists.
func parseProfessors(raw []byte) ([]model.Professor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var seed seedFile
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if len(seed.Professors) == 0 {
		return nil, errors.New("seed file lists no professors")
	}

	seen := make(map[string]bool, len(seed.Professors))
	for i, p := range seed.Professors {
		email := model.NormalizeEmail(p.Email)
		if email == "" || p.Name == "" {
			return nil, fmt.Errorf("professor %d: email and name are required", i)
		}
		if seen[email] {
			return nil, fmt.Errorf("professor %d: duplicate email %s", i, email)
		}
		seen[email] = true
		seed.Professors[i].Email = email
	}
	return seed.Professors, nil
}
