package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/learnify/internal/model"
)

func seedPool() []model.Professor {
	return []model.Professor{
		{Email: "anuj@learnify.example", Name: "Dr Anuj", Specializations: []string{"Python", "JavaScript", "HTML", "SQL"}},
		{Email: "magar@learnify.example", Name: "Magar", Specializations: []string{"Java", "TypeScript", "React", "Node.js", "Go"}},
		{Email: "priya.nair@learnify.example", Name: "Priya Nair", Specializations: []string{"Kotlin", "Swift", "Rust"}},
		{Email: "emma.rodriguez@learnify.example", Name: "Emma Rodriguez", Specializations: []string{"Solidity", "Dart", "CSS", "UI/UX"}},
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		specs   []string
		subject Subject
		want    int
	}{
		{
			name:    "name word matches",
			specs:   []string{"Python", "SQL"},
			subject: Subject{Name: "Python for Data"},
			want:    10,
		},
		{
			name:    "short words never count",
			specs:   []string{"SQL", "Go"},
			subject: Subject{Name: "SQL and Go for all"},
			want:    0,
		},
		{
			name:    "full category and its words",
			specs:   []string{"Web Development", "React"},
			subject: Subject{Name: "Intro", Category: "Web Development"},
			want:    5 + 2,
		},
		{
			name:    "category split on ampersand and comma",
			specs:   []string{"Design", "Mobile"},
			subject: Subject{Category: "Design & Mobile,Apps"},
			want:    2 + 2,
		},
		{
			name:    "short words are measured in characters",
			specs:   []string{"日本語"},
			subject: Subject{Name: "日本 入門"},
			want:    0,
		},
		{
			name:    "multibyte words long enough still count",
			specs:   []string{"Programación"},
			subject: Subject{Name: "Programación básica"},
			want:    10,
		},
		{
			name:    "case insensitive",
			specs:   []string{"KOTLIN"},
			subject: Subject{Name: "kotlin Basics", Category: "Mobile"},
			want:    10,
		},
		{
			name:    "javascript contains java",
			specs:   []string{"JavaScript"},
			subject: Subject{Name: "Java Streams"},
			want:    10,
		},
		{
			name:    "unrelated",
			specs:   []string{"Solidity", "Dart"},
			subject: Subject{Name: "Python for Data", Category: "Data Science"},
			want:    0,
		},
		{
			name:    "no specializations",
			subject: Subject{Name: "Python", Category: "Programming"},
			want:    0,
		},
		{
			name:    "empty category adds nothing",
			specs:   []string{"Python"},
			subject: Subject{Name: "Python"},
			want:    10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(model.Professor{Specializations: tt.specs}, tt.subject)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScore_PythonForDataAtLeastTen(t *testing.T) {
	p := model.Professor{Specializations: []string{"Python", "SQL"}}
	assert.GreaterOrEqual(t, Score(p, Subject{Name: "Python for Data"}), 10)
}

func TestPick_Auto(t *testing.T) {
	p, err := Pick(seedPool(), Subject{Name: "Rust Systems Programming", Category: "Programming"}, "")
	require.NoError(t, err)
	assert.Equal(t, "priya.nair@learnify.example", p.Email)
}

func TestPick_AutoTieKeepsFirst(t *testing.T) {
	pool := []model.Professor{
		{Email: "first@example.com", Specializations: []string{"Python"}},
		{Email: "second@example.com", Specializations: []string{"Python"}},
	}

	p, err := Pick(pool, Subject{Name: "Python"}, "")
	require.NoError(t, err)
	assert.Equal(t, "first@example.com", p.Email)
}

func TestPick_AutoNeverSelectsZeroScore(t *testing.T) {
	_, err := Pick(seedPool(), Subject{Name: "Medieval History", Category: "Humanities"}, "")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = Pick(nil, Subject{Name: "Python"}, "")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestPick_Explicit(t *testing.T) {
	subject := Subject{Name: "Python for Data", Category: "Data Science"}

	p, err := Pick(seedPool(), subject, "  ANUJ@learnify.example ")
	require.NoError(t, err)
	assert.Equal(t, "Dr Anuj", p.Name)

	_, err = Pick(seedPool(), subject, "emma.rodriguez@learnify.example")
	assert.ErrorIs(t, err, ErrNotRelevant)

	_, err = Pick(seedPool(), subject, "stranger@example.com")
	assert.ErrorIs(t, err, ErrProfessorNotAvailable)
}
