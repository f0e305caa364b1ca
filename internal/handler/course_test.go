package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndReadCourse(t *testing.T) {
	api := newTestAPI(t)
	ada := api.signIn(t, "Ada", "ada@example.com")
	bob := api.signIn(t, "Bob", "bob@example.com")

	cid := api.createCourse(t, ada)

	t.Run("owner reads it as a draft", func(t *testing.T) {
		rr := api.do(t, ada, http.MethodGet, "/courses/"+cid, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		body := decode(t, rr)
		assert.Contains(t, body["name"], "Python Foundations")
		assert.Equal(t, "draft", body["reviewStatus"])
		assert.Equal(t, "ada@example.com", body["userEmail"])
	})

	t.Run("someone else is forbidden", func(t *testing.T) {
		rr := api.do(t, bob, http.MethodGet, "/courses/"+cid, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unknown course", func(t *testing.T) {
		rr := api.do(t, ada, http.MethodGet, "/courses/does-not-exist", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		rr := api.do(t, anonymous, http.MethodGet, "/courses/"+cid, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("list is per owner", func(t *testing.T) {
		rr := api.do(t, ada, http.MethodGet, "/courses", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode(t, rr)["courses"], 1)

		rr = api.do(t, bob, http.MethodGet, "/courses", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode(t, rr)["courses"], 0)
	})

	t.Run("bad paging", func(t *testing.T) {
		rr := api.do(t, ada, http.MethodGet, "/courses?limit=ten", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCreateCourseValidation(t *testing.T) {
	api := newTestAPI(t)
	ada := api.signIn(t, "Ada", "ada@example.com")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"category": "Programming"}},
		{"missing category", map[string]any{"name": "Go"}},
		{"chapter without a name", map[string]any{
			"name": "Go", "category": "Programming",
			"chapters": []map[string]any{{"duration": "1h"}},
		}},
		{"too many chapters", map[string]any{"name": "Go", "category": "Programming", "noOfChapters": 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, ada, http.MethodPost, "/courses", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestGenerateContent(t *testing.T) {
	api := newTestAPI(t)
	ada := api.signIn(t, "Ada", "ada@example.com")
	bob := api.signIn(t, "Bob", "bob@example.com")

	t.Run("stores one entry per chapter", func(t *testing.T) {
		cid := api.createCourse(t, ada)

		rr := api.do(t, ada, http.MethodPost, "/courses/generate-content", map[string]string{"courseId": cid})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		body := decode(t, rr)
		assert.Contains(t, body["courseName"], "Python Foundations")
		content := body["courseContent"].([]any)
		require.Len(t, content, 2)
		first := content[0].(map[string]any)
		assert.Equal(t, "Variables", first["courseData"].(map[string]any)["chapterName"])
		assert.Len(t, first["youtubeVideo"], 1)
	})

	t.Run("owner only", func(t *testing.T) {
		cid := api.createCourse(t, ada)
		rr := api.do(t, bob, http.MethodPost, "/courses/generate-content", map[string]string{"courseId": cid})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing course id", func(t *testing.T) {
		rr := api.do(t, ada, http.MethodPost, "/courses/generate-content", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("blocked while pending", func(t *testing.T) {
		cid, _ := api.pendingCourse(t, ada)

		rr := api.do(t, ada, http.MethodPost, "/courses/generate-content", map[string]string{"courseId": cid})
		require.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "pending_verification", decode(t, rr)["reviewStatus"])
	})

	t.Run("points at an existing verified course", func(t *testing.T) {
		cid := api.generate(t, ada, api.createNamedCourse(t, ada, "Rust Systems"))
		rr := api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": cid})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "priya.nair@learnify.example", decode(t, rr)["professorEmail"])

		rr = api.do(t, anonymous, http.MethodPost, "/verification/review", map[string]string{
			"token": api.notifier.lastToken(t), "action": "approve",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		// Bob writes the same course; generating it points him at Ada's.
		dup := api.createNamedCourse(t, bob, "rust systems")
		rr = api.do(t, bob, http.MethodPost, "/courses/generate-content", map[string]string{"courseId": dup})
		require.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, cid, decode(t, rr)["existingCourseId"])
	})
}
