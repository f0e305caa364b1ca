package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/learnify/internal/notify"
)

func TestSubmitVerification(t *testing.T) {
	api := newTestAPI(t)
	ada := api.signIn(t, "Ada", "ada@example.com")
	bob := api.signIn(t, "Bob", "bob@example.com")

	t.Run("auto-matches a professor and mails the link", func(t *testing.T) {
		cid := api.generatedCourse(t, ada)

		rr := api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": cid})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		body := decode(t, rr)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "pending_verification", body["status"])
		assert.Equal(t, "anuj@learnify.example", body["professorEmail"])
		assert.Equal(t, true, body["emailSent"])
		assert.NotContains(t, body, "verificationLink")
		assert.NotEmpty(t, body["reviewRequestedAt"])

		api.notifier.mu.Lock()
		last := api.notifier.requests[len(api.notifier.requests)-1]
		api.notifier.mu.Unlock()
		assert.Equal(t, "anuj@learnify.example", last.To)
		assert.Contains(t, last.CourseName, "Python Foundations")
		assert.Contains(t, last.Link, linkPrefix)
	})

	t.Run("re-submitting is a no-op", func(t *testing.T) {
		cid, token := api.pendingCourse(t, ada)
		api.notifier.mu.Lock()
		sent := len(api.notifier.requests)
		api.notifier.mu.Unlock()

		rr := api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": cid})
		require.Equal(t, http.StatusOK, rr.Code)
		body := decode(t, rr)
		assert.Equal(t, "pending_verification", body["status"])
		assert.NotContains(t, body, "emailSent")

		api.notifier.mu.Lock()
		assert.Equal(t, sent, len(api.notifier.requests))
		api.notifier.mu.Unlock()

		// The original link still works.
		rr = api.do(t, anonymous, http.MethodGet, "/verification?token="+token, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("delivery failure returns the link", func(t *testing.T) {
		api.notifier.result = notify.Result{
			Reason:  notify.ReasonNotConfigured,
			Missing: []string{"SMTP_HOST", "SMTP_PASS"},
		}
		t.Cleanup(func() { api.notifier.result = notify.Result{OK: true} })

		cid := api.generatedCourse(t, ada)
		rr := api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": cid})
		require.Equal(t, http.StatusOK, rr.Code)

		body := decode(t, rr)
		assert.Equal(t, "pending_verification", body["status"])
		assert.Equal(t, false, body["emailSent"])
		assert.Equal(t, "smtp_not_configured", body["emailReason"])
		assert.Equal(t, []any{"SMTP_HOST", "SMTP_PASS"}, body["emailMissing"])
		link, _ := body["verificationLink"].(string)
		assert.Equal(t, linkPrefix+api.notifier.lastToken(t), link)
	})

	t.Run("explicit professor", func(t *testing.T) {
		cid := api.generatedCourse(t, ada)
		rr := api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{
			"courseId": cid, "professorEmail": "ANUJ@learnify.example",
		})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "anuj@learnify.example", decode(t, rr)["professorEmail"])
	})

	t.Run("explicit professor without the expertise", func(t *testing.T) {
		cid := api.generatedCourse(t, ada)
		rr := api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{
			"courseId": cid, "professorEmail": "priya.nair@learnify.example",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("malformed professor email", func(t *testing.T) {
		cid := api.generatedCourse(t, ada)
		rr := api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{
			"courseId": cid, "professorEmail": "not-an-email",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("no content yet", func(t *testing.T) {
		cid := api.createCourse(t, ada)
		rr := api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": cid})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not the owner", func(t *testing.T) {
		cid := api.generatedCourse(t, ada)
		rr := api.do(t, bob, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": cid})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unknown course", func(t *testing.T) {
		rr := api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": "nope"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		rr := api.do(t, anonymous, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": "x"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestCancelVerification(t *testing.T) {
	api := newTestAPI(t)
	ada := api.signIn(t, "Ada", "ada@example.com")

	t.Run("pending course returns to draft and the link dies", func(t *testing.T) {
		cid, token := api.pendingCourse(t, ada)

		rr := api.do(t, ada, http.MethodPost, "/courses/cancel-verification", map[string]string{"courseId": cid})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true,"message":"Verification cancelled successfully"}`, rr.Body.String())

		rr = api.do(t, ada, http.MethodGet, "/courses/"+cid, nil)
		assert.Equal(t, "draft", decode(t, rr)["reviewStatus"])

		rr = api.do(t, anonymous, http.MethodGet, "/verification?token="+token, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("draft course is a bad request", func(t *testing.T) {
		cid := api.generatedCourse(t, ada)
		rr := api.do(t, ada, http.MethodPost, "/courses/cancel-verification", map[string]string{"courseId": cid})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_state", decode(t, rr)["error"])
	})
}

func TestReviewLink(t *testing.T) {
	api := newTestAPI(t)
	ada := api.signIn(t, "Ada", "ada@example.com")

	t.Run("view shows content but no owner or token", func(t *testing.T) {
		cid, token := api.pendingCourse(t, ada)

		rr := api.do(t, anonymous, http.MethodGet, "/verification?token="+token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		course := decode(t, rr)["course"].(map[string]any)
		assert.Equal(t, cid, course["cid"])
		assert.Equal(t, "pending_verification", course["reviewStatus"])
		assert.Len(t, course["courseContent"], 2)
		assert.Len(t, course["chapters"], 2)
		assert.NotContains(t, course, "userEmail")
		assert.NotContains(t, rr.Body.String(), "ada@example.com")
		assert.NotContains(t, rr.Body.String(), "TokenHash")
	})

	t.Run("missing token", func(t *testing.T) {
		rr := api.do(t, anonymous, http.MethodGet, "/verification", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		rr := api.do(t, anonymous, http.MethodGet, "/verification?token=bogus", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("approve consumes the link", func(t *testing.T) {
		cid, token := api.pendingCourse(t, ada)

		rr := api.do(t, anonymous, http.MethodPost, "/verification/review", map[string]string{
			"token": token, "action": "approve",
		})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"ok":true,"status":"verified"}`, rr.Body.String())

		rr = api.do(t, ada, http.MethodGet, "/courses/"+cid, nil)
		body := decode(t, rr)
		assert.Equal(t, "verified", body["reviewStatus"])
		assert.Nil(t, body["reviewFeedback"])
		assert.NotNil(t, body["reviewReviewedAt"])

		rr = api.do(t, anonymous, http.MethodPost, "/verification/review", map[string]string{
			"token": token, "action": "approve",
		})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("request changes keeps the feedback", func(t *testing.T) {
		cid, token := api.pendingCourse(t, ada)

		rr := api.do(t, anonymous, http.MethodPost, "/verification/review", map[string]string{
			"token": token, "action": "request_changes", "feedback": "  Add exercises.  ",
		})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "needs_changes", decode(t, rr)["status"])

		rr = api.do(t, ada, http.MethodGet, "/courses/"+cid, nil)
		body := decode(t, rr)
		assert.Equal(t, "needs_changes", body["reviewStatus"])
		assert.Equal(t, "Add exercises.", body["reviewFeedback"])

		// A needs_changes course can be submitted again with a fresh link.
		rr = api.do(t, ada, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": cid})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotEqual(t, token, api.notifier.lastToken(t))
	})

	t.Run("request changes needs feedback", func(t *testing.T) {
		_, token := api.pendingCourse(t, ada)

		rr := api.do(t, anonymous, http.MethodPost, "/verification/review", map[string]string{
			"token": token, "action": "request_changes",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		// Nothing was consumed.
		rr = api.do(t, anonymous, http.MethodGet, "/verification?token="+token, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown action", func(t *testing.T) {
		_, token := api.pendingCourse(t, ada)

		rr := api.do(t, anonymous, http.MethodPost, "/verification/review", map[string]string{
			"token": token, "action": "reject",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
