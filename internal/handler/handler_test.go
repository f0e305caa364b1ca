package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/learnify/internal/auth"
	"github.com/sakif/learnify/internal/generator"
	"github.com/sakif/learnify/internal/handler"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/notify"
	sqliteRepo "github.com/sakif/learnify/internal/repository/sqlite"
	"github.com/sakif/learnify/internal/service"
)

const linkPrefix = "http://app.test/verify/"

// fakeNotifier records every review request and answers with result.
type fakeNotifier struct {
	mu       sync.Mutex
	result   notify.Result
	requests []notify.ReviewRequest
}

func (f *fakeNotifier) SendReviewRequest(_ context.Context, req notify.ReviewRequest) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result
}

func (f *fakeNotifier) lastToken(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no review request was sent")
	return strings.TrimPrefix(f.requests[len(f.requests)-1].Link, linkPrefix)
}

type stubGenerator struct{}

func (stubGenerator) GenerateChapter(_ context.Context, _ model.CourseLayout, ch model.Chapter) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"chapterName": ch.ChapterName, "body": "generated"})
}

type stubVideos struct{}

func (stubVideos) Search(context.Context, string) ([]model.Video, error) {
	return []model.Video{{VideoID: "v1", Title: "intro"}}, nil
}

// fakeGitHub stands in for the OAuth provider.
type fakeGitHub struct {
	user *auth.GitHubUser
	err  error
}

func (f *fakeGitHub) AuthURL(state string) string {
	return "https://github.test/login/oauth/authorize?state=" + state
}

func (f *fakeGitHub) Exchange(context.Context, string) (*auth.GitHubUser, error) {
	return f.user, f.err
}

type testAPI struct {
	router   http.Handler
	notifier *fakeNotifier
	github   *fakeGitHub
	courses  int
}

// newTestAPI wires the real services over an in-memory database and mounts
// the handlers the same way the server does.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions := auth.NewSessionManager(db, time.Hour)
	passwords := auth.NewPasswordServiceForTest(4)
	states, err := auth.NewStateSigner("test-state-signing-key")
	require.NoError(t, err)

	notifier := &fakeNotifier{result: notify.Result{OK: true}}
	github := &fakeGitHub{user: &auth.GitHubUser{ID: 7, Login: "octo", Name: "Octo Cat", Email: "octo@example.com"}}

	authSvc := service.NewAuthService(db, sessions, passwords, logger)
	courseSvc := service.NewCourseService(db, generator.NewPipeline(stubGenerator{}, stubVideos{}, logger), logger)
	reviewSvc := service.NewReviewService(db, db, notifier, func(raw string) string { return linkPrefix + raw }, logger)
	enrollSvc := service.NewEnrollmentService(db, db, logger)

	authH := handler.NewAuthHandler(authSvc, auth.CookiePolicy{MaxAge: time.Hour}, "http://app.test", logger).
		WithGitHub(github, states)
	userH := handler.NewUserHandler(authSvc, logger)
	courseH := handler.NewCourseHandler(courseSvc, logger)
	verifyH := handler.NewVerificationHandler(reviewSvc, logger)
	profH := handler.NewProfessorHandler(service.NewProfessorService(db), logger)
	enrollH := handler.NewEnrollmentHandler(enrollSvc, logger)

	r := chi.NewRouter()
	r.Use(auth.NewIdentityResolver(sessions, logger).Identify)
	r.Post("/auth/sign-up", authH.HandleSignUp)
	r.Post("/auth/sign-in", authH.HandleSignIn)
	r.Post("/auth/sign-out", authH.HandleSignOut)
	r.Get("/auth/me", authH.HandleMe)
	r.Get("/auth/github/login", authH.HandleGitHubLogin)
	r.Get("/auth/github/callback", authH.HandleGitHubCallback)
	r.Get("/professors", profH.HandleList)
	r.Get("/verification", verifyH.HandleView)
	r.Post("/verification/review", verifyH.HandleReview)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireIdentity)
		r.Patch("/user", userH.HandleUpdate)
		r.Post("/courses", courseH.HandleCreate)
		r.Get("/courses", courseH.HandleList)
		r.Get("/courses/{cid}", courseH.HandleGet)
		r.Post("/courses/generate-content", courseH.HandleGenerateContent)
		r.Post("/courses/submit-verification", verifyH.HandleSubmit)
		r.Post("/courses/cancel-verification", verifyH.HandleCancel)
		r.Post("/enroll-course", enrollH.HandleEnroll)
		r.Get("/enroll-course", enrollH.HandleGet)
		r.Put("/enroll-course", enrollH.HandleProgress)
	})

	return &testAPI{router: r, notifier: notifier, github: github}
}

// caller is how a test request identifies itself: a session cookie, the
// legacy header, or nothing.
type caller struct {
	cookie *http.Cookie
	email  string
}

var anonymous = caller{}

func as(email string) caller { return caller{email: email} }

func (a *testAPI) do(t *testing.T, c caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if c.email != "" {
		req.Header.Set(auth.LegacyIdentityHeader, c.email)
	}

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// signIn creates an account and returns a caller carrying its session cookie.
func (a *testAPI) signIn(t *testing.T, name, email string) caller {
	t.Helper()

	rr := a.do(t, anonymous, http.MethodPost, "/auth/sign-up", map[string]string{
		"name": name, "email": email, "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = a.do(t, anonymous, http.MethodPost, "/auth/sign-in", map[string]string{
		"email": email, "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	cookie := sessionCookie(rr)
	require.NotNil(t, cookie, "sign-in did not set the session cookie")
	return caller{cookie: cookie}
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

// createCourse stores a Python course owned by c and returns its cid. Names
// are unique so the duplicate-course guard stays out of the way.
func (a *testAPI) createCourse(t *testing.T, c caller) string {
	t.Helper()
	a.courses++
	return a.createNamedCourse(t, c, fmt.Sprintf("Python Foundations %d", a.courses))
}

func (a *testAPI) createNamedCourse(t *testing.T, c caller, name string) string {
	t.Helper()
	rr := a.do(t, c, http.MethodPost, "/courses", map[string]any{
		"name":         name,
		"description":  "From zero to scripts",
		"category":     "Programming",
		"level":        "Beginner",
		"noOfChapters": 2,
		"chapters": []map[string]any{
			{"chapterName": "Variables", "topics": []string{"names", "types"}},
			{"chapterName": "Loops"},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	cid, _ := decode(t, rr)["cid"].(string)
	require.NotEmpty(t, cid)
	return cid
}

// generatedCourse creates a course and generates its content.
func (a *testAPI) generatedCourse(t *testing.T, c caller) string {
	t.Helper()
	return a.generate(t, c, a.createCourse(t, c))
}

func (a *testAPI) generate(t *testing.T, c caller, cid string) string {
	t.Helper()
	rr := a.do(t, c, http.MethodPost, "/courses/generate-content", map[string]string{"courseId": cid})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return cid
}

// pendingCourse creates a generated course, submits it, and returns the cid
// and the raw review token from the link.
func (a *testAPI) pendingCourse(t *testing.T, c caller) (cid, token string) {
	t.Helper()
	cid = a.generatedCourse(t, c)
	rr := a.do(t, c, http.MethodPost, "/courses/submit-verification", map[string]string{"courseId": cid})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return cid, a.notifier.lastToken(t)
}
