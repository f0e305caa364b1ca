package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/notify"
	"github.com/sakif/learnify/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore is an in-memory implementation of every repository interface.
// The review transitions mirror the conditional updates of the SQLite
// store: they only apply while the row's status is one of the expected
// ones, and report whether anything changed.

type fakeStore struct {
	mu          sync.Mutex
	users       map[string]*model.User // keyed by email
	sessions    map[string]model.Session
	professors  []model.Professor
	courses     map[string]*model.Course // keyed by cid
	enrollments map[string]*model.Enrollment
	nextID      int

	// set to simulate failures
	listProfessorsErr error
}

var (
	_ repository.UserRepository       = (*fakeStore)(nil)
	_ repository.SessionRepository    = (*fakeStore)(nil)
	_ repository.ProfessorRepository  = (*fakeStore)(nil)
	_ repository.CourseRepository     = (*fakeStore)(nil)
	_ repository.EnrollmentRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]*model.User),
		sessions:    make(map[string]model.Session),
		courses:     make(map[string]*model.Course),
		enrollments: make(map[string]*model.Enrollment),
		professors: []model.Professor{
			{Email: "anuj@learnify.example", Name: "Dr Anuj", Specializations: []string{"Python", "JavaScript", "HTML", "SQL"}},
			{Email: "magar@learnify.example", Name: "Magar", Specializations: []string{"Java", "TypeScript", "React", "Node.js", "Go"}},
			{Email: "priya.nair@learnify.example", Name: "Priya Nair", Specializations: []string{"Kotlin", "Swift", "Rust"}},
			{Email: "emma.rodriguez@learnify.example", Name: "Emma Rodriguez", Specializations: []string{"Solidity", "Dart", "CSS", "UI/UX"}},
		},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.Email]; ok {
		return apperror.Conflict("user", u.Email)
	}
	u.ID = f.id("user")
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.Email] = &stored
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(email)]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	out := *u
	return &out, nil
}

func (f *fakeStore) UpdateUserName(_ context.Context, email, name string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	u.Name = name
	out := *u
	return &out, nil
}

func (f *fakeStore) UpsertUserByEmail(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.users[u.Email]; ok {
		existing.AvatarURL = u.AvatarURL
		if existing.Name == "" {
			existing.Name = u.Name
		}
		*u = *existing
		return nil
	}
	u.ID = f.id("user")
	stored := *u
	f.users[u.Email] = &stored
	return nil
}

// --- sessions ---

func (f *fakeStore) CreateSession(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.TokenHash] = *s
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, hash string, now time.Time) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[hash]
	if !ok || s.Expired(now) {
		return nil, apperror.NotFoundMessage("session not found")
	}
	return &s, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, hash)
	return nil
}

func (f *fakeStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for h, s := range f.sessions {
		if s.Expired(now) {
			delete(f.sessions, h)
			n++
		}
	}
	return n, nil
}

// --- professors ---

func (f *fakeStore) ListProfessors(context.Context) ([]model.Professor, error) {
	if f.listProfessorsErr != nil {
		return nil, f.listProfessorsErr
	}
	return slices.Clone(f.professors), nil
}

func (f *fakeStore) UpsertProfessor(_ context.Context, p *model.Professor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.professors {
		if strings.EqualFold(f.professors[i].Email, p.Email) {
			f.professors[i] = *p
			return nil
		}
	}
	f.professors = append(f.professors, *p)
	return nil
}

// --- courses ---

func (f *fakeStore) CreateCourse(_ context.Context, c *model.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.CID == "" {
		c.CID = f.id("cid")
	}
	if c.ReviewStatus == "" {
		c.ReviewStatus = model.ReviewDraft
	}
	stored := *c
	f.courses[c.CID] = &stored
	return nil
}

func (f *fakeStore) GetCourse(_ context.Context, cid string) (*model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[cid]
	if !ok {
		return nil, apperror.NotFound("course", cid)
	}
	out := *c
	return &out, nil
}

func (f *fakeStore) ListCoursesByOwner(_ context.Context, owner string, _ repository.ListOptions) ([]model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Course{}
	for _, c := range f.courses {
		if c.OwnerEmail == owner {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCourseByReviewToken(_ context.Context, hash string) (*model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.courses {
		if c.ReviewTokenHash != nil && *c.ReviewTokenHash == hash {
			out := *c
			return &out, nil
		}
	}
	return nil, apperror.NotFoundMessage("invalid or expired link")
}

func (f *fakeStore) FindVerifiedDuplicate(_ context.Context, cid, name, category string) (*model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.courses {
		if c.CID != cid && strings.EqualFold(c.Name, name) && strings.EqualFold(c.Category, category) &&
			c.ReviewStatus == model.ReviewVerified && c.HasContent() {
			out := *c
			return &out, nil
		}
	}
	return nil, apperror.NotFound("verified course", name)
}

func (f *fakeStore) TransitionReview(_ context.Context, cid string, from []model.ReviewStatus, u model.ReviewUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[cid]
	if !ok || !slices.Contains(from, c.Status()) {
		return false, nil
	}
	applyReview(c, u)
	return true, nil
}

func (f *fakeStore) TransitionReviewByToken(_ context.Context, hash string, u model.ReviewUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.courses {
		if c.ReviewTokenHash != nil && *c.ReviewTokenHash == hash && c.Status() == model.ReviewPendingVerification {
			applyReview(c, u)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ReplaceContent(_ context.Context, cid string, from []model.ReviewStatus, content json.RawMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[cid]
	if !ok || !slices.Contains(from, c.Status()) {
		return false, nil
	}
	c.CourseContent = content
	applyReview(c, model.DraftReview())
	return true, nil
}

func applyReview(c *model.Course, u model.ReviewUpdate) {
	c.ReviewStatus = u.Status
	c.ReviewTokenHash = u.TokenHash
	c.ReviewProfessorEmail = u.ProfessorEmail
	c.ReviewFeedback = u.Feedback
	c.ReviewRequestedAt = u.RequestedAt
	c.ReviewReviewedAt = u.ReviewedAt
}

// --- enrollments ---

func enrollmentKey(email, cid string) string { return email + "|" + cid }

func (f *fakeStore) CreateEnrollment(_ context.Context, e *model.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := enrollmentKey(e.UserEmail, e.CID)
	if _, ok := f.enrollments[key]; ok {
		return apperror.Conflict("enrollment", e.CID)
	}
	e.ID = f.id("enr")
	stored := *e
	f.enrollments[key] = &stored
	return nil
}

func (f *fakeStore) GetEnrollment(_ context.Context, email, cid string) (*model.EnrolledCourse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[enrollmentKey(email, cid)]
	if !ok {
		return nil, apperror.NotFound("enrollment", cid)
	}
	c := f.courses[cid]
	return &model.EnrolledCourse{Enrollment: *e, Course: *c}, nil
}

func (f *fakeStore) ListEnrollments(_ context.Context, email string) ([]model.EnrolledCourse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.EnrolledCourse{}
	for _, e := range f.enrollments {
		if e.UserEmail == email {
			out = append(out, model.EnrolledCourse{Enrollment: *e, Course: *f.courses[e.CID]})
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateCompletedChapters(_ context.Context, email, cid string, chapters []int) (*model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[enrollmentKey(email, cid)]
	if !ok {
		return nil, apperror.NotFound("enrollment", cid)
	}
	e.CompletedChapters = chapters
	out := *e
	return &out, nil
}

// =========================================================================
// FAKE NOTIFIER
// =========================================================================

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []notify.ReviewRequest
	result notify.Result
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{result: notify.Result{OK: true}}
}

func (n *fakeNotifier) SendReviewRequest(_ context.Context, req notify.ReviewRequest) notify.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, req)
	return n.result
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const (
	testOwner    = "owner@example.com"
	testStranger = "stranger@example.com"
)

var sampleContent = json.RawMessage(`[{"courseData":{"chapterName":"Setup"},"youtubeVideo":[]}]`)

// addCourse stores a course owned by owner with the given status and content.
func (f *fakeStore) addCourse(cid, name, category string, status model.ReviewStatus, content json.RawMessage) *model.Course {
	c := &model.Course{
		CID:           cid,
		OwnerEmail:    testOwner,
		Name:          name,
		Category:      category,
		Level:         "Beginner",
		Layout:        model.CourseLayout{Name: name, Category: category, Chapters: []model.Chapter{{ChapterName: "Setup"}, {ChapterName: "Basics"}}},
		CourseContent: content,
		ReviewStatus:  status,
	}
	f.courses[cid] = c
	return c
}

func (f *fakeStore) course(cid string) model.Course {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.courses[cid]
}
