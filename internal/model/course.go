package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// ReviewStatus is a course's position in the verification workflow.
type ReviewStatus string

const (
	ReviewDraft               ReviewStatus = "draft"
	ReviewPendingVerification ReviewStatus = "pending_verification"
	ReviewVerified            ReviewStatus = "verified"
	ReviewNeedsChanges        ReviewStatus = "needs_changes"
)

// Valid reports whether s is one of the known statuses.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewDraft, ReviewPendingVerification, ReviewVerified, ReviewNeedsChanges:
		return true
	}
	return false
}

// Chapter is one entry of the course outline written by the author.
type Chapter struct {
	ChapterName string   `json:"chapterName" validate:"required,max=255"`
	Duration    string   `json:"duration,omitempty"`
	Topics      []string `json:"topics,omitempty"`
}

// CourseLayout is the outline a course is generated from. It is decoded
// once at the HTTP boundary and stored as JSON.
type CourseLayout struct {
	Name         string    `json:"name" validate:"required,max=255"`
	Description  string    `json:"description,omitempty" validate:"max=2000"`
	Category     string    `json:"category" validate:"required,max=255"`
	Level        string    `json:"level,omitempty" validate:"max=64"`
	NoOfChapters int       `json:"noOfChapters" validate:"gte=0,lte=50"`
	Chapters     []Chapter `json:"chapters" validate:"dive"`
}

// Video is a tutorial video attached to a generated chapter.
type Video struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// ChapterContent is the generated material for one chapter. CourseData is
// whatever the generator produced and is not interpreted here.
type ChapterContent struct {
	CourseData   json.RawMessage `json:"courseData"`
	YoutubeVideo []Video         `json:"youtubeVideo"`
}

// Course holds the authoring and review state of a course.
//
// The review fields move together: ReviewTokenHash is set only while the
// course is pending_verification, and ReviewFeedback only while it is
// needs_changes. The repository writes all of them in one statement.
type Course struct {
	ID            int64           `json:"-"`
	CID           string          `json:"cid"`
	OwnerEmail    string          `json:"userEmail"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Level         string          `json:"level"`
	NoOfChapters  int             `json:"noOfChapters"`
	Layout        CourseLayout    `json:"courseJson"`
	CourseContent json.RawMessage `json:"courseContent,omitempty"`

	ReviewStatus         ReviewStatus `json:"reviewStatus"`
	ReviewRequestedAt    *time.Time   `json:"reviewRequestedAt"`
	ReviewTokenHash      *string      `json:"-"`
	ReviewProfessorEmail *string      `json:"reviewProfessorEmail"`
	ReviewFeedback       *string      `json:"reviewFeedback"`
	ReviewReviewedAt     *time.Time   `json:"reviewReviewedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Status returns the review status, treating an unset value as draft.
func (c Course) Status() ReviewStatus {
	if c.ReviewStatus == "" {
		return ReviewDraft
	}
	return c.ReviewStatus
}

// HasContent reports whether generated content is present. Only a
// non-empty JSON array or object counts.
func (c Course) HasContent() bool {
	return ContentPresent(c.CourseContent)
}

// ContentPresent reports whether raw holds a non-empty JSON array or object.
func ContentPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		return json.Unmarshal(trimmed, &items) == nil && len(items) > 0
	case '{':
		var fields map[string]json.RawMessage
		return json.Unmarshal(trimmed, &fields) == nil && len(fields) > 0
	}
	return false
}

// ReviewUpdate is the full set of review fields written by one transition.
// Nil pointers are stored as NULL.
type ReviewUpdate struct {
	Status         ReviewStatus
	TokenHash      *string
	ProfessorEmail *string
	Feedback       *string
	RequestedAt    *time.Time
	ReviewedAt     *time.Time
}

// DraftReview clears every review field and returns the course to draft.
func DraftReview() ReviewUpdate {
	return ReviewUpdate{Status: ReviewDraft}
}
