package model

import (
	"encoding/json"
	"time"
)

// Enrollment records that a learner joined a course and tracks which
// chapters they finished.
type Enrollment struct {
	ID                string    `json:"id"`
	CID               string    `json:"cid"`
	UserEmail         string    `json:"userEmail"`
	CompletedChapters []int     `json:"completedChapters"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// EnrolledCourse pairs an enrollment with the course it points at.
type EnrolledCourse struct {
	Enrollment Enrollment `json:"enrollment"`
	Course     Course     `json:"course"`
}

// LearnerCourse is the part of a course an enrolled learner may see. The
// outline and content stay empty until a professor has verified the course;
// owner and review details are never included.
type LearnerCourse struct {
	CID           string          `json:"cid"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Level         string          `json:"level"`
	NoOfChapters  int             `json:"noOfChapters"`
	Layout        *CourseLayout   `json:"courseJson,omitempty"`
	CourseContent json.RawMessage `json:"courseContent,omitempty"`
	ReviewStatus  ReviewStatus    `json:"reviewStatus"`
}

// ForLearner returns the learner's view of c.
func (c Course) ForLearner() LearnerCourse {
	lc := LearnerCourse{
		CID:          c.CID,
		Name:         c.Name,
		Description:  c.Description,
		Category:     c.Category,
		Level:        c.Level,
		NoOfChapters: c.NoOfChapters,
		ReviewStatus: c.Status(),
	}
	if lc.ReviewStatus == ReviewVerified {
		layout := c.Layout
		lc.Layout = &layout
		lc.CourseContent = c.CourseContent
	}
	return lc
}

// LearnerEnrollment is an enrollment as returned to the learner.
type LearnerEnrollment struct {
	Enrollment Enrollment    `json:"enrollment"`
	Course     LearnerCourse `json:"course"`
}

func (ec EnrolledCourse) ForLearner() LearnerEnrollment {
	return LearnerEnrollment{Enrollment: ec.Enrollment, Course: ec.Course.ForLearner()}
}
