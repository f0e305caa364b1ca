package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/repository"
)

var _ repository.EnrollmentRepository = (*DB)(nil)

// CreateEnrollment enrolls a user in a course. Enrolling twice is reported as
// a Conflict by the UNIQUE (user_email, cid) constraint.
func (db *DB) CreateEnrollment(ctx context.Context, e *model.Enrollment) error {
	now := time.Now().UTC()
	e.ID = xid.New().String()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.CompletedChapters == nil {
		e.CompletedChapters = []int{}
	}

	chapters, err := json.Marshal(e.CompletedChapters)
	if err != nil {
		return fmt.Errorf("sqlite: encoding completed chapters: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO enrollments (id, cid, user_email, completed_chapters, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.CID, e.UserEmail, string(chapters), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("enrollment", e.CID)
		}
		return fmt.Errorf("sqlite: inserting enrollment for %s: %w", e.CID, err)
	}
	return nil
}

const enrolledCourseQuery = `SELECT e.id, e.cid, e.user_email, e.completed_chapters, e.created_at, e.updated_at,
	c.id, c.cid, c.owner_email, c.name, c.description, c.category, c.level, c.no_of_chapters,
	c.course_json, c.course_content, c.review_status, c.review_requested_at, c.review_token_hash,
	c.review_professor_email, c.review_feedback, c.review_reviewed_at, c.created_at, c.updated_at
	FROM enrollments e JOIN courses c ON c.cid = e.cid`

// GetEnrollment returns the user's enrollment in cid joined with the course.
func (db *DB) GetEnrollment(ctx context.Context, userEmail, cid string) (*model.EnrolledCourse, error) {
	row := db.conn.QueryRowContext(ctx,
		enrolledCourseQuery+` WHERE e.user_email = ? COLLATE NOCASE AND e.cid = ?`, userEmail, cid)
	ec, err := scanEnrolledCourse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("enrollment", cid)
		}
		return nil, fmt.Errorf("sqlite: getting enrollment %s: %w", cid, err)
	}
	return ec, nil
}

// ListEnrollments returns all of the user's enrollments, newest first.
func (db *DB) ListEnrollments(ctx context.Context, userEmail string) ([]model.EnrolledCourse, error) {
	rows, err := db.conn.QueryContext(ctx,
		enrolledCourseQuery+` WHERE e.user_email = ? COLLATE NOCASE ORDER BY e.created_at DESC, e.id DESC`, userEmail)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing enrollments for %s: %w", userEmail, err)
	}
	defer rows.Close()

	out := []model.EnrolledCourse{}
	for rows.Next() {
		ec, err := scanEnrolledCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning enrollment: %w", err)
		}
		out = append(out, *ec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating enrollments: %w", err)
	}
	return out, nil
}

// UpdateCompletedChapters replaces the set of completed chapter indexes.
func (db *DB) UpdateCompletedChapters(ctx context.Context, userEmail, cid string, chapters []int) (*model.Enrollment, error) {
	if chapters == nil {
		chapters = []int{}
	}
	encoded, err := json.Marshal(chapters)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding completed chapters: %w", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE enrollments SET completed_chapters = ?, updated_at = ?
		 WHERE user_email = ? COLLATE NOCASE AND cid = ?`,
		string(encoded), time.Now().UTC(), userEmail, cid,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating enrollment %s: %w", cid, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("enrollment", cid)
	}

	ec, err := db.GetEnrollment(ctx, userEmail, cid)
	if err != nil {
		return nil, err
	}
	return &ec.Enrollment, nil
}

func scanEnrolledCourse(row rowScanner) (*model.EnrolledCourse, error) {
	var (
		ec       model.EnrolledCourse
		chapters string
	)
	// The course half reuses scanCourse through a scanner that first
	// consumes the enrollment columns.
	course, err := scanCourse(prefixScanner{row: row, prefix: []any{
		&ec.Enrollment.ID,
		&ec.Enrollment.CID,
		&ec.Enrollment.UserEmail,
		&chapters,
		&ec.Enrollment.CreatedAt,
		&ec.Enrollment.UpdatedAt,
	}})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(chapters), &ec.Enrollment.CompletedChapters); err != nil {
		return nil, fmt.Errorf("decoding completed chapters: %w", err)
	}
	ec.Course = *course
	return &ec, nil
}

// prefixScanner prepends destinations to a Scan call.
type prefixScanner struct {
	row    rowScanner
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.row.Scan(append(append([]any{}, p.prefix...), dest...)...)
}
