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

var _ repository.CourseRepository = (*DB)(nil)

const courseColumns = `id, cid, owner_email, name, description, category, level, no_of_chapters,
	course_json, course_content, review_status, review_requested_at, review_token_hash,
	review_professor_email, review_feedback, review_reviewed_at, created_at, updated_at`

// CreateCourse inserts a draft course. The cid is generated here unless the
// caller already set one.
func (db *DB) CreateCourse(ctx context.Context, course *model.Course) error {
	if course.CID == "" {
		course.CID = xid.New().String()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	course.ReviewStatus = model.ReviewDraft

	layout, err := json.Marshal(course.Layout)
	if err != nil {
		return fmt.Errorf("sqlite: encoding course layout: %w", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO courses (cid, owner_email, name, description, category, level, no_of_chapters,
		     course_json, course_content, review_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		course.CID,
		course.OwnerEmail,
		course.Name,
		course.Description,
		course.Category,
		course.Level,
		course.NoOfChapters,
		string(layout),
		nullableJSON(course.CourseContent),
		string(course.ReviewStatus),
		course.CreatedAt,
		course.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("course", course.CID)
		}
		return fmt.Errorf("sqlite: inserting course %s: %w", course.CID, err)
	}

	if course.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("sqlite: reading course id: %w", err)
	}
	return nil
}

// GetCourse retrieves a course by its public identifier.
func (db *DB) GetCourse(ctx context.Context, cid string) (*model.Course, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE cid = ?`, cid)
	c, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("course", cid)
		}
		return nil, fmt.Errorf("sqlite: getting course %s: %w", cid, err)
	}
	return c, nil
}

// ListCoursesByOwner returns the owner's courses, newest first.
func (db *DB) ListCoursesByOwner(ctx context.Context, ownerEmail string, opts repository.ListOptions) ([]model.Course, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE owner_email = ? COLLATE NOCASE
		 ORDER BY id DESC LIMIT ? OFFSET ?`,
		ownerEmail, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing courses for %s: %w", ownerEmail, err)
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning course: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating courses: %w", err)
	}
	return courses, nil
}

// GetCourseByReviewToken finds the course whose pending review was issued
// the token with this hash. The hash is cleared on every exit from
// pending_verification, so consumed links stop resolving here.
func (db *DB) GetCourseByReviewToken(ctx context.Context, tokenHash string) (*model.Course, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE review_token_hash = ?`, tokenHash)
	c, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage("invalid or expired link")
		}
		return nil, fmt.Errorf("sqlite: getting course by review token: %w", err)
	}
	return c, nil
}

// contentPresent matches rows whose course_content is a JSON array or object
// with at least one element, the same test as model.ContentPresent.
const contentPresent = `CASE WHEN json_valid(course_content) THEN
		CASE json_type(course_content)
			WHEN 'array' THEN json_array_length(course_content) > 0
			WHEN 'object' THEN EXISTS (SELECT 1 FROM json_each(course_content))
			ELSE 0
		END
	ELSE 0 END`

// FindVerifiedDuplicate returns another verified course with the same name
// and category (case-insensitive) that already has generated content.
func (db *DB) FindVerifiedDuplicate(ctx context.Context, cid, name, category string) (*model.Course, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses
		 WHERE cid <> ?
		   AND name = ? COLLATE NOCASE
		   AND category = ? COLLATE NOCASE
		   AND review_status = ?
		   AND `+contentPresent+`
		 ORDER BY id ASC LIMIT 1`,
		cid, name, category, string(model.ReviewVerified),
	)
	c, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("verified course", name)
		}
		return nil, fmt.Errorf("sqlite: searching duplicates of %s: %w", cid, err)
	}
	return c, nil
}

// TransitionReview writes every review field of the course in one statement,
// but only while its current status is one of from.
//
// CONDITIONAL UPDATE:
// Reading the status and then writing leaves a window where another request
// can change it in between. Folding the expected status into the WHERE clause
// closes that window: SQLite serializes writers, so exactly one of two racing
// updates matches and the other reports zero rows affected.
func (db *DB) TransitionReview(ctx context.Context, cid string, from []model.ReviewStatus, u model.ReviewUpdate) (bool, error) {
	in, statusArgs := statusList(statusStrings(from))
	args := append(reviewArgs(u), cid)
	args = append(args, statusArgs...)

	return db.execConditional(ctx,
		`UPDATE courses SET `+reviewAssignments+`
		 WHERE cid = ? AND review_status IN (`+in+`)`,
		args...,
	)
}

// TransitionReviewByToken applies u to the course that is pending review
// under tokenHash. Two reviewers submitting the same link race on this
// statement and only the first one wins.
func (db *DB) TransitionReviewByToken(ctx context.Context, tokenHash string, u model.ReviewUpdate) (bool, error) {
	args := append(reviewArgs(u), tokenHash, string(model.ReviewPendingVerification))
	return db.execConditional(ctx,
		`UPDATE courses SET `+reviewAssignments+`
		 WHERE review_token_hash = ? AND review_status = ?`,
		args...,
	)
}

// ReplaceContent stores newly generated content and resets the course to a
// clean draft, provided the status is still one of from.
func (db *DB) ReplaceContent(ctx context.Context, cid string, from []model.ReviewStatus, content json.RawMessage) (bool, error) {
	in, statusArgs := statusList(statusStrings(from))
	args := []any{nullableJSON(content)}
	args = append(args, reviewArgs(model.DraftReview())...)
	args = append(args, cid)
	args = append(args, statusArgs...)

	return db.execConditional(ctx,
		`UPDATE courses SET course_content = ?, `+reviewAssignments+`
		 WHERE cid = ? AND review_status IN (`+in+`)`,
		args...,
	)
}

const reviewAssignments = `review_status = ?, review_token_hash = ?, review_professor_email = ?,
	review_feedback = ?, review_requested_at = ?, review_reviewed_at = ?, updated_at = ?`

func reviewArgs(u model.ReviewUpdate) []any {
	return []any{
		string(u.Status),
		nullString(u.TokenHash),
		nullString(u.ProfessorEmail),
		nullString(u.Feedback),
		nullTime(u.RequestedAt),
		nullTime(u.ReviewedAt),
		time.Now().UTC(),
	}
}

func (db *DB) execConditional(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, apperror.Conflict("course", "review token")
		}
		return false, fmt.Errorf("sqlite: updating course review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rows > 0, nil
}

func scanCourse(row rowScanner) (*model.Course, error) {
	var (
		c           model.Course
		layout      string
		content     sql.NullString
		status      string
		requestedAt sql.NullTime
		tokenHash   sql.NullString
		professor   sql.NullString
		feedback    sql.NullString
		reviewedAt  sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.CID, &c.OwnerEmail, &c.Name, &c.Description, &c.Category, &c.Level, &c.NoOfChapters,
		&layout, &content, &status, &requestedAt, &tokenHash,
		&professor, &feedback, &reviewedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if layout != "" {
		if err := json.Unmarshal([]byte(layout), &c.Layout); err != nil {
			return nil, fmt.Errorf("decoding course layout of %s: %w", c.CID, err)
		}
	}
	if content.Valid && content.String != "" {
		c.CourseContent = json.RawMessage(content.String)
	}
	c.ReviewStatus = model.ReviewStatus(status)
	c.ReviewRequestedAt = timePtr(requestedAt)
	c.ReviewTokenHash = stringPtr(tokenHash)
	c.ReviewProfessorEmail = stringPtr(professor)
	c.ReviewFeedback = stringPtr(feedback)
	c.ReviewReviewedAt = timePtr(reviewedAt)
	return &c, nil
}

func statusStrings(statuses []model.ReviewStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
