package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/db"
)

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

// ===== subjects =====

func (s *Store) InsertSubject(ctx context.Context, code, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO subjects (code, name) VALUES (?, ?)`, code, name)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return 0, apierr.Conflict("subject code already exists")
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ListSubjects(ctx context.Context, p Page) ([]SubjectResponse, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects`).Scan(&total); err != nil {
		return nil, 0, err
	}
	// Order は normalize 済み（asc / desc のみ）
	q := `SELECT subject_id, code, name FROM subjects ORDER BY code ` + strings.ToUpper(p.Order) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []SubjectResponse{}
	for rows.Next() {
		var r SubjectResponse
		if err := rows.Scan(&r.SubjectID, &r.Code, &r.Name); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// ===== enrollments =====

// Enroll: 既に登録済みなら created=false（冪等）。学生以外は登録できない。
func (s *Store) Enroll(ctx context.Context, studentID, subjectID int64) (bool, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM users WHERE user_id = ?`, studentID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apierr.NotFound("student not found")
	}
	if err != nil {
		return false, err
	}
	if role != "student" {
		return false, apierr.Invalid("only students can be enrolled")
	}

	// IGNORE だと FK 違反(1452)まで警告に落ちるので、重複だけを no-op にする。
	// 既存行は変化しないため RowsAffected は 0（clientFoundRows は無効のまま）。
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO enrollments (student_id, subject_id) VALUES (?, ?)
	ON DUPLICATE KEY UPDATE student_id = student_id`, studentID, subjectID)
	if err != nil {
		if db.IsMissingReference(err) {
			return false, apierr.NotFound("subject not found")
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ListEnrollments(ctx context.Context, subjectID *int64, p Page) ([]EnrollmentResponse, int64, error) {
	where := ""
	var args []any
	if subjectID != nil {
		where = " WHERE e.subject_id = ?"
		args = append(args, *subjectID)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments e`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `
	SELECT e.student_id, u.name, e.subject_id, sub.code
	FROM enrollments e
	JOIN users u      ON u.user_id = e.student_id
	JOIN subjects sub ON sub.subject_id = e.subject_id` + where + `
	ORDER BY sub.code ` + strings.ToUpper(p.Order) + `, u.name
	LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []EnrollmentResponse{}
	for rows.Next() {
		var r EnrollmentResponse
		if err := rows.Scan(&r.StudentID, &r.StudentName, &r.SubjectID, &r.SubjectCode); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}
