package report

import (
	"context"
	"database/sql"

	"ROLLCALL-backend/internal/attendance"
)

type Subject struct {
	SubjectID int64
	Code      string
	Name      string
}

type Student struct {
	StudentID int64
	Name      string
}

// Store: 集計用の読み取り専用クエリ
type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

func (s *Store) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT subject_id, code, name FROM subjects ORDER BY code`)
	if err != nil {
		return nil, err
	}
	return scanSubjects(rows)
}

func (s *Store) ListEnrolledSubjects(ctx context.Context, studentID int64) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT s.subject_id, s.code, s.name
	FROM enrollments e JOIN subjects s ON s.subject_id = e.subject_id
	WHERE e.student_id = ?
	ORDER BY s.code`, studentID)
	if err != nil {
		return nil, err
	}
	return scanSubjects(rows)
}

func (s *Store) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT user_id, name FROM users
	WHERE role = 'student' AND is_disabled = 0
	ORDER BY name, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.StudentID, &st.Name); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListMarks: 台帳を科目付きで読む。studentID があれば本人分だけ。
func (s *Store) ListMarks(ctx context.Context, studentID *int64) ([]Mark, error) {
	q := `
	SELECT l.subject_id, a.student_id, a.status
	FROM attendance a JOIN lectures l ON l.lecture_id = a.lecture_id`
	var args []any
	if studentID != nil {
		q += " WHERE a.student_id = ?"
		args = append(args, *studentID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Mark
	for rows.Next() {
		var (
			m      Mark
			status string
		)
		if err := rows.Scan(&m.SubjectID, &m.StudentID, &status); err != nil {
			return nil, err
		}
		m.Status = attendance.Status(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanSubjects(rows *sql.Rows) ([]Subject, error) {
	defer rows.Close()
	var out []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.SubjectID, &s.Code, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
