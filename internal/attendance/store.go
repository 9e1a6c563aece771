package attendance

import (
	"bytes"
	"context"
	"database/sql"
	"errors"

	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/db"
)

// Store: lectures + attendance（台帳）。
// 台帳の一意性は uq_attendance_pair (lecture_id, student_id) に任せる。
type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const lectureColumns = `
	l.lecture_id, l.lecture_ulid, l.subject_id, s.code, s.name, l.faculty_id,
	DATE_FORMAT(l.lecture_date, '%Y-%m-%d'), l.start_time, l.window_mins, l.late_after_mins`

const recordColumns = `attendance_id, lecture_id, student_id, status, marked_at, marked_by, reason_category`

func scanLecture(row interface{ Scan(...any) error }) (Lecture, error) {
	var l Lecture
	err := row.Scan(&l.LectureID, &l.LectureULID, &l.SubjectID, &l.SubjectCode, &l.SubjectName, &l.FacultyID,
		&l.LectureDate, &l.StartTime, &l.WindowMins, &l.LateAfterMins)
	return l, err
}

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var r Record
	var status string
	err := row.Scan(&r.AttendanceID, &r.LectureID, &r.StudentID, &status, &r.MarkedAt, &r.MarkedBy, &r.ReasonCategory)
	r.Status = Status(status)
	r.MarkedAt = r.MarkedAt.UTC()
	return r, err
}

// ===== lectures =====

func (s *Store) InsertLecture(ctx context.Context, l *Lecture) error {
	const q = `
	INSERT INTO lectures
	(lecture_ulid, subject_id, faculty_id, lecture_date, start_time, window_mins, late_after_mins)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		l.LectureULID, l.SubjectID, l.FacultyID, l.LectureDate, l.StartTime, l.WindowMins, l.LateAfterMins)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.LectureID = id
	return nil
}

func (s *Store) GetLecture(ctx context.Context, lectureID int64) (Lecture, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT`+lectureColumns+`
	FROM lectures l JOIN subjects s ON s.subject_id = l.subject_id
	WHERE l.lecture_id = ?`, lectureID)
	l, err := scanLecture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lecture{}, apierr.NotFound("lecture not found")
	}
	return l, err
}

func (s *Store) ListLecturesByFaculty(ctx context.Context, facultyID int64) ([]Lecture, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT`+lectureColumns+`
	FROM lectures l JOIN subjects s ON s.subject_id = l.subject_id
	WHERE l.faculty_id = ?
	ORDER BY l.lecture_id DESC`, facultyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Lecture, 0, 16)
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ===== enrollment (read only) =====

func (s *Store) IsEnrolled(ctx context.Context, subjectID, studentID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
	SELECT 1 FROM enrollments
	WHERE subject_id = ? AND student_id = ? LIMIT 1`, subjectID, studentID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ListEnrolledStudents(ctx context.Context, subjectID int64) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT u.user_id, u.name, u.email
	FROM enrollments e JOIN users u ON u.user_id = e.student_id
	WHERE e.subject_id = ?
	ORDER BY u.name, u.user_id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.StudentID, &st.Name, &st.Email); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ===== ledger =====

// Upsert: (lecture_id, student_id) の記録を丸ごと置き換える（マージしない）。
// INSERT ... ON DUPLICATE KEY UPDATE は行ロックを取るので、同じ組への同時書き込みは直列化される。
// attendance_id は置き換え後も変わらず、参照している申請は切れない。
func (s *Store) Upsert(ctx context.Context, r Record) (Record, error) {
	const q = `
	INSERT INTO attendance (lecture_id, student_id, status, marked_at, marked_by, reason_category)
	VALUES (?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
	status          = VALUES(status),
	marked_at       = VALUES(marked_at),
	marked_by       = VALUES(marked_by),
	reason_category = VALUES(reason_category)`

	var out Record
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, q,
			r.LectureID, r.StudentID, string(r.Status), r.MarkedAt.UTC(), r.MarkedBy, r.ReasonCategory,
		); err != nil {
			return err
		}

		// 同一Tx内で読み戻す（ロック保持中なので他の書き込みは混ざらない）
		row := tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance
		WHERE lecture_id = ? AND student_id = ?`, r.LectureID, r.StudentID)
		got, err := scanRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			return apierr.Internal("upserted but not found")
		}
		if err != nil {
			return err
		}
		out = got
		return nil
	})
	if err != nil {
		return Record{}, contention(err)
	}
	return out, nil
}

// GetByPair: 無ければ (nil, nil)
func (s *Store) GetByPair(ctx context.Context, lectureID, studentID int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT `+recordColumns+`
	FROM attendance
	WHERE lecture_id = ? AND student_id = ?`, lectureID, studentID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByID: 無ければ (nil, nil)
func (s *Store) GetByID(ctx context.Context, attendanceID int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT `+recordColumns+`
	FROM attendance
	WHERE attendance_id = ?`, attendanceID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetStatus: 申請承認による変換専用。窓のチェックはしない。
// 行を FOR UPDATE で押さえてから更新するので Upsert と交互に走っても失われない。
func (s *Store) SetStatus(ctx context.Context, attendanceID int64, status Status) error {
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT attendance_id FROM attendance WHERE attendance_id = ? FOR UPDATE`, attendanceID,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return apierr.NotFound("attendance record not found")
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE attendance SET status = ? WHERE attendance_id = ?`, string(status), attendanceID)
		return err
	})
	return contention(err)
}

func (s *Store) ListForLecture(ctx context.Context, lectureID int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+recordColumns+`
	FROM attendance
	WHERE lecture_id = ?
	ORDER BY student_id`, lectureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListForStudent: 学生の全講義分の記録。subjectID があれば科目で絞る。新しい講義から順。
func (s *Store) ListForStudent(ctx context.Context, studentID int64, subjectID *int64) ([]SubjectRecord, error) {
	var (
		buf  bytes.Buffer
		args = []any{studentID}
	)
	buf.WriteString(`
	SELECT a.attendance_id, a.lecture_id, a.student_id, a.status, a.marked_at, a.marked_by, a.reason_category,
	       l.subject_id, DATE_FORMAT(l.lecture_date, '%Y-%m-%d'), l.start_time
	FROM attendance a JOIN lectures l ON l.lecture_id = a.lecture_id
	WHERE a.student_id = ?`)
	if subjectID != nil {
		buf.WriteString(" AND l.subject_id = ?")
		args = append(args, *subjectID)
	}
	buf.WriteString(" ORDER BY l.lecture_date DESC, l.start_time DESC, a.attendance_id DESC")

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubjectRecord
	for rows.Next() {
		var (
			sr     SubjectRecord
			status string
		)
		if err := rows.Scan(&sr.AttendanceID, &sr.LectureID, &sr.StudentID, &status, &sr.MarkedAt, &sr.MarkedBy,
			&sr.ReasonCategory, &sr.SubjectID, &sr.LectureDate, &sr.StartTime); err != nil {
			return nil, err
		}
		sr.Status = Status(status)
		sr.MarkedAt = sr.MarkedAt.UTC()
		out = append(out, sr)
	}
	return out, rows.Err()
}

func contention(err error) error {
	if err != nil && db.IsContention(err) {
		return apierr.Conflict("concurrent update on the same attendance record, retry")
	}
	return err
}
