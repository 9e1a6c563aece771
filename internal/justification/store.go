package justification

import (
	"bytes"
	"context"
	"database/sql"
	"errors"

	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/db"
)

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const justificationColumns = `
	j.justification_id, j.justification_ulid, j.attendance_id, j.student_id, j.message, j.evidence_ref,
	j.submitted_at, j.status, j.faculty_comment, j.decided_by, j.decided_at, j.convert_to, j.conversion_applied`

func scanInto(j *Justification, extra ...any) []any {
	return append([]any{
		&j.ID, &j.ULID, &j.AttendanceID, &j.StudentID, &j.Message, &j.EvidenceRef,
		&j.SubmittedAt, &j.Status, &j.FacultyComment, &j.DecidedBy, &j.DecidedAt, &j.ConvertTo, &j.ConversionApplied,
	}, extra...)
}

// InsertPending: 同じ出席記録に Pending が残っていれば Conflict。
// 出席行を FOR UPDATE で押さえ、同時提出でも Pending は1件に保つ。
func (s *Store) InsertPending(ctx context.Context, j *Justification) error {
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var owner int64
		err := tx.QueryRowContext(ctx,
			`SELECT student_id FROM attendance WHERE attendance_id = ? FOR UPDATE`, j.AttendanceID,
		).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != j.StudentID) {
			return apierr.NotFound("attendance record not found")
		}
		if err != nil {
			return err
		}

		var pending int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM justifications WHERE attendance_id = ? AND status = 'Pending'`, j.AttendanceID,
		).Scan(&pending); err != nil {
			return err
		}
		if pending > 0 {
			return apierr.Conflict("a justification for this record is already pending review")
		}

		res, err := tx.ExecContext(ctx, `
		INSERT INTO justifications
		(justification_ulid, attendance_id, student_id, message, evidence_ref, submitted_at, status)
		VALUES (?, ?, ?, ?, ?, ?, 'Pending')`,
			j.ULID, j.AttendanceID, j.StudentID, j.Message, j.EvidenceRef, j.SubmittedAt.UTC())
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		j.ID = id
		j.Status = StatusPending
		return nil
	})
	switch {
	case err == nil:
		return nil
	case db.IsMissingReference(err):
		return apierr.NotFound("attendance record not found")
	case db.IsContention(err):
		return apierr.Conflict("concurrent submission on the same attendance record, retry")
	}
	return err
}

// Get: 無ければ (nil, nil)
func (s *Store) Get(ctx context.Context, id int64) (*Justification, error) {
	var j Justification
	err := s.db.QueryRowContext(ctx, `
	SELECT `+justificationColumns+`
	FROM justifications j
	WHERE j.justification_id = ?`, id).Scan(scanInto(&j)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.SubmittedAt = j.SubmittedAt.UTC()
	return &j, nil
}

// GetByEvidence: 証拠ファイルの参照から申請を引く。無ければ (nil, nil)
func (s *Store) GetByEvidence(ctx context.Context, ref string) (*Justification, error) {
	var j Justification
	err := s.db.QueryRowContext(ctx, `
	SELECT `+justificationColumns+`
	FROM justifications j
	WHERE j.evidence_ref = ?
	LIMIT 1`, ref).Scan(scanInto(&j)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.SubmittedAt = j.SubmittedAt.UTC()
	return &j, nil
}

// Decide: Pending の時だけ終端に書き換える。false なら既に決定済み（後勝ちで上書きしない）。
func (s *Store) Decide(ctx context.Context, id int64, d Decision) (bool, error) {
	var convert sql.NullString
	if d.ConvertTo != nil {
		convert = sql.NullString{String: string(*d.ConvertTo), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
	UPDATE justifications
	SET status = ?, faculty_comment = ?, decided_by = ?, decided_at = ?, convert_to = ?
	WHERE justification_id = ? AND status = 'Pending'`,
		string(d.Status), d.Comment, d.DecidedBy, d.DecidedAt.UTC(), convert, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) MarkConversionApplied(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE justifications SET conversion_applied = 1 WHERE justification_id = ? AND status = 'Approved'`, id)
	return err
}

// List: 教員の審査一覧 / 学生の自分の申請一覧。新しい順。
func (s *Store) List(ctx context.Context, f Filter) ([]ReviewRow, error) {
	var (
		buf  bytes.Buffer
		args []any
	)
	buf.WriteString(`
	SELECT ` + justificationColumns + `,
	       u.name, sub.code, sub.name, DATE_FORMAT(l.lecture_date, '%Y-%m-%d'), l.start_time, a.status, l.faculty_id
	FROM justifications j
	JOIN attendance a ON a.attendance_id = j.attendance_id
	JOIN lectures l   ON l.lecture_id = a.lecture_id
	JOIN subjects sub ON sub.subject_id = l.subject_id
	JOIN users u      ON u.user_id = j.student_id
	WHERE 1 = 1`)
	if f.FacultyID != nil {
		buf.WriteString(" AND l.faculty_id = ?")
		args = append(args, *f.FacultyID)
	}
	if f.StudentID != nil {
		buf.WriteString(" AND j.student_id = ?")
		args = append(args, *f.StudentID)
	}
	if f.Status != nil {
		buf.WriteString(" AND j.status = ?")
		args = append(args, string(*f.Status))
	}
	buf.WriteString(" ORDER BY j.submitted_at DESC, j.justification_id DESC")

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReviewRow
	for rows.Next() {
		var r ReviewRow
		if err := rows.Scan(scanInto(&r.Justification,
			&r.StudentName, &r.SubjectCode, &r.SubjectName, &r.LectureDate, &r.StartTime, &r.CurrentStatus, &r.FacultyID)...); err != nil {
			return nil, err
		}
		r.SubmittedAt = r.SubmittedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
