package justification

import (
	"database/sql"
	"time"

	"ROLLCALL-backend/internal/attendance"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Terminal: Approved / Rejected からの遷移は無い
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

const maxMessageLen = 2000

// Justification は justifications テーブルの1行。
// AttendanceID は参照のみ（台帳の置き換えでも attendance_id は変わらない）。
type Justification struct {
	ID                int64
	ULID              string
	AttendanceID      int64
	StudentID         int64
	Message           string
	EvidenceRef       sql.NullString
	SubmittedAt       time.Time
	Status            Status
	FacultyComment    sql.NullString
	DecidedBy         sql.NullInt64
	DecidedAt         sql.NullTime
	ConvertTo         sql.NullString
	ConversionApplied bool
}

// PendingConversion: 承認済みで台帳への書き戻しがまだのもの
func (j Justification) PendingConversion() bool {
	return j.Status == StatusApproved && j.ConvertTo.Valid && !j.ConversionApplied
}

// Decision: Pending → 終端 への一回きりの書き込み内容
type Decision struct {
	Status    Status
	Comment   string
	DecidedBy int64
	DecidedAt time.Time
	ConvertTo *attendance.Status
}

// ReviewRow: 一覧表示用に学生・科目・講義・現在の出席状態を結合したもの
type ReviewRow struct {
	Justification
	StudentName   string
	SubjectCode   string
	SubjectName   string
	LectureDate   string
	StartTime     string
	CurrentStatus attendance.Status
	FacultyID     int64
}

// Filter: nil の項目は絞り込まない
type Filter struct {
	FacultyID *int64
	StudentID *int64
	Status    *Status
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func (j Justification) toDTO() JustificationResponse {
	res := JustificationResponse{
		JustificationID:   j.ID,
		ULID:              j.ULID,
		AttendanceID:      j.AttendanceID,
		StudentID:         j.StudentID,
		Message:           j.Message,
		EvidenceRef:       nullStr(j.EvidenceRef),
		SubmittedAt:       j.SubmittedAt,
		Status:            j.Status,
		FacultyComment:    nullStr(j.FacultyComment),
		ConvertTo:         nullStr(j.ConvertTo),
		ConversionApplied: j.ConversionApplied,
	}
	if j.DecidedBy.Valid {
		v := j.DecidedBy.Int64
		res.DecidedBy = &v
	}
	if j.DecidedAt.Valid {
		t := j.DecidedAt.Time
		res.DecidedAt = &t
	}
	return res
}

func (r ReviewRow) toDTO() ReviewResponse {
	return ReviewResponse{
		JustificationResponse: r.Justification.toDTO(),
		StudentName:           r.StudentName,
		SubjectCode:           r.SubjectCode,
		SubjectName:           r.SubjectName,
		LectureDate:           r.LectureDate,
		StartTime:             r.StartTime,
		CurrentStatus:         r.CurrentStatus,
	}
}
