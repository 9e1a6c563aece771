package justification

import (
	"io"
	"time"

	"ROLLCALL-backend/internal/attendance"
)

// SubmitInput: multipart の message と任意の proof ファイル
type SubmitInput struct {
	Message  string
	Filename string
	File     io.Reader // nil なら証拠なし
}

type DecisionRequest struct {
	Action    Status  `json:"action" binding:"required,oneof=Approved Rejected"`
	Comment   string  `json:"comment"`
	ConvertTo *string `json:"convert_to,omitempty"`
}

type JustificationResponse struct {
	JustificationID   int64      `json:"justification_id"`
	ULID              string     `json:"justification_ulid"`
	AttendanceID      int64      `json:"attendance_id"`
	StudentID         int64      `json:"student_id"`
	Message           string     `json:"message"`
	EvidenceRef       *string    `json:"evidence_ref,omitempty"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	Status            Status     `json:"status"`
	FacultyComment    *string    `json:"faculty_comment,omitempty"`
	DecidedBy         *int64     `json:"decided_by,omitempty"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
	ConvertTo         *string    `json:"convert_to,omitempty"`
	ConversionApplied bool       `json:"conversion_applied"`
}

type ReviewResponse struct {
	JustificationResponse
	StudentName   string            `json:"student_name"`
	SubjectCode   string            `json:"subject_code"`
	SubjectName   string            `json:"subject_name"`
	LectureDate   string            `json:"lecture_date"`
	StartTime     string            `json:"start_time"`
	CurrentStatus attendance.Status `json:"current_status"`
}
