package attendance

import "time"

type CreateLectureRequest struct {
	SubjectID     int64  `json:"subject_id" binding:"required"`
	LectureDate   string `json:"lecture_date" binding:"required"` // YYYY-MM-DD
	StartTime     string `json:"start_time" binding:"required"`   // HH:MM (24h)
	WindowMins    *int   `json:"window_mins,omitempty"`
	LateAfterMins *int   `json:"late_after_mins,omitempty"`
}

type LectureResponse struct {
	LectureID     int64  `json:"lecture_id"`
	LectureULID   string `json:"lecture_ulid"`
	SubjectID     int64  `json:"subject_id"`
	SubjectCode   string `json:"subject_code,omitempty"`
	SubjectName   string `json:"subject_name,omitempty"`
	FacultyID     int64  `json:"faculty_id"`
	LectureDate   string `json:"lecture_date"`
	StartTime     string `json:"start_time"`
	WindowMins    int    `json:"window_mins"`
	LateAfterMins int    `json:"late_after_mins"`
}

type MarkRequest struct {
	StudentID      int64  `json:"student_id" binding:"required"`
	Status         Status `json:"status" binding:"required,attstatus"`
	ReasonCategory string `json:"reason_category,omitempty"`
}

type RecordResponse struct {
	AttendanceID   int64     `json:"attendance_id"`
	LectureID      int64     `json:"lecture_id"`
	StudentID      int64     `json:"student_id"`
	Status         Status    `json:"status"`
	MarkedAt       time.Time `json:"marked_at"`
	ReasonCategory string    `json:"reason_category"`
}

type MarkResponse struct {
	Record     RecordResponse `json:"record"`
	Claimed    Status         `json:"claimed"`
	Downgraded bool           `json:"downgraded"`
	Window     Window         `json:"window"`
}

type SheetStudent struct {
	StudentID int64           `json:"student_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Record    *RecordResponse `json:"record,omitempty"`
}

// MarkingSheetResponse: 出席入力画面用（講義・受講者・既存の記録・窓の状態）
type MarkingSheetResponse struct {
	Lecture  LectureResponse `json:"lecture"`
	Window   Window          `json:"window"`
	Students []SheetStudent  `json:"students"`
}

type HistoryResponse struct {
	AttendanceID   int64     `json:"attendance_id"`
	LectureID      int64     `json:"lecture_id"`
	LectureDate    string    `json:"lecture_date"`
	StartTime      string    `json:"start_time"`
	Status         Status    `json:"status"`
	ReasonCategory string    `json:"reason_category"`
	MarkedAt       time.Time `json:"marked_at"`
}
