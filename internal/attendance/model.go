package attendance

import (
	"database/sql"
	"fmt"
	"time"
)

type Status string

const (
	StatusPresent Status = "P"
	StatusLate    Status = "L"
	StatusAbsent  Status = "A"
)

func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusLate || s == StatusAbsent
}

// ParseStatus: 1文字（P/L/A）でも単語（"present", "Late" など）でも受け付ける
func ParseStatus(v string) (Status, bool) {
	switch v {
	case "P", "p", "Present", "present", "PRESENT":
		return StatusPresent, true
	case "L", "l", "Late", "late", "LATE":
		return StatusLate, true
	case "A", "a", "Absent", "absent", "ABSENT":
		return StatusAbsent, true
	}
	return "", false
}

const (
	DateLayout    = "2006-01-02"
	ClockLayout   = "15:04"
	DefaultReason = "None"
)

// Lecture は lectures テーブルの1行を表す。作成後は更新しない。
type Lecture struct {
	LectureID     int64
	LectureULID   string
	SubjectID     int64
	SubjectCode   string
	SubjectName   string
	FacultyID     int64
	LectureDate   string // YYYY-MM-DD
	StartTime     string // HH:MM
	WindowMins    int
	LateAfterMins int
}

// StartAt: 講義日 + 開始時刻を設定タイムゾーンで解釈する
func (l Lecture) StartAt(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, l.LectureDate+" "+l.StartTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("lecture %d has invalid start %q %q: %w", l.LectureID, l.LectureDate, l.StartTime, err)
	}
	return t, nil
}

// Record は attendance テーブルの1行。(lecture_id, student_id) で一意。
type Record struct {
	AttendanceID   int64
	LectureID      int64
	StudentID      int64
	Status         Status
	MarkedAt       time.Time
	MarkedBy       sql.NullInt64
	ReasonCategory string
}

// SubjectRecord: 講義情報付きの出席記録（学生の履歴・ダッシュボード用）
type SubjectRecord struct {
	Record
	SubjectID   int64
	LectureDate string
	StartTime   string
}

type Student struct {
	StudentID int64
	Name      string
	Email     string
}

func (l Lecture) toDTO() LectureResponse {
	return LectureResponse{
		LectureID:     l.LectureID,
		LectureULID:   l.LectureULID,
		SubjectID:     l.SubjectID,
		SubjectCode:   l.SubjectCode,
		SubjectName:   l.SubjectName,
		FacultyID:     l.FacultyID,
		LectureDate:   l.LectureDate,
		StartTime:     l.StartTime,
		WindowMins:    l.WindowMins,
		LateAfterMins: l.LateAfterMins,
	}
}

func (r Record) toDTO() RecordResponse {
	return RecordResponse{
		AttendanceID:   r.AttendanceID,
		LectureID:      r.LectureID,
		StudentID:      r.StudentID,
		Status:         r.Status,
		MarkedAt:       r.MarkedAt,
		ReasonCategory: r.ReasonCategory,
	}
}

func (r SubjectRecord) toHistoryDTO() HistoryResponse {
	return HistoryResponse{
		AttendanceID:   r.AttendanceID,
		LectureID:      r.LectureID,
		LectureDate:    r.LectureDate,
		StartTime:      r.StartTime,
		Status:         r.Status,
		ReasonCategory: r.ReasonCategory,
		MarkedAt:       r.MarkedAt,
	}
}
