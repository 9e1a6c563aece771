package attendance

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/auth"
	"ROLLCALL-backend/internal/platform/db"
	"ROLLCALL-backend/internal/platform/metrics"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// LectureStore: Service が使う永続化の口（*Store が実装）
type LectureStore interface {
	InsertLecture(ctx context.Context, l *Lecture) error
	GetLecture(ctx context.Context, lectureID int64) (Lecture, error)
	ListLecturesByFaculty(ctx context.Context, facultyID int64) ([]Lecture, error)
	IsEnrolled(ctx context.Context, subjectID, studentID int64) (bool, error)
	ListEnrolledStudents(ctx context.Context, subjectID int64) ([]Student, error)
	Upsert(ctx context.Context, r Record) (Record, error)
	ListForLecture(ctx context.Context, lectureID int64) ([]Record, error)
	ListForStudent(ctx context.Context, studentID int64, subjectID *int64) ([]SubjectRecord, error)
}

type Defaults struct {
	WindowMins    int
	LateAfterMins int
}

const maxReasonLen = 64

// ===== Service本体 =====

type Service struct {
	store    LectureStore
	clock    Clock
	id       IDGen
	loc      *time.Location
	defaults Defaults
}

func NewService(store LectureStore, loc *time.Location, d Defaults) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:    store,
		clock:    realClock{},
		id:       ulidGen{},
		loc:      loc,
		defaults: d,
	}
}

// POST /lectures
func (s *Service) CreateLecture(ctx context.Context, actor auth.Actor, in CreateLectureRequest) (LectureResponse, error) {
	if in.SubjectID <= 0 {
		return LectureResponse{}, apierr.Invalid("subject_id is required")
	}
	date := strings.TrimSpace(in.LectureDate)
	if _, err := time.ParseInLocation(DateLayout, date, s.loc); err != nil {
		return LectureResponse{}, apierr.Invalid("lecture_date must be YYYY-MM-DD")
	}
	start := strings.TrimSpace(in.StartTime)
	if _, err := time.ParseInLocation(ClockLayout, start, s.loc); err != nil {
		return LectureResponse{}, apierr.Invalid("start_time must be HH:MM (24h)")
	}

	window := s.defaults.WindowMins
	if in.WindowMins != nil {
		window = *in.WindowMins
	}
	lateAfter := s.defaults.LateAfterMins
	if in.LateAfterMins != nil {
		lateAfter = *in.LateAfterMins
	}
	if window < 0 || lateAfter < 0 {
		return LectureResponse{}, apierr.Invalid("window_mins and late_after_mins must be >= 0")
	}
	if lateAfter > window {
		// 受け付けるが、窓が先に閉じるので遅刻変換は発生しない
		log.Printf("[WARN] lecture for subject %d: late_after_mins=%d exceeds window_mins=%d", in.SubjectID, lateAfter, window)
	}

	idStr, err := s.id.New()
	if err != nil {
		return LectureResponse{}, apierr.Internal("failed to generate lecture id")
	}

	l := Lecture{
		LectureULID:   idStr,
		SubjectID:     in.SubjectID,
		FacultyID:     actor.ID,
		LectureDate:   date,
		StartTime:     start,
		WindowMins:    window,
		LateAfterMins: lateAfter,
	}
	if err := s.store.InsertLecture(ctx, &l); err != nil {
		if db.IsMissingReference(err) {
			return LectureResponse{}, apierr.NotFound("subject not found")
		}
		return LectureResponse{}, apierr.Wrap(err)
	}
	return l.toDTO(), nil
}

// GET /lectures
func (s *Service) ListLectures(ctx context.Context, actor auth.Actor) ([]LectureResponse, error) {
	rows, err := s.store.ListLecturesByFaculty(ctx, actor.ID)
	if err != nil {
		return nil, apierr.Wrap(err)
	}
	out := make([]LectureResponse, 0, len(rows))
	for _, l := range rows {
		out = append(out, l.toDTO())
	}
	return out, nil
}

// GET /lectures/:id/marking
func (s *Service) MarkingSheet(ctx context.Context, actor auth.Actor, lectureID int64) (MarkingSheetResponse, error) {
	lec, err := s.ownedLecture(ctx, actor, lectureID)
	if err != nil {
		return MarkingSheetResponse{}, err
	}
	w, err := s.window(lec)
	if err != nil {
		return MarkingSheetResponse{}, err
	}

	students, err := s.store.ListEnrolledStudents(ctx, lec.SubjectID)
	if err != nil {
		return MarkingSheetResponse{}, apierr.Wrap(err)
	}
	records, err := s.store.ListForLecture(ctx, lec.LectureID)
	if err != nil {
		return MarkingSheetResponse{}, apierr.Wrap(err)
	}
	byStudent := make(map[int64]Record, len(records))
	for _, r := range records {
		byStudent[r.StudentID] = r
	}

	sheet := MarkingSheetResponse{
		Lecture:  lec.toDTO(),
		Window:   w,
		Students: make([]SheetStudent, 0, len(students)),
	}
	for _, st := range students {
		row := SheetStudent{StudentID: st.StudentID, Name: st.Name, Email: st.Email}
		if r, ok := byStudent[st.StudentID]; ok {
			dto := r.toDTO()
			row.Record = &dto
		}
		sheet.Students = append(sheet.Students, row)
	}
	return sheet, nil
}

// POST /lectures/:id/marks
// 窓の判定 → 分類（遅刻への自動変換）→ 台帳へ置き換え書き込み。
func (s *Service) Mark(ctx context.Context, actor auth.Actor, lectureID int64, in MarkRequest) (MarkResponse, error) {
	if in.StudentID <= 0 {
		return MarkResponse{}, apierr.Invalid("student_id is required")
	}
	reason := strings.TrimSpace(in.ReasonCategory)
	if reason == "" {
		reason = DefaultReason
	}
	if len(reason) > maxReasonLen {
		return MarkResponse{}, apierr.Invalid(fmt.Sprintf("reason_category must be at most %d bytes", maxReasonLen))
	}

	lec, err := s.ownedLecture(ctx, actor, lectureID)
	if err != nil {
		return MarkResponse{}, err
	}
	start, err := lec.StartAt(s.loc)
	if err != nil {
		return MarkResponse{}, apierr.Internal(err.Error())
	}
	now := s.clock.Now()
	w := Evaluate(start, now, lec.WindowMins, lec.LateAfterMins)

	claimed := in.Status
	if st, ok := ParseStatus(string(in.Status)); ok {
		claimed = st
	}
	final, err := Classify(claimed, w.ElapsedMins, lec.LateAfterMins, w.Open)
	if err != nil {
		if apierr.IsCode(err, apierr.CodeWindowClosed) {
			metrics.WindowRejections.Inc()
			log.Printf("[WARN] lecture %d: mark for student %d rejected, %d min from start (window %d)",
				lec.LectureID, in.StudentID, w.ElapsedMins, lec.WindowMins)
		}
		return MarkResponse{}, err
	}

	enrolled, err := s.store.IsEnrolled(ctx, lec.SubjectID, in.StudentID)
	if err != nil {
		return MarkResponse{}, apierr.Wrap(err)
	}
	if !enrolled {
		return MarkResponse{}, apierr.Invalid("student is not enrolled in this subject")
	}

	saved, err := s.store.Upsert(ctx, Record{
		LectureID:      lec.LectureID,
		StudentID:      in.StudentID,
		Status:         final,
		MarkedAt:       now,
		MarkedBy:       sql.NullInt64{Int64: actor.ID, Valid: true},
		ReasonCategory: reason,
	})
	if err != nil {
		return MarkResponse{}, apierr.Wrap(err)
	}

	downgraded := final != claimed
	metrics.MarksTotal.WithLabelValues(string(final)).Inc()
	if downgraded {
		metrics.LateDowngrades.Inc()
		log.Printf("[INFO] lecture %d: student %d marked Late (Present claimed %d min after start)",
			lec.LectureID, in.StudentID, w.ElapsedMins)
	}

	return MarkResponse{
		Record:     saved.toDTO(),
		Claimed:    claimed,
		Downgraded: downgraded,
		Window:     w,
	}, nil
}

// GET /lectures/:id/attendance
func (s *Service) ListForLecture(ctx context.Context, actor auth.Actor, lectureID int64) ([]RecordResponse, error) {
	lec, err := s.ownedLecture(ctx, actor, lectureID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListForLecture(ctx, lec.LectureID)
	if err != nil {
		return nil, apierr.Wrap(err)
	}
	out := make([]RecordResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDTO())
	}
	return out, nil
}

// GET /me/subjects/:id/attendance
func (s *Service) StudentHistory(ctx context.Context, actor auth.Actor, subjectID int64) ([]HistoryResponse, error) {
	rows, err := s.store.ListForStudent(ctx, actor.ID, &subjectID)
	if err != nil {
		return nil, apierr.Wrap(err)
	}
	out := make([]HistoryResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toHistoryDTO())
	}
	return out, nil
}

// ownedLecture: 他の教員の講義は存在しないものとして扱う（admin は全件可）
func (s *Service) ownedLecture(ctx context.Context, actor auth.Actor, lectureID int64) (Lecture, error) {
	if lectureID <= 0 {
		return Lecture{}, apierr.NotFound("lecture not found")
	}
	lec, err := s.store.GetLecture(ctx, lectureID)
	if err != nil {
		return Lecture{}, apierr.Wrap(err)
	}
	if actor.Role != auth.RoleAdmin && lec.FacultyID != actor.ID {
		return Lecture{}, apierr.NotFound("lecture not found")
	}
	return lec, nil
}

func (s *Service) window(lec Lecture) (Window, error) {
	start, err := lec.StartAt(s.loc)
	if err != nil {
		return Window{}, apierr.Internal(err.Error())
	}
	return Evaluate(start, s.clock.Now(), lec.WindowMins, lec.LateAfterMins), nil
}
