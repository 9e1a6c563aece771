package justification

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"ROLLCALL-backend/internal/attendance"
	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/auth"
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

// JustificationStore: *Store が実装
type JustificationStore interface {
	InsertPending(ctx context.Context, j *Justification) error
	Get(ctx context.Context, id int64) (*Justification, error)
	GetByEvidence(ctx context.Context, ref string) (*Justification, error)
	Decide(ctx context.Context, id int64, d Decision) (bool, error)
	MarkConversionApplied(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter) ([]ReviewRow, error)
}

// Ledger: 出席台帳側（*attendance.Store が実装）。SetStatus は窓のチェックをしない。
type Ledger interface {
	GetByID(ctx context.Context, attendanceID int64) (*attendance.Record, error)
	GetLecture(ctx context.Context, lectureID int64) (attendance.Lecture, error)
	SetStatus(ctx context.Context, attendanceID int64, status attendance.Status) error
}

// Evidence: 証拠ファイルの保存先（*evidence.Store が実装）。参照文字列はそのまま保存する。
type Evidence interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
	Ref(name string) string
	Path(ref string) (string, error)
}

// ===== Service本体 =====

type Service struct {
	store    JustificationStore
	ledger   Ledger
	evidence Evidence
	clock    Clock
	id       IDGen
}

func NewService(store JustificationStore, ledger Ledger, ev Evidence) *Service {
	return &Service{
		store:    store,
		ledger:   ledger,
		evidence: ev,
		clock:    realClock{},
		id:       ulidGen{},
	}
}

// POST /me/attendance/:id/justifications
func (s *Service) Submit(ctx context.Context, actor auth.Actor, attendanceID int64, in SubmitInput) (JustificationResponse, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return JustificationResponse{}, apierr.Invalid("message is required")
	}
	if len(msg) > maxMessageLen {
		return JustificationResponse{}, apierr.Invalid(fmt.Sprintf("message must be at most %d bytes", maxMessageLen))
	}

	// 他人の記録は「存在しない」と同じ扱い
	rec, err := s.ledger.GetByID(ctx, attendanceID)
	if err != nil {
		return JustificationResponse{}, apierr.Wrap(err)
	}
	if rec == nil || rec.StudentID != actor.ID {
		return JustificationResponse{}, apierr.NotFound("attendance record not found")
	}
	if rec.Status == attendance.StatusPresent {
		return JustificationResponse{}, apierr.Invalid("only Absent or Late records can be justified")
	}

	ulidStr, err := s.id.New()
	if err != nil {
		return JustificationResponse{}, apierr.Internal("failed to generate id")
	}

	var ref string
	if in.File != nil {
		ref, err = s.evidence.Save(ctx, in.Filename, in.File)
		if err != nil {
			return JustificationResponse{}, apierr.Wrap(err)
		}
	}

	j := Justification{
		ULID:         ulidStr,
		AttendanceID: rec.AttendanceID,
		StudentID:    actor.ID,
		Message:      msg,
		EvidenceRef:  sql.NullString{String: ref, Valid: ref != ""},
		SubmittedAt:  s.clock.Now().UTC(),
		Status:       StatusPending,
	}
	if err := s.store.InsertPending(ctx, &j); err != nil {
		if ref != "" {
			if rmErr := s.evidence.Remove(ctx, ref); rmErr != nil {
				log.Printf("[WARN] orphan evidence %s left after failed submit: %v", ref, rmErr)
			}
		}
		return JustificationResponse{}, apierr.Wrap(err)
	}

	metrics.JustificationsSubmitted.Inc()
	log.Printf("[INFO] justification %s submitted: attendance=%d student=%d", j.ULID, j.AttendanceID, j.StudentID)
	return j.toDTO(), nil
}

// POST /justifications/:id/decision
//
// 順序: 申請を終端に確定（条件付き UPDATE）→ 台帳を書き換え → conversion_applied。
// 台帳の書き込みが失敗したら PARTIAL_FAILURE を返し、reapply で回復させる。
func (s *Service) Decide(ctx context.Context, actor auth.Actor, id int64, in DecisionRequest) (JustificationResponse, error) {
	if in.Action != StatusApproved && in.Action != StatusRejected {
		return JustificationResponse{}, apierr.Invalid("action must be Approved or Rejected")
	}
	var convertTo *attendance.Status
	if in.ConvertTo != nil && *in.ConvertTo != "" {
		if in.Action == StatusRejected {
			return JustificationResponse{}, apierr.Invalid("convert_to is only allowed when approving")
		}
		st, ok := attendance.ParseStatus(*in.ConvertTo)
		if !ok {
			return JustificationResponse{}, apierr.Invalid("convert_to must be P, L or A")
		}
		convertTo = &st
	}

	j, rec, err := s.reviewable(ctx, actor, id)
	if err != nil {
		return JustificationResponse{}, err
	}
	if j.Status.Terminal() {
		return JustificationResponse{}, apierr.Conflict("justification already decided")
	}

	d := Decision{
		Status:    in.Action,
		Comment:   strings.TrimSpace(in.Comment),
		DecidedBy: actor.ID,
		DecidedAt: s.clock.Now().UTC(),
		ConvertTo: convertTo,
	}
	ok, err := s.store.Decide(ctx, j.ID, d)
	if err != nil {
		return JustificationResponse{}, apierr.Wrap(err)
	}
	if !ok {
		return JustificationResponse{}, apierr.Conflict("justification already decided")
	}
	metrics.JustificationDecisions.WithLabelValues(string(d.Status)).Inc()

	j.Status = d.Status
	j.FacultyComment = sql.NullString{String: d.Comment, Valid: true}
	j.DecidedBy = sql.NullInt64{Int64: d.DecidedBy, Valid: true}
	j.DecidedAt = sql.NullTime{Time: d.DecidedAt, Valid: true}
	if convertTo != nil {
		j.ConvertTo = sql.NullString{String: string(*convertTo), Valid: true}
	}
	log.Printf("[INFO] justification %s %s by %d", j.ULID, j.Status, actor.ID)

	if convertTo == nil {
		return j.toDTO(), nil
	}
	if err := s.applyConversion(ctx, j, rec.AttendanceID, *convertTo); err != nil {
		metrics.ConversionFailures.Inc()
		log.Printf("[ERROR] justification %s approved but conversion to %s failed: %v", j.ULID, *convertTo, err)
		return j.toDTO(), apierr.PartialFailure(
			fmt.Sprintf("justification %d approved but attendance was not updated; reapply the conversion", j.ID), err)
	}
	j.ConversionApplied = true
	return j.toDTO(), nil
}

// POST /justifications/:id/reapply
func (s *Service) ReapplyConversion(ctx context.Context, actor auth.Actor, id int64) (JustificationResponse, error) {
	j, rec, err := s.reviewable(ctx, actor, id)
	if err != nil {
		return JustificationResponse{}, err
	}
	if !j.PendingConversion() {
		return JustificationResponse{}, apierr.Conflict("no pending conversion for this justification")
	}
	st, ok := attendance.ParseStatus(j.ConvertTo.String)
	if !ok {
		return JustificationResponse{}, apierr.Internal("stored convert_to is invalid")
	}
	if err := s.applyConversion(ctx, j, rec.AttendanceID, st); err != nil {
		metrics.ConversionFailures.Inc()
		return JustificationResponse{}, apierr.Wrap(err)
	}
	j.ConversionApplied = true
	log.Printf("[INFO] justification %s conversion reapplied by %d", j.ULID, actor.ID)
	return j.toDTO(), nil
}

// GET /justifications?status=Pending
func (s *Service) ListForReview(ctx context.Context, actor auth.Actor, status string) ([]ReviewResponse, error) {
	var f Filter
	if actor.Role != auth.RoleAdmin {
		f.FacultyID = &actor.ID
	}
	if status != "" {
		st := Status(status)
		if !st.Valid() {
			return nil, apierr.Invalid("status must be Pending, Approved or Rejected")
		}
		f.Status = &st
	}
	return s.list(ctx, f)
}

// GET /me/justifications
func (s *Service) ListMine(ctx context.Context, actor auth.Actor) ([]ReviewResponse, error) {
	return s.list(ctx, Filter{StudentID: &actor.ID})
}

func (s *Service) list(ctx context.Context, f Filter) ([]ReviewResponse, error) {
	rows, err := s.store.List(ctx, f)
	if err != nil {
		return nil, apierr.Wrap(err)
	}
	out := make([]ReviewResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDTO())
	}
	return out, nil
}

// GET /evidence/:name
// 提出した学生本人・講義の担当教員・admin だけが読める。それ以外は存在も明かさない。
func (s *Service) EvidenceFile(ctx context.Context, actor auth.Actor, name string) (string, error) {
	notFound := apierr.NotFound("evidence not found")
	ref := s.evidence.Ref(name)
	j, err := s.store.GetByEvidence(ctx, ref)
	if err != nil {
		return "", apierr.Wrap(err)
	}
	if j == nil {
		return "", notFound
	}
	switch actor.Role {
	case auth.RoleAdmin:
	case auth.RoleStudent:
		if j.StudentID != actor.ID {
			return "", notFound
		}
	case auth.RoleFaculty:
		if _, _, err := s.reviewable(ctx, actor, j.ID); err != nil {
			if apierr.IsCode(err, apierr.CodeNotFound) {
				return "", notFound
			}
			return "", err
		}
	default:
		return "", notFound
	}

	path, err := s.evidence.Path(ref)
	if err != nil {
		if apierr.IsCode(err, apierr.CodeNotFound) {
			log.Printf("[WARN] justification %s: evidence %s missing on disk", j.ULID, ref)
		}
		return "", err
	}
	return path, nil
}

// reviewable: 申請 + 参照先の出席記録を読み、講義の担当教員か確認する（admin は全件可）
func (s *Service) reviewable(ctx context.Context, actor auth.Actor, id int64) (*Justification, *attendance.Record, error) {
	notFound := apierr.NotFound("justification not found")
	if id <= 0 {
		return nil, nil, notFound
	}
	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, apierr.Wrap(err)
	}
	if j == nil {
		return nil, nil, notFound
	}
	rec, err := s.ledger.GetByID(ctx, j.AttendanceID)
	if err != nil {
		return nil, nil, apierr.Wrap(err)
	}
	if rec == nil {
		return nil, nil, notFound
	}
	if actor.Role != auth.RoleAdmin {
		lec, err := s.ledger.GetLecture(ctx, rec.LectureID)
		if err != nil {
			if apierr.IsCode(err, apierr.CodeNotFound) {
				return nil, nil, notFound
			}
			return nil, nil, apierr.Wrap(err)
		}
		if lec.FacultyID != actor.ID {
			return nil, nil, notFound
		}
	}
	return j, rec, nil
}

func (s *Service) applyConversion(ctx context.Context, j *Justification, attendanceID int64, st attendance.Status) error {
	if err := s.ledger.SetStatus(ctx, attendanceID, st); err != nil {
		return err
	}
	if err := s.store.MarkConversionApplied(ctx, j.ID); err != nil {
		// 台帳は書き換わっている。フラグだけ遅れても reapply で同じ値を書くだけ。
		log.Printf("[WARN] justification %s: ledger updated but conversion flag not saved: %v", j.ULID, err)
	}
	return nil
}
