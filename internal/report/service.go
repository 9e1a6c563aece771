package report

import (
	"context"
	"fmt"
	"time"

	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/auth"
)

// ReportStore: *Store が実装
type ReportStore interface {
	ListSubjects(ctx context.Context) ([]Subject, error)
	ListEnrolledSubjects(ctx context.Context, studentID int64) ([]Subject, error)
	ListStudents(ctx context.Context) ([]Student, error)
	ListMarks(ctx context.Context, studentID *int64) ([]Mark, error)
}

type Service struct {
	store     ReportStore
	threshold int
	now       func() time.Time
}

func NewService(store ReportStore, defaultThreshold int) *Service {
	return &Service{store: store, threshold: defaultThreshold, now: time.Now}
}

func (s *Service) resolveThreshold(t *int) (int, error) {
	if t == nil {
		return s.threshold, nil
	}
	if *t < 0 || *t > 100 {
		return 0, apierr.Invalid("threshold must be between 0 and 100")
	}
	return *t, nil
}

// GET /reports/attendance
// 全科目 × 全学生。記録の無い組もゼロ行として出す。
func (s *Service) FacultyReport(ctx context.Context, q ReportQuery) (ReportResponse, error) {
	threshold, err := s.resolveThreshold(q.Threshold)
	if err != nil {
		return ReportResponse{}, err
	}
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return ReportResponse{}, apierr.Wrap(err)
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return ReportResponse{}, apierr.Wrap(err)
	}
	marks, err := s.store.ListMarks(ctx, nil)
	if err != nil {
		return ReportResponse{}, apierr.Wrap(err)
	}
	cells, err := Aggregate(marks, threshold)
	if err != nil {
		return ReportResponse{}, err
	}

	rows := make([]ReportRow, 0, len(subjects)*len(students))
	for _, sub := range subjects {
		for _, st := range students {
			c := CellFor(cells, Key{SubjectID: sub.SubjectID, StudentID: st.StudentID}, threshold)
			if q.LowOnly && !c.Low {
				continue
			}
			rows = append(rows, ReportRow{
				SubjectID:   sub.SubjectID,
				SubjectCode: sub.Code,
				SubjectName: sub.Name,
				StudentID:   st.StudentID,
				StudentName: st.Name,
				Cell:        c,
			})
		}
	}
	return ReportResponse{Threshold: threshold, Rows: rows}, nil
}

// GET /me/dashboard
func (s *Service) StudentDashboard(ctx context.Context, actor auth.Actor) (DashboardResponse, error) {
	subjects, err := s.store.ListEnrolledSubjects(ctx, actor.ID)
	if err != nil {
		return DashboardResponse{}, apierr.Wrap(err)
	}
	marks, err := s.store.ListMarks(ctx, &actor.ID)
	if err != nil {
		return DashboardResponse{}, apierr.Wrap(err)
	}
	cells, err := Aggregate(marks, s.threshold)
	if err != nil {
		return DashboardResponse{}, err
	}

	cards := make([]DashboardCard, 0, len(subjects))
	for _, sub := range subjects {
		cards = append(cards, DashboardCard{
			SubjectID:   sub.SubjectID,
			SubjectCode: sub.Code,
			SubjectName: sub.Name,
			Cell:        CellFor(cells, Key{SubjectID: sub.SubjectID, StudentID: actor.ID}, s.threshold),
		})
	}
	return DashboardResponse{Threshold: s.threshold, Subjects: cards}, nil
}

// GET /reports/attendance/export?format=csv|xlsx&encoding=sjis
func (s *Service) Export(ctx context.Context, q ReportQuery) (ExportFile, error) {
	rep, err := s.FacultyReport(ctx, q)
	if err != nil {
		return ExportFile{}, err
	}
	base := fmt.Sprintf("attendance_report_%s", s.now().Format("20060102"))

	switch q.Format {
	case "", "csv":
		sjis := q.Encoding == "sjis"
		data, err := writeCSV(rep.Rows, sjis)
		if err != nil {
			return ExportFile{}, apierr.Internal("failed to build csv: " + err.Error())
		}
		ct := "text/csv; charset=utf-8"
		if sjis {
			ct = "text/csv; charset=Shift_JIS"
		}
		return ExportFile{Name: base + ".csv", ContentType: ct, Data: data}, nil
	case "xlsx":
		data, err := writeXLSX(rep)
		if err != nil {
			return ExportFile{}, apierr.Internal("failed to build xlsx: " + err.Error())
		}
		return ExportFile{
			Name:        base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	}
	return ExportFile{}, apierr.Invalid("format must be csv or xlsx")
}
