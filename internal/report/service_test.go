package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"ROLLCALL-backend/internal/attendance"
	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/auth"
)

type fakeStore struct {
	subjects []Subject
	enrolled map[int64][]Subject
	students []Student
	marks    []Mark
	err      error
}

func (f *fakeStore) ListSubjects(context.Context) ([]Subject, error) { return f.subjects, f.err }

func (f *fakeStore) ListEnrolledSubjects(_ context.Context, id int64) ([]Subject, error) {
	return f.enrolled[id], f.err
}

func (f *fakeStore) ListStudents(context.Context) ([]Student, error) { return f.students, f.err }

func (f *fakeStore) ListMarks(_ context.Context, studentID *int64) ([]Mark, error) {
	if studentID == nil {
		return f.marks, f.err
	}
	var out []Mark
	for _, m := range f.marks {
		if m.StudentID == *studentID {
			out = append(out, m)
		}
	}
	return out, f.err
}

var (
	awt = Subject{SubjectID: 1, Code: "AWT", Name: "Advanced Web Technologies"}
	dbs = Subject{SubjectID: 2, Code: "DBS", Name: "データベース"}
)

func newFakeStore() *fakeStore {
	var marks []Mark
	marks = append(marks, marksOf(1, 100, p, p, l, a)...) // 75%
	marks = append(marks, marksOf(1, 200, a, a, a)...)    // 0%
	marks = append(marks, marksOf(2, 100, p, a, a)...)    // 33%
	return &fakeStore{
		subjects: []Subject{awt, dbs},
		enrolled: map[int64][]Subject{100: {awt, dbs}, 300: {awt}},
		students: []Student{{StudentID: 100, Name: "山田 太郎"}, {StudentID: 200, Name: "Bob"}, {StudentID: 300, Name: "Carol"}},
		marks:    marks,
	}
}

func newTestService(st ReportStore) *Service {
	svc := NewService(st, 75)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestService_FacultyReport_FullCrossProduct(t *testing.T) {
	svc := newTestService(newFakeStore())
	rep, err := svc.FacultyReport(context.Background(), ReportQuery{})
	if err != nil {
		t.Fatalf("FacultyReport: %v", err)
	}
	if rep.Threshold != 75 || len(rep.Rows) != 6 {
		t.Fatalf("threshold=%d rows=%d, want 75 and 6", rep.Threshold, len(rep.Rows))
	}

	byPair := map[Key]ReportRow{}
	for _, r := range rep.Rows {
		byPair[Key{r.SubjectID, r.StudentID}] = r
	}
	if r := byPair[Key{1, 100}]; r.Pct != 75 || r.Low || r.Attended() != 3 {
		t.Errorf("AWT/100 = %+v, want pct 75 not low", r.Cell)
	}
	if r := byPair[Key{1, 200}]; r.Pct != 0 || r.Low || r.Total != 3 {
		t.Errorf("AWT/200 = %+v, want pct 0 not low", r.Cell)
	}
	if r := byPair[Key{2, 100}]; r.Pct != 33 || !r.Low {
		t.Errorf("DBS/100 = %+v, want pct 33 low", r.Cell)
	}
	if r := byPair[Key{2, 300}]; r.Total != 0 || r.Low {
		t.Errorf("DBS/300 = %+v, want empty cell", r.Cell)
	}
}

func TestService_FacultyReport_LowOnlyAndCustomThreshold(t *testing.T) {
	svc := newTestService(newFakeStore())
	th := 80
	rep, err := svc.FacultyReport(context.Background(), ReportQuery{Threshold: &th, LowOnly: true})
	if err != nil {
		t.Fatalf("FacultyReport: %v", err)
	}
	if len(rep.Rows) != 2 {
		t.Fatalf("expected 2 low rows at threshold 80, got %+v", rep.Rows)
	}
	for _, r := range rep.Rows {
		if !r.Low {
			t.Errorf("row not low: %+v", r)
		}
	}
}

func TestService_FacultyReport_BadThresholdIsValidationError(t *testing.T) {
	svc := newTestService(newFakeStore())
	th := 101
	if _, err := svc.FacultyReport(context.Background(), ReportQuery{Threshold: &th}); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestService_FacultyReport_StoreFailureIsDependencyError(t *testing.T) {
	st := newFakeStore()
	st.err = errors.New("db down")
	if _, err := newTestService(st).FacultyReport(context.Background(), ReportQuery{}); !errors.Is(err, apierr.ErrDependency) {
		t.Errorf("expected dependency error, got %v", err)
	}
}

func TestService_StudentDashboard_OwnEnrolledSubjectsOnly(t *testing.T) {
	svc := newTestService(newFakeStore())

	res, err := svc.StudentDashboard(context.Background(), auth.Actor{ID: 100, Role: auth.RoleStudent})
	if err != nil {
		t.Fatalf("StudentDashboard: %v", err)
	}
	if len(res.Subjects) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(res.Subjects))
	}
	if res.Subjects[0].Pct != 75 || res.Subjects[1].Pct != 33 || !res.Subjects[1].Low {
		t.Errorf("unexpected cards: %+v", res.Subjects)
	}

	res, err = svc.StudentDashboard(context.Background(), auth.Actor{ID: 300, Role: auth.RoleStudent})
	if err != nil {
		t.Fatalf("StudentDashboard: %v", err)
	}
	if len(res.Subjects) != 1 || res.Subjects[0].Total != 0 || res.Subjects[0].Low {
		t.Errorf("enrolled but unmarked student: %+v", res.Subjects)
	}
}

func TestService_Export_ShiftJISCSVRoundTrips(t *testing.T) {
	svc := newTestService(newFakeStore())
	file, err := svc.Export(context.Background(), ReportQuery{Format: "csv", Encoding: "sjis"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if file.Name != "attendance_report_20261019.csv" || file.ContentType != "text/csv; charset=Shift_JIS" {
		t.Errorf("unexpected file meta: %s %s", file.Name, file.ContentType)
	}

	r := csv.NewReader(transform.NewReader(bytes.NewReader(file.Data), japanese.ShiftJIS.NewDecoder()))
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 7 {
		t.Fatalf("expected header + 6 rows, got %d", len(records))
	}
	if records[4][1] != "データベース" || records[4][3] != "山田 太郎" {
		t.Errorf("japanese text not preserved: %v", records[4])
	}
}

func TestService_Export_ShiftJISReplacesUnsupportedRunes(t *testing.T) {
	st := newFakeStore()
	st.students = append(st.students, Student{StudentID: 400, Name: "Zoë Müller 🙂"})
	svc := newTestService(st)

	file, err := svc.Export(context.Background(), ReportQuery{Format: "csv", Encoding: "sjis"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	r := csv.NewReader(transform.NewReader(bytes.NewReader(file.Data), japanese.ShiftJIS.NewDecoder()))
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 9 {
		t.Fatalf("expected header + 8 rows, got %d", len(records))
	}
	var found int
	for _, rec := range records[1:] {
		if rec[2] != "400" {
			continue
		}
		found++
		name := rec[3]
		if !strings.HasPrefix(name, "Zo") || !strings.Contains(name, "ller") || strings.ContainsAny(name, "ëü🙂") {
			t.Errorf("unsupported runes not replaced: %q", name)
		}
	}
	if found != 2 {
		t.Errorf("expected 2 rows for student 400, got %d", found)
	}
}

func TestService_Export_XLSXHasHeaderAndRows(t *testing.T) {
	svc := newTestService(newFakeStore())
	file, err := svc.Export(context.Background(), ReportQuery{Format: "xlsx"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) < 7 || rows[0][0] != "subject_code" || rows[1][0] != "AWT" {
		t.Errorf("unexpected sheet content: %v", rows)
	}
}

func TestService_Export_UnknownFormat(t *testing.T) {
	svc := newTestService(newFakeStore())
	if _, err := svc.Export(context.Background(), ReportQuery{Format: "pdf"}); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

// 台帳由来の値がそのまま集計に乗ることの確認
func TestService_FacultyReport_UsesLedgerStatusLetters(t *testing.T) {
	st := newFakeStore()
	st.marks = []Mark{{SubjectID: 1, StudentID: 100, Status: attendance.StatusLate}}
	rep, err := newTestService(st).FacultyReport(context.Background(), ReportQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Rows[0].L != 1 || rep.Rows[0].Pct != 100 {
		t.Errorf("late mark not counted as attended: %+v", rep.Rows[0])
	}
}
