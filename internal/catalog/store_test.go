package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"ROLLCALL-backend/internal/platform/apierr"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewService(NewStore(conn)), mock
}

func TestService_CreateSubject_NormalizesCode(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subjects")).
		WithArgs("AWT", "Advanced Web Technologies").
		WillReturnResult(sqlmock.NewResult(3, 1))

	res, err := svc.CreateSubject(context.Background(), CreateSubjectRequest{Code: " awt ", Name: "Advanced Web Technologies"})
	if err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}
	if res.SubjectID != 3 || res.Code != "AWT" {
		t.Errorf("unexpected response: %+v", res)
	}
}

func TestService_CreateSubject_DuplicateCodeIsConflict(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subjects")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'AWT'"})

	_, err := svc.CreateSubject(context.Background(), CreateSubjectRequest{Code: "AWT", Name: "x"})
	if !errors.Is(err, apierr.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestService_Enroll_IsIdempotent(t *testing.T) {
	svc, mock := newMockService(t)
	for _, affected := range []int64{1, 0} {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM users")).
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("student"))
		mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE student_id = student_id")).
			WithArgs(int64(100), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, affected))
	}

	first, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 100, SubjectID: 1})
	if err != nil || !first.Created {
		t.Fatalf("first Enroll = %+v, %v", first, err)
	}
	second, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 100, SubjectID: 1})
	if err != nil || second.Created {
		t.Errorf("second Enroll = %+v, %v; want created=false", second, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestService_Enroll_NonStudentAndMissingSubject(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM users")).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("faculty"))
	if _, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 10, SubjectID: 1}); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Errorf("faculty: expected invalid argument, got %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM users")).
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("student"))
	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE student_id = student_id")).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
	if _, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 100, SubjectID: 99}); !errors.Is(err, apierr.ErrNotFound) {
		t.Errorf("missing subject: expected not found, got %v", err)
	}
}

func TestService_ListSubjects_ClampsPage(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY code ASC LIMIT ? OFFSET ?")).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"subject_id", "code", "name"}).AddRow(int64(1), "AWT", "Web"))

	items, total, err := svc.ListSubjects(context.Background(), Page{Limit: 10000, Offset: -5, Order: "sideways"})
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Code != "AWT" {
		t.Errorf("unexpected result: %+v total=%d", items, total)
	}
}
