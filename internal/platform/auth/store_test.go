package auth

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStore_List_RoleFilterAndPage(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE role = ?")).
		WithArgs("student").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY user_id DESC")).
		WithArgs("student", 2, 4).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "email", "role", "is_disabled"}).
			AddRow(int64(12), "Student Two", "s2@demo.com", "student", false).
			AddRow(int64(11), "Student One", "s1@demo.com", "student", true))

	items, total, err := NewStore(conn).List(context.Background(), ListQuery{Role: RoleStudent, Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 7 || len(items) != 2 {
		t.Fatalf("total=%d items=%d", total, len(items))
	}
	if items[0].ID != 12 || items[1].Role != RoleStudent || !items[1].IsDisabled {
		t.Errorf("unexpected rows: %+v", items)
	}
	if items[0].PasswordHash != "" {
		t.Error("password hash must not be loaded for listings")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestStore_List_AllRoles(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WithArgs().
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY user_id DESC")).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "email", "role", "is_disabled"}))

	items, total, err := NewStore(conn).List(context.Background(), ListQuery{Limit: 50})
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Errorf("List = %v, %d, %v; want empty non-nil slice", items, total, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
