package auth

import (
	"context"
	"database/sql"
	"errors"

	"ROLLCALL-backend/internal/platform/db"
)

type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsDisabled   bool
}

type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, a *Account) error
	List(ctx context.Context, q ListQuery) ([]Account, int64, error)
}

// ListQuery: Role が空なら全ロール
type ListQuery struct {
	Role   Role
	Limit  int
	Offset int
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) AccountStore {
	return &Store{db: db}
}

// 見つからなければ (nil, nil)
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	const q = `
SELECT user_id, name, email, password_hash, role, is_disabled
FROM users
WHERE email = ?
LIMIT 1
`
	var a Account
	var role string
	err := s.db.QueryRowContext(ctx, q, email).Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&role,
		&a.IsDisabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Role = Role(role)
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `
INSERT INTO users (name, email, password_hash, role, is_disabled)
VALUES (?, ?, ?, ?, ?)
`
	res, err := s.db.ExecContext(ctx, q, a.Name, a.Email, a.PasswordHash, string(a.Role), a.IsDisabled)
	if err != nil {
		// GetByEmail と INSERT の間に同じメールが入った場合
		if db.IsDuplicateKey(err) {
			return ErrAlreadyExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// 新しいアカウントから順に返す。password_hash は読まない。
func (s *Store) List(ctx context.Context, lq ListQuery) ([]Account, int64, error) {
	where := ""
	var args []any
	if lq.Role != "" {
		where = " WHERE role = ?"
		args = append(args, string(lq.Role))
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `
SELECT user_id, name, email, role, is_disabled
FROM users` + where + `
ORDER BY user_id DESC
LIMIT ? OFFSET ?
`
	rows, err := s.db.QueryContext(ctx, q, append(args, lq.Limit, lq.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Account{}
	for rows.Next() {
		var a Account
		var role string
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &role, &a.IsDisabled); err != nil {
			return nil, 0, err
		}
		a.Role = Role(role)
		out = append(out, a)
	}
	return out, total, rows.Err()
}
