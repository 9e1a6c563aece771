package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAuthFailed    = errors.New("authentication failed")
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *Account, error)
	Register(ctx context.Context, name, email, password string, role Role) (*Account, error)
	ListAccounts(ctx context.Context, q ListQuery) ([]Account, int64, ListQuery, error)
}

type Service struct {
	store  AccountStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(db *sql.DB, secret []byte, ttl time.Duration) *Service {
	return newService(NewStore(db), secret, ttl)
}

func newService(store AccountStore, secret []byte, ttl time.Duration) *Service {
	return &Service{store: store, secret: secret, ttl: ttl, now: time.Now}
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *Account, error) {
	acct, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", nil, err
	}
	if acct == nil || acct.IsDisabled {
		return "", nil, ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthFailed
	}

	token, err := s.issue(acct)
	if err != nil {
		return "", nil, err
	}
	return token, acct, nil
}

func (s *Service) issue(acct *Account) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(acct.ID, 10),
		"role": string(acct.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	})
	return token.SignedString(s.secret)
}

func (s *Service) Register(ctx context.Context, name, email, password string, role Role) (*Account, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" || !role.Valid() {
		return nil, ErrInvalidInput
	}

	exists, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return nil, ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	acct := &Account{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.store.Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// EnsureAdmin: 起動時に管理者アカウントが無ければ作る
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if name == "" {
		name = "Admin"
	}
	_, err := s.Register(ctx, name, email, password, RoleAdmin)
	if errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("[INFO] bootstrap admin created: %s", email)
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ListAccounts: 管理画面のユーザー一覧。正規化後の ListQuery も返す（next_offset 計算用）。
func (s *Service) ListAccounts(ctx context.Context, q ListQuery) ([]Account, int64, ListQuery, error) {
	if q.Role != "" && !q.Role.Valid() {
		return nil, 0, q, ErrInvalidInput
	}
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	items, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, 0, q, err
	}
	return items, total, q, nil
}
