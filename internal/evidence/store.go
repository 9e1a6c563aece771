// Package evidence: 申請の証拠ファイルをローカルディスクに保存し、
// 不透明な参照（"/api/v1/evidence/<name>"）を返す。静的配信はせず、
// 読み出しは justification 側で権限を確認してから行う。
package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"ROLLCALL-backend/internal/platform/apierr"
)

// PublicPrefix: 参照文字列の先頭。GET /api/v1/evidence/:name が権限確認のうえ返す
const PublicPrefix = "/api/v1/evidence/"

var DefaultAllowedTypes = []string{"application/pdf", "image/jpeg", "image/png"}

type Store struct {
	dir      string
	maxBytes int64
	allowed  []string
}

func NewStore(dir string, maxBytes int64, allowed []string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("evidence dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	return &Store{dir: dir, maxBytes: maxBytes, allowed: allowed}, nil
}

// Save: 中身を嗅いで許可された形式だけ保存する。ファイル名はクライアントの物を使わない。
func (s *Store) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	buf, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", apierr.Dependency(fmt.Errorf("read upload %q: %w", filename, err))
	}
	if len(buf) == 0 {
		return "", apierr.Invalid("evidence file is empty")
	}
	if int64(len(buf)) > s.maxBytes {
		return "", apierr.Invalid(fmt.Sprintf("evidence file exceeds %d bytes", s.maxBytes))
	}

	mt := mimetype.Detect(buf)
	if !s.isAllowed(mt) {
		return "", apierr.Invalid("evidence type " + mt.String() + " is not accepted")
	}

	name := uuid.NewString() + mt.Extension()
	if err := writeFile(filepath.Join(s.dir, name), buf); err != nil {
		return "", apierr.Dependency(err)
	}
	log.Printf("[INFO] evidence stored: %s (%s, %d bytes, from %q)", name, mt.String(), len(buf), filename)
	return PublicPrefix + name, nil
}

// Remove: Save が返した参照を削除する。既に無ければ何もしない。
func (s *Store) Remove(_ context.Context, ref string) error {
	name, err := nameOf(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apierr.Dependency(err)
	}
	return nil
}

// Ref: ファイル名 → 保存時と同じ参照文字列
func (s *Store) Ref(name string) string { return PublicPrefix + name }

// Path: 参照 → ディスク上のパス。無ければ NotFound。
func (s *Store) Path(ref string) (string, error) {
	name, err := nameOf(ref)
	if err != nil {
		return "", err
	}
	p := filepath.Join(s.dir, name)
	fi, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) || (err == nil && fi.IsDir()) {
		return "", apierr.NotFound("evidence not found")
	}
	if err != nil {
		return "", apierr.Dependency(err)
	}
	return p, nil
}

func nameOf(ref string) (string, error) {
	if !strings.HasPrefix(ref, PublicPrefix) {
		return "", apierr.Invalid("invalid evidence reference")
	}
	name := strings.TrimPrefix(ref, PublicPrefix)
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", apierr.Invalid("invalid evidence reference")
	}
	return name, nil
}

func (s *Store) isAllowed(mt *mimetype.MIME) bool {
	for _, a := range s.allowed {
		if mt.Is(a) {
			return true
		}
	}
	return false
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
