package evidence

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ROLLCALL-backend/internal/platform/apierr"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newTestStore(t *testing.T, max int64) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(dir, max, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s, dir
}

func TestStore_Save_WritesSniffedFileUnderRandomName(t *testing.T) {
	s, dir := newTestStore(t, 1<<20)

	ref, err := s.Save(context.Background(), "../../etc/passwd.png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(ref, PublicPrefix) || !strings.HasSuffix(ref, ".png") {
		t.Fatalf("unexpected ref %q", ref)
	}
	name := strings.TrimPrefix(ref, PublicPrefix)
	if strings.Contains(name, "passwd") {
		t.Errorf("client file name leaked into %q", name)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
}

func TestStore_Save_RejectsDisallowedType(t *testing.T) {
	s, _ := newTestStore(t, 1<<20)
	_, err := s.Save(context.Background(), "note.txt", strings.NewReader("just some plain text"))
	if !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestStore_Save_RejectsOversizeAndEmpty(t *testing.T) {
	s, _ := newTestStore(t, 16)
	if _, err := s.Save(context.Background(), "big.png", bytes.NewReader(pngHeader)); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Errorf("oversize: expected invalid argument, got %v", err)
	}
	if _, err := s.Save(context.Background(), "empty.png", bytes.NewReader(nil)); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Errorf("empty: expected invalid argument, got %v", err)
	}
}

func TestStore_Remove_DeletesAndToleratesMissing(t *testing.T) {
	s, dir := newTestStore(t, 1<<20)
	ref, err := s.Save(context.Background(), "a.png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Remove(context.Background(), ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, strings.TrimPrefix(ref, PublicPrefix))); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	if err := s.Remove(context.Background(), ref); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestStore_Remove_RejectsPathTraversal(t *testing.T) {
	s, _ := newTestStore(t, 1<<20)
	for _, ref := range []string{PublicPrefix + "../config.yaml", "/uploads/a.png", PublicPrefix + ".."} {
		if err := s.Remove(context.Background(), ref); !errors.Is(err, apierr.ErrInvalidArgument) {
			t.Errorf("%q: expected invalid argument, got %v", ref, err)
		}
	}
}

func TestStore_Path_ResolvesSavedRefOnly(t *testing.T) {
	s, dir := newTestStore(t, 1<<20)
	ref, err := s.Save(context.Background(), "a.png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	name := strings.TrimPrefix(ref, PublicPrefix)
	if s.Ref(name) != ref {
		t.Errorf("Ref(%q) = %q, want %q", name, s.Ref(name), ref)
	}

	p, err := s.Path(ref)
	if err != nil || p != filepath.Join(dir, name) {
		t.Errorf("Path = %q, %v", p, err)
	}
	if _, err := s.Path(s.Ref("missing.png")); !errors.Is(err, apierr.ErrNotFound) {
		t.Errorf("missing: expected not found, got %v", err)
	}
	if _, err := s.Path(s.Ref("../" + name)); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Errorf("traversal: expected invalid argument, got %v", err)
	}
}
