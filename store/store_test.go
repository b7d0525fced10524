package store

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/chazu/smalljs/asm"
	"github.com/chazu/smalljs/image"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "images.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testImage(t *testing.T, result int) *image.Image {
	t.Helper()
	prog, err := asm.Assemble("func main\n CONST " + strconv.Itoa(result) + "\n RET\nend\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	img, err := image.FromDictionary(prog.Dict, prog.Entry)
	if err != nil {
		t.Fatalf("FromDictionary: %v", err)
	}
	return img
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	img := testImage(t, 1)

	hash, err := s.Put(ctx, "one", img)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want, _ := img.Hash()
	if hash != want {
		t.Errorf("hash = %s, want %s", hash, want)
	}

	got, err := s.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	gotHash, _ := got.Hash()
	if gotHash != hash {
		t.Errorf("round-tripped image hashes to %s", gotHash)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	img := testImage(t, 1)

	h1, _ := s.Put(ctx, "first", img)
	h2, _ := s.Put(ctx, "", img)
	if h1 != h2 {
		t.Fatalf("hashes differ: %s vs %s", h1, h2)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Name != "first" {
		t.Errorf("name = %q, an empty name should not overwrite", entries[0].Name)
	}

	s.Put(ctx, "renamed", img)
	entries, _ = s.List(ctx)
	if entries[0].Name != "renamed" {
		t.Errorf("name = %q, want renamed", entries[0].Name)
	}
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	h1, _ := s.Put(ctx, "app", testImage(t, 1))
	h2, _ := s.Put(ctx, "app", testImage(t, 2))
	h3, _ := s.Put(ctx, "other", testImage(t, 3))

	// By name: the newest image with that name
	_, hash, err := s.Resolve(ctx, "app")
	if err != nil {
		t.Fatalf("Resolve(app): %v", err)
	}
	if hash != h2 {
		t.Errorf("Resolve(app) = %s, want %s (not %s)", hash, h2, h1)
	}

	// By full hash and by prefix
	for _, ref := range []string{h3, h3[:10]} {
		_, hash, err := s.Resolve(ctx, ref)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", ref, err)
		}
		if hash != h3 {
			t.Errorf("Resolve(%s) = %s, want %s", ref, hash, h3)
		}
	}

	for _, ref := range []string{"missing", h1[:3], "abc%ef"} {
		if _, _, err := s.Resolve(ctx, ref); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q) error = %v, want ErrNotFound", ref, err)
		}
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	h1, _ := s.Put(ctx, "a", testImage(t, 1))
	h2, _ := s.Put(ctx, "b", testImage(t, 2))

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Hash != h2 || entries[1].Hash != h1 {
		t.Errorf("List order = %s, %s; want newest first", entries[0].Hash, entries[1].Hash)
	}
	if entries[0].Size == 0 || entries[0].Created.IsZero() {
		t.Errorf("entry = %+v", entries[0])
	}

	if err := s.Delete(ctx, h1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, h1); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	entries, _ = s.List(ctx)
	if len(entries) != 1 {
		t.Errorf("entries after delete = %d, want 1", len(entries))
	}
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	hash, _ := s.Put(ctx, "keep", testImage(t, 5))
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.Get(ctx, hash); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
