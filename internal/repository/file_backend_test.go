package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/solweekly/weekly-roundup/internal/domain"
	"github.com/solweekly/weekly-roundup/internal/repository"
)

func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	b := repository.NewFileBackend(filepath.Join(t.TempDir(), "data", "subscribers.json"), false)

	emails, err := b.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emails) != 0 {
		t.Fatalf("expected empty list, got %v", emails)
	}
}

func TestFileBackend_AddRemove(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "subscribers.json")
	b := repository.NewFileBackend(path, false)

	if err := b.Add(ctx, "a@x.io"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Add(ctx, "b@x.io"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Add(ctx, "a@x.io"); err != domain.ErrAlreadySubscribed {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if want := "[\n  \"a@x.io\",\n  \"b@x.io\"\n]"; string(raw) != want {
		t.Fatalf("unexpected file contents:\n%s", raw)
	}

	ok, err := b.Contains(ctx, "b@x.io")
	if err != nil || !ok {
		t.Fatalf("expected b@x.io present, ok=%v err=%v", ok, err)
	}

	if err := b.Remove(ctx, "a@x.io"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := b.Remove(ctx, "a@x.io"); err != domain.ErrSubscriberNotFound {
		t.Fatalf("expected ErrSubscriberNotFound, got %v", err)
	}

	emails, _ := b.List(ctx)
	if len(emails) != 1 || emails[0] != "b@x.io" {
		t.Fatalf("expected [b@x.io], got %v", emails)
	}
}

func TestFileBackend_ReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "subscribers.json")
	if err := os.WriteFile(path, []byte(`["seed@x.io"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	b := repository.NewFileBackend(path, true)

	if b.Writable() {
		t.Fatal("expected read-only backend")
	}
	if err := b.Add(ctx, "a@x.io"); err != domain.ErrReadOnlyStore {
		t.Fatalf("expected ErrReadOnlyStore, got %v", err)
	}
	if err := b.Remove(ctx, "seed@x.io"); err != domain.ErrReadOnlyStore {
		t.Fatalf("expected ErrReadOnlyStore, got %v", err)
	}
	emails, err := b.List(ctx)
	if err != nil || len(emails) != 1 {
		t.Fatalf("reads must still work: %v %v", emails, err)
	}
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	b := repository.NewFileBackend(path, false)

	if _, err := b.List(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}
