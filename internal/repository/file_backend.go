package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/solweekly/weekly-roundup/internal/domain"
)

// FileBackend stores subscribers as a pretty-printed JSON array of strings.
// The file is re-read on every call so edits made outside the process are
// visible. The mutex serialises writers inside one process only; concurrent
// processes sharing the file can still race (last writer wins).
type FileBackend struct {
	mu       sync.Mutex
	path     string
	readOnly bool
}

func NewFileBackend(path string, readOnly bool) *FileBackend {
	return &FileBackend{path: path, readOnly: readOnly}
}

func (b *FileBackend) Kind() string   { return KindFile }
func (b *FileBackend) Writable() bool { return !b.readOnly }

func (b *FileBackend) List(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load()
}

func (b *FileBackend) Contains(_ context.Context, email string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	emails, err := b.load()
	if err != nil {
		return false, err
	}
	return slices.Contains(emails, email), nil
}

func (b *FileBackend) Add(_ context.Context, email string) error {
	if b.readOnly {
		return domain.ErrReadOnlyStore
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	emails, err := b.load()
	if err != nil {
		return err
	}
	if slices.Contains(emails, email) {
		return domain.ErrAlreadySubscribed
	}
	return b.save(append(emails, email))
}

func (b *FileBackend) Remove(_ context.Context, email string) error {
	if b.readOnly {
		return domain.ErrReadOnlyStore
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	emails, err := b.load()
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(emails, func(e string) bool { return e == email })
	if len(kept) == len(emails) {
		return domain.ErrSubscriberNotFound
	}
	return b.save(kept)
}

// load treats a missing file as an empty list.
func (b *FileBackend) load() ([]string, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read subscribers file: %w", err)
	}
	var emails []string
	if err := json.Unmarshal(data, &emails); err != nil {
		return nil, fmt.Errorf("decode subscribers file: %w", err)
	}
	return emails, nil
}

func (b *FileBackend) save(emails []string) error {
	data, err := json.MarshalIndent(emails, "", "  ")
	if err != nil {
		return fmt.Errorf("encode subscribers: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write subscribers file: %w", err)
	}
	return nil
}

var _ Backend = (*FileBackend)(nil)
