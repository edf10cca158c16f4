package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/guarzo/pkmprice/internal/model"
)

// DefaultPath is where the price log goes when no path is configured.
const DefaultPath = "prices.txt"

// Recorder accepts one observed price.
type Recorder interface {
	Record(ctx context.Context, rec model.PriceRecord) error
}

// File appends one line per record to a text file. Writes from concurrent
// workers are serialised so lines never interleave.
type File struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string) (*File, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open price log %s: %w", path, err)
	}
	return &File{f: f, path: path}, nil
}

// Path returns the file being written.
func (s *File) Path() string {
	return s.path
}

func (s *File) Record(_ context.Context, rec model.PriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.WriteString(rec.Line() + "\n"); err != nil {
		return fmt.Errorf("write %s to %s: %w", rec.CardID, s.path, err)
	}
	return nil
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Inserter is the part of store.Store the database sink needs.
type Inserter interface {
	Insert(ctx context.Context, rec model.PriceRecord) error
}

// Store records prices as rows through an Inserter.
type Store struct {
	db Inserter
}

func NewStore(db Inserter) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, rec model.PriceRecord) error {
	return s.db.Insert(ctx, rec)
}

// Multi sends each record to every recorder. A failing recorder does not
// stop the others; all failures are joined.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, rec model.PriceRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Record(context.Context, model.PriceRecord) error { return nil }
