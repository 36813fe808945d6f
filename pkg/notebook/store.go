package notebook

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/aunorthrop/nora/pkg/core/types"
)

// Persister is the durable storage collaborator behind a Store. Implementations
// are best-effort: a failed flush is logged by the store and never blocks the
// in-memory flow.
type Persister interface {
	// Load returns all previously persisted notes in insertion order.
	Load(ctx context.Context) ([]types.Note, error)
	// Append durably records one note.
	Append(ctx context.Context, note types.Note) error
	// Clear removes every persisted note.
	Clear(ctx context.Context) error
}

// Store is the ordered, append-only collection of notes. The in-memory slice is
// authoritative; persistence is flushed after every append. The store is only
// mutated by the exchange pipeline's success path and by an explicit Clear, so
// a single mutex covers all access.
type Store struct {
	mu        sync.Mutex
	notes     []types.Note
	persister Persister
	logger    *slog.Logger
}

// NewStore creates an empty store. persister may be nil for a purely in-memory
// store (tests, ephemeral sessions).
func NewStore(persister Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{persister: persister, logger: logger}
}

// Load replaces the in-memory contents with the persisted notes. Called once at
// session start; safe to call on an empty persister.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	notes, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.notes = notes
	s.mu.Unlock()
	return nil
}

// Append records a note in insertion order and flushes it to the persister.
func (s *Store) Append(ctx context.Context, note types.Note) {
	s.mu.Lock()
	s.notes = append(s.notes, note)
	s.mu.Unlock()

	if s.persister == nil {
		return
	}
	if err := s.persister.Append(ctx, note); err != nil {
		s.logger.Warn("note persist failed", "err", err)
	}
}

// All returns a copy of every note in insertion order.
func (s *Store) All() []types.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Len reports the number of stored notes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// Clear empties the store and the persister. Irreversible.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.notes = nil
	s.mu.Unlock()

	if s.persister == nil {
		return
	}
	if err := s.persister.Clear(ctx); err != nil {
		s.logger.Warn("note clear failed", "err", err)
	}
}

// MostRecentFirst returns up to limit notes sorted by timestamp descending.
// Equal timestamps keep insertion order, so the rendering of a fixed store is
// stable across calls. limit <= 0 returns all notes.
func (s *Store) MostRecentFirst(limit int) []types.Note {
	notes := s.All()
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Timestamp.After(notes[j].Timestamp)
	})
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes
}
