// Package loamstore persists notebook entries in a plain-text document vault.
// Each note is one document; the vault directory can be read, grepped and
// versioned outside the process.
package loamstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/aretw0/loam"
	loamcore "github.com/aretw0/loam/pkg/core"

	"github.com/aunorthrop/nora/pkg/core/types"
)

const notePrefix = "notes/"

// Store satisfies the notebook persister contract on top of a loam vault.
type Store struct {
	vault *loamcore.Service
	seq   atomic.Uint64
}

// Open creates or reuses a vault at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := []loam.Option{loam.WithAutoInit(true), loam.WithVersioning(false)}
	if logger != nil {
		opts = append(opts, loam.WithLogger(logger))
	}
	vault, err := loam.New(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return &Store{vault: vault}, nil
}

// Append writes one note as a new document. Document IDs embed the note
// timestamp plus a process-local sequence number, so lexical ID order is
// submission order even when timestamps collide.
func (s *Store) Append(ctx context.Context, note types.Note) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	id := fmt.Sprintf("%s%020d-%06d", notePrefix, note.Timestamp.UnixNano(), s.seq.Add(1))
	meta := loamcore.Metadata{"recorded": note.Timestamp.Format("2006-01-02 15:04:05")}
	if err := s.vault.SaveDocument(ctx, id, string(body), meta); err != nil {
		return fmt.Errorf("save note %s: %w", id, err)
	}
	return nil
}

// Load returns every persisted note in submission order.
func (s *Store) Load(ctx context.Context) ([]types.Note, error) {
	docs, err := s.vault.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	kept := docs[:0]
	for _, doc := range docs {
		if strings.HasPrefix(doc.ID, notePrefix) {
			kept = append(kept, doc)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })

	notes := make([]types.Note, 0, len(kept))
	for _, doc := range kept {
		// ListDocuments returns IDs and metadata only; content needs a Get.
		full, err := s.vault.GetDocument(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("read note %s: %w", doc.ID, err)
		}
		var note types.Note
		if err := json.Unmarshal([]byte(full.Content), &note); err != nil {
			return nil, fmt.Errorf("decode note %s: %w", doc.ID, err)
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// Clear deletes every persisted note. Other documents in the vault are left
// alone.
func (s *Store) Clear(ctx context.Context) error {
	docs, err := s.vault.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list notes: %w", err)
	}
	for _, doc := range docs {
		if !strings.HasPrefix(doc.ID, notePrefix) {
			continue
		}
		if err := s.vault.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete note %s: %w", doc.ID, err)
		}
	}
	return nil
}
