package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/clipfetch/internal/domain"
)

// HistoryRepo records jobs that reached a terminal state.
type HistoryRepo interface {
	Append(ctx context.Context, entry HistoryEntry) error
	List(ctx context.Context) ([]HistoryEntry, error)
	ByPhase(ctx context.Context, phase domain.Phase) ([]HistoryEntry, error)
}

// HistoryEntry is one finished job as stored on disk.
type HistoryEntry struct {
	ID         uuid.UUID           `json:"id"`
	TaskID     domain.JobHandle    `json:"task_id,omitempty"`
	Service    domain.Service      `json:"service"`
	URL        string              `json:"url"`
	Format     domain.FormatChoice `json:"format"`
	Location   domain.SaveLocation `json:"location"`
	Phase      domain.Phase        `json:"phase"`
	FileURL    string              `json:"file_url,omitempty"`
	LocalPath  string              `json:"local_path,omitempty"`
	Warning    string              `json:"warning,omitempty"`
	Error      string              `json:"error,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
}

// NewHistoryEntry flattens a terminal state into an entry.
func NewHistoryEntry(h domain.JobHandle, sub domain.Submission, state domain.DownloadState) HistoryEntry {
	e := HistoryEntry{
		ID:         uuid.New(),
		TaskID:     h,
		Service:    sub.Service,
		URL:        sub.URL,
		Format:     sub.Format,
		Location:   sub.Location,
		Phase:      state.Phase(),
		FinishedAt: time.Now().UTC(),
	}
	switch st := state.(type) {
	case domain.Completed:
		e.FileURL = st.FileURL
		e.LocalPath = st.LocalPath
		e.Warning = st.Warning
	case domain.Failed:
		e.Error = st.Message
	}
	return e
}

// HistoryStore keeps the history in memory and mirrors it to a JSON file.
type HistoryStore struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	file    string
}

// NewHistoryStore opens the history at filePath, loading existing entries.
func NewHistoryStore(filePath string) (*HistoryStore, error) {
	s := &HistoryStore{file: filepath.Clean(filePath)}

	if err := s.restore(); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	slog.Debug("history initialized", "file_path", s.file, "entries", len(s.entries))
	return s, nil
}

func (s *HistoryStore) restore() error {
	data, err := os.ReadFile(s.file)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		return fmt.Errorf("failed to unmarshal history file: %w", err)
	}
	return nil
}

// persistLocked writes the entries to a fresh temporary file next to the
// history file and renames it into place. The caller holds s.mu.
func (s *HistoryStore) persistLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.file)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set history file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Append adds entry and saves the file. Concurrent calls are serialized; an
// entry that could not be saved is dropped from memory too.
func (s *HistoryStore) Append(ctx context.Context, entry HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if err := s.persistLocked(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return fmt.Errorf("failed to save history after append: %w", err)
	}

	slog.Debug("history entry saved", "task_id", entry.TaskID, "phase", entry.Phase)
	return nil
}

// List returns all entries, oldest first.
func (s *HistoryStore) List(ctx context.Context) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]HistoryEntry(nil), s.entries...), nil
}

// ByPhase returns the entries that ended in phase.
func (s *HistoryStore) ByPhase(ctx context.Context, phase domain.Phase) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []HistoryEntry
	for _, e := range s.entries {
		if e.Phase == phase {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}
