// Package indexing keeps resumable progress for corpus indexing.
package indexing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

const CursorVersion = 1

// Cursor records how far indexing of one corpus into one collection has progressed.
type Cursor struct {
	Version    int    `json:"version"`
	Corpus     string `json:"corpus"`
	Collection string `json:"collection"`
	// NextLine is the 0-based corpus line to resume from.
	NextLine       int       `json:"next_line"`
	ProcessedCount int       `json:"processed_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsEmpty returns true if the cursor has no position set.
func (c Cursor) IsEmpty() bool {
	return c.NextLine == 0
}

// Matches reports whether the cursor was written for this corpus and collection.
func (c Cursor) Matches(corpus, collection string) bool {
	return c.Corpus == corpus && c.Collection == collection
}

// CursorManager handles cursor persistence with atomic writes and file locking.
type CursorManager struct {
	filePath string
	lockFile *os.File
}

// NewCursorManager creates a new CursorManager for the given file path.
func NewCursorManager(filePath string) *CursorManager {
	return &CursorManager{
		filePath: filePath,
	}
}

// Lock acquires an exclusive lock on the cursor file.
// Returns an error if the lock is already held by another process.
func (m *CursorManager) Lock() error {
	lockPath := m.filePath + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("cursor %s is locked by another index run", m.filePath)
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	m.lockFile = f
	return nil
}

// Unlock releases the exclusive lock on the cursor file.
func (m *CursorManager) Unlock() error {
	if m.lockFile == nil {
		return nil
	}

	if err := syscall.Flock(int(m.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if err := m.lockFile.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	m.lockFile = nil

	_ = os.Remove(m.filePath + ".lock")
	return nil
}

// Load reads the cursor from disk.
// Returns an empty cursor if the file doesn't exist or is empty.
func (m *CursorManager) Load() (Cursor, error) {
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Cursor{Version: CursorVersion}, nil
		}
		return Cursor{}, fmt.Errorf("read cursor file: %w", err)
	}
	if len(data) == 0 {
		return Cursor{Version: CursorVersion}, nil
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("parse cursor file: %w", err)
	}
	if cursor.Version == 0 {
		cursor.Version = CursorVersion
	}
	return cursor, nil
}

// Save writes the cursor to disk atomically (write temp, then rename).
func (m *CursorManager) Save(cursor Cursor) error {
	cursor.Version = CursorVersion
	cursor.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmpPath := m.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp cursor file: %w", err)
	}
	if err := os.Rename(tmpPath, m.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename cursor file: %w", err)
	}
	return nil
}

// Reset clears the cursor file.
func (m *CursorManager) Reset() error {
	if err := os.Remove(m.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cursor file: %w", err)
	}
	return nil
}

// FilePath returns the cursor file path.
func (m *CursorManager) FilePath() string {
	return m.filePath
}
