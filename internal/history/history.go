// Package history keeps the JSON ledger of when each location root last
// completed a clean backup.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"msync/internal/bt"
)

// FileName is the ledger's file name inside the home directory.
const FileName = "history.json"

type record struct {
	LastBackup float64 `json:"lastBackup"`
}

// Entry is one root's ledger record.
type Entry struct {
	Root       string
	LastBackup time.Time
}

// Ledger implements bt.HistoryLedger on a JSON file of the form
// {"<root>": {"lastBackup": <epoch seconds>}}. Every change rewrites the
// file atomically. Safe for concurrent use.
type Ledger struct {
	path string
	mu   sync.Mutex
}

var _ bt.HistoryLedger = (*Ledger)(nil)

// NewLedger creates a ledger stored at path. The file is created on first write.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) LastBackup(root string) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return time.Time{}, err
	}
	return fromEpoch(records[root].LastBackup), nil
}

func (l *Ledger) SetLastBackup(root string, t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return err
	}
	records[root] = record{LastBackup: float64(t.UnixNano()) / 1e9}
	return l.write(records)
}

func (l *Ledger) Remove(root string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return err
	}
	if _, ok := records[root]; !ok {
		return nil
	}
	delete(records, root)
	return l.write(records)
}

// All returns every recorded root, sorted by root.
func (l *Ledger) All() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(records))
	for _, root := range slices.Sorted(maps.Keys(records)) {
		entries = append(entries, Entry{Root: root, LastBackup: fromEpoch(records[root].LastBackup)})
	}
	return entries, nil
}

func (l *Ledger) read() (map[string]record, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	records := map[string]record{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding history %s: %w", l.path, err)
	}
	return records, nil
}

func (l *Ledger) write(records map[string]record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing history: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("replacing history: %w", err)
	}
	return nil
}

// fromEpoch converts fractional epoch seconds to a UTC time.
func fromEpoch(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}
