// Package idlog persists the set of already-processed preprint identifiers.
// The log is the bot's sole idempotency guard: once an identifier is
// appended, no future run announces it again.
package idlog

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Log is an append-only, newline-delimited identifier file with an in-memory
// set for membership tests. The file is read fully when opened; each append
// is flushed to disk before returning so an abrupt termination never loses a
// processed identifier.
type Log struct {
	path string
	f    *os.File
	seen map[string]struct{}
}

// Open reads the log at path, creating it if missing. Entries are trimmed of
// surrounding whitespace; duplicate lines are tolerated (the set absorbs
// them) and blank lines are ignored.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open id log %s: %w", path, err)
	}

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			seen[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read id log %s: %w", path, err)
	}

	return &Log{path: path, f: f, seen: seen}, nil
}

// Contains reports whether id has already been processed.
func (l *Log) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// Append durably records id as processed. The write is synced before Append
// returns; there is no cross-item buffering.
func (l *Log) Append(id string) error {
	if _, err := l.f.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("failed to append %s to id log: %w", id, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync id log: %w", err)
	}
	l.seen[id] = struct{}{}
	return nil
}

// IDs returns the distinct identifiers in the log, in no particular order.
func (l *Log) IDs() []string {
	ids := make([]string, 0, len(l.seen))
	for id := range l.seen {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of distinct identifiers in the log.
func (l *Log) Len() int {
	return len(l.seen)
}

// Close releases the underlying file handle.
func (l *Log) Close() error {
	return l.f.Close()
}
