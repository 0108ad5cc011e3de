package deadletter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore keeps entries in a JSON Lines file, one entry per line. Appends
// add a single line; replay-marking and purging rewrite the file through a
// temporary file and rename, preserving every untouched line byte for byte.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates a store at path. The parent directory is created if
// needed and must be writable; the file itself is created on first append.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("dead letter path is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dead letter directory: %w", err)
	}

	probe, err := os.CreateTemp(dir, ".dlq-probe-*")
	if err != nil {
		return nil, fmt.Errorf("dead letter directory %s is not writable: %w", dir, err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	if f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0); err == nil {
		_ = f.Close()
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("dead letter file %s is not writable: %w", path, err)
	}

	return &FileStore{
		path:   path,
		logger: logger.With("component", "dead_letter_file_store", "path", path),
	}, nil
}

// Path returns the location of the log file.
func (s *FileStore) Path() string { return s.path }

// Append writes e as one line at the end of the file.
func (s *FileStore) Append(_ context.Context, e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open dead letter file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write dead letter entry: %w", err)
	}
	return f.Close()
}

// Entries decodes every line of the file. A missing file has no entries.
// Lines that cannot be decoded are logged and skipped.
func (s *FileStore) Entries(_ context.Context) ([]Entry, error) {
	lines, err := s.readLines()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(lines))
	for i, line := range lines {
		e, ok := s.decode(line, i+1)
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// MarkReplayed re-encodes the matching line with Replayed set and rewrites
// the file.
func (s *FileStore) MarkReplayed(_ context.Context, id string) error {
	lines, err := s.readLines()
	if err != nil {
		return err
	}

	found := false
	for i, line := range lines {
		e, ok := s.decode(line, i+1)
		if !ok || e.ID != id {
			continue
		}
		e.Replayed = true
		updated, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		lines[i] = updated
		found = true
		break
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return s.rewrite(lines)
}

// Purge drops lines whose entry is older than before. A nil before empties
// the log, undecodable lines included, and counts every line removed. With a
// cutoff, undecodable lines are kept.
func (s *FileStore) Purge(_ context.Context, before *time.Time) (int, error) {
	lines, err := s.readLines()
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}
	if before == nil {
		if err := s.rewrite(nil); err != nil {
			return 0, err
		}
		return len(lines), nil
	}

	kept := make([][]byte, 0, len(lines))
	removed := 0
	for i, line := range lines {
		e, ok := s.decode(line, i+1)
		if !ok {
			kept = append(kept, line)
			continue
		}
		if e.Timestamp.Before(*before) {
			removed++
			continue
		}
		kept = append(kept, line)
	}

	if removed == 0 {
		return 0, nil
	}
	if err := s.rewrite(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *FileStore) decode(line []byte, lineNo int) (Entry, bool) {
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		s.logger.Warn("skipping malformed dead letter line", "line", lineNo, "error", err)
		return Entry{}, false
	}
	return e, true
}

// readLines returns the non-blank lines of the file without their newline.
func (s *FileStore) readLines() ([][]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open dead letter file: %w", err)
	}
	defer f.Close()

	return scanLines(f)
}

// scanLines splits r on newlines with no limit on line length, so an entry of
// any size written by Append can be read back.
func scanLines(r io.Reader) ([][]byte, error) {
	br := bufio.NewReader(r)

	var lines [][]byte
	for {
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			lines = append(lines, bytes.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dead letter file: %w", err)
		}
	}
}

func (s *FileStore) rewrite(lines [][]byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary dead letter file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write temporary dead letter file: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write temporary dead letter file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush temporary dead letter file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temporary dead letter file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary dead letter file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set dead letter file mode: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace dead letter file: %w", err)
	}
	return nil
}
