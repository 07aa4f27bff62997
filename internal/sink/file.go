package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"eve_analyst/internal/event"
)

const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// File appends results to one file per run inside a directory.
type File struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	format string
}

// FileName is the per-run output file name for a run started at t.
func FileName(t time.Time, format string) string {
	ext := ".txt"
	if format == FormatJSONL {
		ext = ".jsonl"
	}
	return "suricata_analysis_" + t.Format("20060102_150405") + ext
}

// NewFile creates dir if needed and opens the run's output file for append.
func NewFile(dir, format string, started time.Time) (*File, error) {
	switch format {
	case "":
		format = FormatText
	case FormatText, FormatJSONL:
	default:
		return nil, fmt.Errorf("file sink: unknown format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(started, format))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file sink: open %s: %w", path, err)
	}
	return &File{f: f, path: path, format: format}, nil
}

// Path is the file results are written to.
func (s *File) Path() string {
	return s.path
}

// Append writes the whole record with a single write so a record is never
// split across a shutdown.
func (s *File) Append(_ context.Context, res event.Result) error {
	rec, err := s.encode(res)
	if err != nil {
		return fmt.Errorf("file sink: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(rec); err != nil {
		return fmt.Errorf("file sink: write: %w", err)
	}
	return nil
}

func (s *File) encode(res event.Result) ([]byte, error) {
	if s.format == FormatJSONL {
		data, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}

	ev, err := json.MarshalIndent(res.Event, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("Event: ")
	buf.Write(ev)
	buf.WriteString("\nAnalysis: ")
	buf.WriteString(res.Analysis)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return fmt.Errorf("file sink: sync: %w", err)
	}
	return s.f.Close()
}
