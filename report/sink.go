package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/nlukyanov/mailbox-sizes/mailbox"
)

// Header is the fixed column order; downstream consumers of the report
// rely on it.
var Header = []string{"email", "messages_count", "mailbox_size_gb", "size_is_correct"}

// Sink appends mailbox reports to a semicolon-delimited CSV file. Appends
// are serialized so rows from concurrent walks never interleave; each row
// is flushed as soon as it is written.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewSink opens (or creates) the report file and writes the header row.
func NewSink(path string) (*Sink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open report file: %w", err)
	}

	writer := csv.NewWriter(file)
	writer.Comma = ';'

	s := &Sink{file: file, writer: writer}
	if err := s.writeRecord(Header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write report header: %w", err)
	}
	return s, nil
}

// Append writes one report as one row. The report is immutable from the
// caller's point of view once handed over.
func (s *Sink) Append(r mailbox.Report) error {
	record := []string{
		r.Email,
		strconv.FormatUint(r.TotalMessages, 10),
		FormatGB(r.TotalSizeBytes),
		FormatFlag(r.SizeCorrect),
	}
	if err := s.writeRecord(record); err != nil {
		return fmt.Errorf("append report row for %s: %w", r.Email, err)
	}
	return nil
}

func (s *Sink) writeRecord(record []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Write(record); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Close flushes and closes the report file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()

	var firstErr error
	if err := s.writer.Error(); err != nil {
		firstErr = err
	}
	if err := s.file.Sync(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// FormatGB renders a byte count as gigabytes with two decimals.
func FormatGB(bytes int64) string {
	return strconv.FormatFloat(float64(bytes)/(1<<30), 'f', 2, 64)
}

// FormatFlag renders the correctness flag the way the previous generation
// of this report spelled it, so existing consumers keep working.
func FormatFlag(ok bool) string {
	if ok {
		return "True"
	}
	return "False"
}
