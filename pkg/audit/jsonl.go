package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/trialkit/pkg/domain"
)

// JSONLWriter writes one JSON object per line.
// Write failures are logged and counted, never propagated to the runtime.
type JSONLWriter struct {
	w       io.Writer
	closer  io.Closer
	encoder *json.Encoder
	logger  *slog.Logger
	Failed  int
}

// NewJSONLWriter wraps an io.Writer.
func NewJSONLWriter(w io.Writer, logger *slog.Logger) *JSONLWriter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{w: w, encoder: enc, logger: logger}
}

// OpenJSONL opens path for appending, creating parent directories.
func OpenJSONL(path string, logger *slog.Logger) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	w := NewJSONLWriter(f, logger)
	w.closer = f
	return w, nil
}

// Log implements ports.AuditSink.
func (w *JSONLWriter) Log(rec domain.Record) {
	if err := w.encoder.Encode(rec); err != nil {
		w.Failed++
		w.logger.Warn("audit record dropped", "type", rec.Header().Type, "seq", rec.Header().Seq, "err", err)
	}
}

// Close closes the underlying file if the writer owns one.
func (w *JSONLWriter) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Entry is one decoded audit line.
type Entry map[string]any

// Type returns the record type.
func (e Entry) Type() domain.RecordType {
	s, _ := e["type"].(string)
	return domain.RecordType(s)
}

// Number returns a numeric field.
func (e Entry) Number(key string) (float64, bool) {
	v, ok := e[key].(float64)
	return v, ok
}

// Object returns a nested object field.
func (e Entry) Object(key string) Entry {
	m, _ := e[key].(map[string]any)
	return Entry(m)
}

// ReadJSONL decodes a JSON-lines stream. Blank and malformed lines are skipped
// and reported through the returned count.
func ReadJSONL(r io.Reader) ([]Entry, int, error) {
	var entries []Entry
	skipped := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, skipped, nil
}

// ReadFile decodes a JSON-lines audit file.
func ReadFile(path string) ([]Entry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()
	return ReadJSONL(f)
}
