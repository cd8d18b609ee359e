package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ConsoleSink writes entries as structured slog records.
type ConsoleSink struct {
	logger *slog.Logger
}

// NewConsoleSink creates a ConsoleSink. A nil logger uses slog.Default().
func NewConsoleSink(logger *slog.Logger) *ConsoleSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSink{logger: logger}
}

// Write implements Sink.
func (s *ConsoleSink) Write(e Entry) error {
	attrs := []any{
		"event", e.Event,
		"decision", string(e.Decision),
	}
	if e.SessionID != "" {
		attrs = append(attrs, "session_id", e.SessionID)
	}
	if e.RequestID != "" {
		attrs = append(attrs, "request_id", e.RequestID)
	}
	for k, v := range e.Context {
		attrs = append(attrs, k, v)
	}

	switch e.Decision {
	case DecisionBlocked:
		s.logger.Warn("audit", attrs...)
	default:
		s.logger.Info("audit", attrs...)
	}
	return nil
}

// DefaultMaxSizeMB is the rotation threshold for a FileSink.
const DefaultMaxSizeMB = 50

// FileSink appends entries to a JSONL file, rotating it to a
// timestamp-suffixed sibling once it reaches MaxSizeMB.
type FileSink struct {
	path      string
	maxSizeMB int
}

// NewFileSink creates a FileSink writing to path. maxSizeMB <= 0 uses the
// default of 50.
func NewFileSink(path string, maxSizeMB int) *FileSink {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	return &FileSink{path: path, maxSizeMB: maxSizeMB}
}

// Write implements Sink: marshal one JSON object, append a newline, rotate
// first if the live file has grown past the threshold.
func (s *FileSink) Write(e Entry) error {
	if err := s.maybeRotate(); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending to audit log %s: %w", s.path, err)
	}
	return nil
}

// maybeRotate renames the live file to a timestamp-suffixed sibling when
// it has reached the size threshold. The next Write recreates the live
// file.
func (s *FileSink) maybeRotate() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat audit log %s: %w", s.path, err)
	}
	if info.Size() < int64(s.maxSizeMB)*1024*1024 {
		return nil
	}

	ext := filepath.Ext(s.path)
	base := s.path[:len(s.path)-len(ext)]
	rotated := fmt.Sprintf("%s-%s%s", base, time.Now().UTC().Format("20060102T150405"), ext)
	if err := os.Rename(s.path, rotated); err != nil {
		return fmt.Errorf("rotating audit log %s: %w", s.path, err)
	}
	return nil
}

// OTelSink writes entries shaped as OpenTelemetry log records (one JSON
// object per line) to an io.Writer, typically a pipe into a collector.
// It carries the OTel field names without taking a dependency on the OTel
// SDK; shipping is the collector's job.
type OTelSink struct {
	w           io.Writer
	serviceName string
}

// NewOTelSink creates an OTelSink writing to w under the given service
// name.
func NewOTelSink(w io.Writer, serviceName string) *OTelSink {
	if serviceName == "" {
		serviceName = "aegis"
	}
	return &OTelSink{w: w, serviceName: serviceName}
}

// otelRecord is the OTel log-record shape one Entry maps to.
type otelRecord struct {
	TimeUnixNano int64          `json:"timeUnixNano"`
	SeverityText string         `json:"severityText"`
	Body         string         `json:"body"`
	Attributes   map[string]any `json:"attributes"`
	Resource     map[string]any `json:"resource"`
}

// Write implements Sink.
func (s *OTelSink) Write(e Entry) error {
	severity := "INFO"
	if e.Decision == DecisionBlocked {
		severity = "WARN"
	}

	attrs := make(map[string]any, len(e.Context)+3)
	for k, v := range e.Context {
		attrs[k] = v
	}
	attrs["decision"] = string(e.Decision)
	if e.SessionID != "" {
		attrs["session.id"] = e.SessionID
	}
	if e.RequestID != "" {
		attrs["request.id"] = e.RequestID
	}

	rec := otelRecord{
		TimeUnixNano: e.Timestamp.UnixNano(),
		SeverityText: severity,
		Body:         e.Event,
		Attributes:   attrs,
		Resource:     map[string]any{"service.name": s.serviceName},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling otel record: %w", err)
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing otel record: %w", err)
	}
	return nil
}
