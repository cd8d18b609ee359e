// Package multimodal is the Multi-Modal Scanner: it enforces file-size
// and media-type limits, hands the raw bytes to an injected extractor
// (OCR, ASR, PDF text layer), and runs the extracted text through the
// Input Scanner. Text extraction itself is an external collaborator; the
// injection point mirrors the Provider-interface style of the sandbox and
// judge packages.
package multimodal

import (
	"context"
	"errors"
	"fmt"

	"github.com/nox-hq/aegis/detect"
	"github.com/nox-hq/aegis/quarantine"
	"github.com/nox-hq/aegis/scanner"
)

// MediaType is the closed set of supported media kinds.
type MediaType string

// Media types.
const (
	MediaImage    MediaType = "image"
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
	MediaPDF      MediaType = "pdf"
	MediaDocument MediaType = "document"
)

// AllMediaTypes lists every supported media type, the default allow set.
var AllMediaTypes = []MediaType{MediaImage, MediaAudio, MediaVideo, MediaPDF, MediaDocument}

// DefaultMaxFileSize bounds scanned content at 10 MiB.
const DefaultMaxFileSize = 10 << 20

// Sentinel failures for the media pipeline.
var (
	ErrFileTooLarge     = errors.New("multimodal: file exceeds size limit")
	ErrUnsupportedType  = errors.New("multimodal: media type not allowed")
	ErrExtractionFailed = errors.New("multimodal: extraction failed")
	ErrNotConfigured    = errors.New("multimodal: no extractor configured")
)

// Extracted is the extractor's output: the recovered text plus the
// extractor's own confidence in it.
type Extracted struct {
	Text       string
	Confidence float64
	Metadata   map[string]any
}

// ExtractorFunc converts raw media bytes into text. Implementations are
// external collaborators (OCR, ASR, PDF parsing) injected at
// construction.
type ExtractorFunc func(ctx context.Context, content []byte, mediaType MediaType) (Extracted, error)

// AuditFunc receives one event per ScanMedia outcome.
type AuditFunc func(event string, decision string, context map[string]any)

// Config tunes a Scanner.
type Config struct {
	Extractor         ExtractorFunc
	MaxFileSize       int
	AllowedMediaTypes []MediaType
	Scanner           *scanner.Scanner
	OnAudit           AuditFunc
}

// Result is ScanMedia's output.
type Result struct {
	Extracted  Extracted
	MediaType  MediaType
	ScanResult detect.ScanResult
	FileSize   int
	Safe       bool
}

// Scanner runs the extract-then-scan pipeline with limit enforcement.
type Scanner struct {
	cfg     Config
	allowed map[MediaType]struct{}
}

// New creates a Scanner. Zero-value limits fall back to the defaults.
func New(cfg Config) *Scanner {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	types := cfg.AllowedMediaTypes
	if len(types) == 0 {
		types = AllMediaTypes
	}
	allowed := make(map[MediaType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return &Scanner{cfg: cfg, allowed: allowed}
}

// ScanMedia enforces size and type limits, extracts text, and scans it.
// Every outcome, including each failure, emits one audit event.
func (s *Scanner) ScanMedia(ctx context.Context, content []byte, mediaType MediaType) (Result, error) {
	if s.cfg.Extractor == nil {
		return Result{}, ErrNotConfigured
	}

	size := len(content)
	if size > s.cfg.MaxFileSize {
		s.audit("media_rejected", "blocked", map[string]any{"media_type": string(mediaType), "file_size": size, "reason": "file too large"})
		return Result{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, s.cfg.MaxFileSize)
	}
	if _, ok := s.allowed[mediaType]; !ok {
		s.audit("media_rejected", "blocked", map[string]any{"media_type": string(mediaType), "reason": "unsupported media type"})
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedType, mediaType)
	}

	extracted, err := s.cfg.Extractor(ctx, content, mediaType)
	if err != nil {
		s.audit("media_extraction_failed", "flagged", map[string]any{"media_type": string(mediaType), "error": err.Error()})
		return Result{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	q := quarantine.Wrap(extracted.Text, sourceFor(mediaType))
	scanResult := s.cfg.Scanner.Scan(q)

	res := Result{
		Extracted:  extracted,
		MediaType:  mediaType,
		ScanResult: scanResult,
		FileSize:   size,
		Safe:       scanResult.Safe,
	}

	decision := "allowed"
	if !res.Safe {
		decision = "blocked"
	}
	s.audit("media_scanned", decision, map[string]any{
		"media_type": string(mediaType),
		"file_size":  size,
		"score":      scanResult.Score,
	})
	return res, nil
}

// sourceFor maps a media type to the quarantine provenance its extracted
// text carries into the scan.
func sourceFor(mt MediaType) quarantine.Source {
	switch mt {
	case MediaPDF, MediaDocument:
		return quarantine.SourceFileUpload
	default:
		return quarantine.SourceUnknown
	}
}

func (s *Scanner) audit(event, decision string, ctx map[string]any) {
	if s.cfg.OnAudit != nil {
		s.cfg.OnAudit(event, decision, ctx)
	}
}
