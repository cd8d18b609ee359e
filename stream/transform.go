package stream

import (
	"errors"
	"io"
	"strings"
	"unicode"
)

// ErrTerminated is returned by Transform.Write after a violation has
// terminated the stream.
var ErrTerminated = errors.New("stream: terminated by violation")

// ChunkStrategy groups emitted text before it reaches the downstream
// writer. It is an output-shaping option only; scanning correctness never
// depends on it.
type ChunkStrategy string

// Chunk strategies.
const (
	// ChunkFixed forwards each scanned chunk as-is.
	ChunkFixed ChunkStrategy = "fixed"
	// ChunkSentence buffers emitted text until a sentence boundary.
	ChunkSentence ChunkStrategy = "sentence"
	// ChunkTokens buffers emitted text until a whitespace boundary.
	ChunkTokens ChunkStrategy = "tokens"
)

// OnViolationFunc fires synchronously with the violation that terminated
// (or redacted) the stream.
type OnViolationFunc func(Violation)

// Transform is the text-to-text pipeline stage the facade hands to stream
// consumers: an io.WriteCloser that scans through a Monitor and forwards
// clean text downstream. Once a violation terminates the stream, no byte
// observed at or after the violation is ever written downstream, and
// every further Write returns ErrTerminated.
type Transform struct {
	monitor     *Monitor
	downstream  io.Writer
	onViolation OnViolationFunc
	strategy    ChunkStrategy
	pending     strings.Builder
	terminated  bool
}

// NewTransform wraps a Monitor into a Transform writing to downstream.
func NewTransform(monitor *Monitor, downstream io.Writer, onViolation OnViolationFunc, strategy ChunkStrategy) *Transform {
	if strategy == "" {
		strategy = ChunkFixed
	}
	return &Transform{
		monitor:     monitor,
		downstream:  downstream,
		onViolation: onViolation,
		strategy:    strategy,
	}
}

// Write scans p and forwards the clean portion downstream per the chunk
// strategy. A scan violation fires the callback, terminates the stream,
// and suppresses the chunk; the write itself reports success so the
// producer can observe termination through the callback (and subsequent
// ErrTerminated writes) rather than a mid-chunk short count.
func (t *Transform) Write(p []byte) (int, error) {
	if t.terminated {
		return 0, ErrTerminated
	}

	res := t.monitor.Feed(string(p))
	if res.Violation != nil && t.onViolation != nil {
		t.onViolation(*res.Violation)
	}
	if res.Terminate {
		t.terminated = true
		t.pending.Reset()
		return len(p), nil
	}

	if err := t.emit(res.Emit); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close flushes any strategy-buffered text. It does not close the
// downstream writer; the downstream's lifecycle belongs to the caller.
func (t *Transform) Close() error {
	if t.terminated || t.pending.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(t.downstream, t.pending.String())
	t.pending.Reset()
	return err
}

// Terminated reports whether a violation has shut the stream down.
func (t *Transform) Terminated() bool { return t.terminated }

func (t *Transform) emit(text string) error {
	if text == "" {
		return nil
	}

	switch t.strategy {
	case ChunkFixed:
		_, err := io.WriteString(t.downstream, text)
		return err
	case ChunkSentence:
		return t.emitBuffered(text, lastSentenceBoundary)
	case ChunkTokens:
		return t.emitBuffered(text, lastSpaceBoundary)
	default:
		_, err := io.WriteString(t.downstream, text)
		return err
	}
}

// emitBuffered appends text to the pending buffer and flushes up to the
// last boundary the cut function finds.
func (t *Transform) emitBuffered(text string, cut func(string) int) error {
	t.pending.WriteString(text)
	buf := t.pending.String()
	idx := cut(buf)
	if idx < 0 {
		return nil
	}
	out, rest := buf[:idx+1], buf[idx+1:]
	t.pending.Reset()
	t.pending.WriteString(rest)
	_, err := io.WriteString(t.downstream, out)
	return err
}

func lastSentenceBoundary(s string) int {
	return strings.LastIndexAny(s, ".!?\n")
}

func lastSpaceBoundary(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if unicode.IsSpace(rune(s[i])) {
			return i
		}
	}
	return -1
}
