package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBusRingRetainsNewestEntries(t *testing.T) {
	b := NewBus(WithRingSize(3))
	for i := 0; i < 5; i++ {
		b.Emit(Entry{Event: "e" + string(rune('0'+i)), Decision: DecisionInfo})
	}
	got := b.Entries()
	if len(got) != 3 {
		t.Fatalf("expected ring of 3, got %d", len(got))
	}
	if got[0].Event != "e2" || got[2].Event != "e4" {
		t.Fatalf("expected oldest-first [e2..e4], got %v and %v", got[0].Event, got[2].Event)
	}
}

func TestBusStampsZeroTimestamps(t *testing.T) {
	b := NewBus()
	b.Emit(Entry{Event: "x", Decision: DecisionInfo})
	if b.Entries()[0].Timestamp.IsZero() {
		t.Fatal("expected Emit to stamp a zero timestamp")
	}
}

func TestBusSinkErrorDoesNotPropagate(t *testing.T) {
	failing := SinkFunc(func(Entry) error { return errors.New("sink down") })
	b := NewBus(WithSink(failing))
	// Must not panic or surface the error.
	b.Emit(Entry{Event: "x", Decision: DecisionBlocked})
	if len(b.Entries()) != 1 {
		t.Fatal("entry should still be recorded in the ring")
	}
}

func TestBusFansOutToAllSinks(t *testing.T) {
	var a, c int
	b := NewBus(
		WithSink(SinkFunc(func(Entry) error { a++; return nil })),
		WithSink(SinkFunc(func(Entry) error { c++; return nil })),
	)
	b.Emit(Entry{Event: "x", Decision: DecisionInfo})
	b.Emit(Entry{Event: "y", Decision: DecisionInfo})
	if a != 2 || c != 2 {
		t.Fatalf("expected both sinks to see both entries, got %d and %d", a, c)
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	s := NewFileSink(path, 0)

	entries := []Entry{
		{Timestamp: time.Now().UTC(), Event: "input_blocked", Decision: DecisionBlocked, SessionID: "s1"},
		{Timestamp: time.Now().UTC(), Event: "action_allowed", Decision: DecisionAllowed},
	}
	for _, e := range entries {
		if err := s.Write(e); err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	defer f.Close()

	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", lines)
	}
}

func TestFileSinkRotatesAtThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	// Pre-create a live file already past a 1 MB threshold.
	big := make([]byte, 1024*1024+1)
	if err := os.WriteFile(path, big, 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFileSink(path, 1)
	if err := s.Write(Entry{Timestamp: time.Now().UTC(), Event: "x", Decision: DecisionInfo}); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one rotated file, got %v (err %v)", matches, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("live file should have been recreated: %v", err)
	}
	if info.Size() > 1024 {
		t.Fatalf("live file should be fresh after rotation, size %d", info.Size())
	}
}

func TestOTelSinkShape(t *testing.T) {
	var buf strings.Builder
	s := NewOTelSink(&buf, "aegis-test")
	e := Entry{
		Timestamp: time.Unix(100, 0).UTC(),
		Event:     "input_blocked",
		Decision:  DecisionBlocked,
		SessionID: "s1",
		Context:   map[string]any{"score": 0.9},
	}
	if err := s.Write(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec["severityText"] != "WARN" {
		t.Fatalf("blocked decisions should map to WARN, got %v", rec["severityText"])
	}
	if rec["body"] != "input_blocked" {
		t.Fatalf("unexpected body: %v", rec["body"])
	}
	attrs := rec["attributes"].(map[string]any)
	if attrs["session.id"] != "s1" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
}
