package sandbox

import (
	"context"
	"errors"
	"testing"

	"github.com/nox-hq/aegis/llm"
	"github.com/nox-hq/aegis/quarantine"
)

type stubProvider struct {
	responses []string
	calls     int
	err       error
}

func (p *stubProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	r := p.responses[p.calls%len(p.responses)]
	p.calls++
	return &llm.Response{Content: r}, nil
}

func testSchema() Schema {
	return Schema{Fields: []Field{
		{Name: "summary", Type: FieldString, MaxLength: 50},
		{Name: "score", Type: FieldNumber, Default: 0.0},
		{Name: "flagged", Type: FieldBoolean, Default: false},
		{Name: "category", Type: FieldEnum, Values: []string{"low", "high"}, Default: "low"},
	}}
}

func TestExtractHappyPath(t *testing.T) {
	p := &stubProvider{responses: []string{`{"summary":"a doc","score":0.5,"flagged":true,"category":"high"}`}}
	e := New(p)
	q := quarantine.Wrap("some untrusted document", quarantine.SourceFileUpload)
	out, err := e.Extract(context.Background(), q, Options{Schema: testSchema()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["category"] != "high" || out["flagged"] != true {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestExtractStripsMarkdownFence(t *testing.T) {
	p := &stubProvider{responses: []string{"```json\n{\"summary\":\"x\",\"score\":1,\"flagged\":false,\"category\":\"low\"}\n```"}}
	e := New(p)
	q := quarantine.Wrap("content", quarantine.SourceWebContent)
	out, err := e.Extract(context.Background(), q, Options{Schema: testSchema()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["summary"] != "x" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestExtractRetriesThenSucceeds(t *testing.T) {
	p := &stubProvider{responses: []string{"not json", `{"summary":"ok","score":1,"flagged":false,"category":"low"}`}}
	e := New(p)
	q := quarantine.Wrap("content", quarantine.SourceWebContent)
	out, err := e.Extract(context.Background(), q, Options{Schema: testSchema(), MaxRetries: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["summary"] != "ok" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestExtractFailOpenReturnsDefaults(t *testing.T) {
	p := &stubProvider{responses: []string{"garbage", "garbage", "garbage"}}
	e := New(p)
	q := quarantine.Wrap("content", quarantine.SourceWebContent)
	out, err := e.Extract(context.Background(), q, Options{Schema: testSchema(), MaxRetries: 1, FailMode: FailOpen})
	if err != nil {
		t.Fatalf("expected fail-open to suppress the error, got %v", err)
	}
	if out["category"] != "low" {
		t.Fatalf("expected default category, got %+v", out)
	}
}

func TestExtractFailClosedReturnsError(t *testing.T) {
	p := &stubProvider{err: errors.New("provider unavailable")}
	e := New(p)
	q := quarantine.Wrap("content", quarantine.SourceWebContent)
	_, err := e.Extract(context.Background(), q, Options{Schema: testSchema(), MaxRetries: 0, FailMode: FailClosed})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtractEnumRejectsOutOfRangeValue(t *testing.T) {
	p := &stubProvider{responses: []string{
		`{"summary":"x","score":1,"flagged":false,"category":"critical"}`,
		`{"summary":"x","score":1,"flagged":false,"category":"low"}`,
	}}
	e := New(p)
	q := quarantine.Wrap("content", quarantine.SourceWebContent)
	out, err := e.Extract(context.Background(), q, Options{Schema: testSchema(), MaxRetries: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["category"] != "low" {
		t.Fatalf("expected retry to recover a valid enum value, got %+v", out)
	}
}
