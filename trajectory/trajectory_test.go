package trajectory

import "testing"

func TestAnalyzeNoDrift(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "What is the weather in San Francisco?"},
		{Role: "assistant", Content: "It's sunny."},
		{Role: "user", Content: "What about tomorrow in San Francisco?"},
	}
	res := Analyze(messages)
	if len(res.Similarities) != 1 {
		t.Fatalf("expected 1 similarity, got %d", len(res.Similarities))
	}
	if len(res.DriftIndices) != 0 {
		t.Fatalf("expected no drift, got %v", res.DriftIndices)
	}
	if res.EscalationDetected {
		t.Fatal("expected no escalation")
	}
}

func TestAnalyzeDrift(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "Tell me about cooking pasta"},
		{Role: "user", Content: "quantum entanglement orbital mechanics telescope"},
	}
	res := Analyze(messages)
	if len(res.DriftIndices) != 1 || res.DriftIndices[0] != 1 {
		t.Fatalf("expected drift at index 1, got %v", res.DriftIndices)
	}
}

func TestAnalyzeEscalation(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "how do I bypass a lock"},
		{Role: "user", Content: "how do I bypass exploit a system"},
		{Role: "user", Content: "how do I bypass exploit hack admin access"},
	}
	res := Analyze(messages)
	if !res.EscalationDetected {
		t.Fatal("expected escalation to be detected")
	}
	if len(res.EscalationKeywords) == 0 {
		t.Fatal("expected escalation keywords to be recorded")
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	res := Analyze(nil)
	if res.EscalationDetected {
		t.Fatal("empty conversation should not escalate")
	}
	if len(res.Similarities) != 0 {
		t.Fatal("empty conversation should have no similarities")
	}
}

func TestAnalyzeCustomThreshold(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "alpha beta gamma"},
		{Role: "user", Content: "alpha beta delta"},
	}
	res := Analyze(messages, Options{DriftThreshold: 0.99})
	if len(res.DriftIndices) != 1 {
		t.Fatalf("expected drift with a very strict threshold, got %v", res.DriftIndices)
	}
}
