package entropy

import "testing"

func TestAnalyzeEmptyAndSingleChar(t *testing.T) {
	for _, s := range []string{"", "a"} {
		r := Analyze(s, DefaultWindow, DefaultThreshold)
		if r.Mean != 0 || r.MaxWindow != 0 || r.Anomalous {
			t.Fatalf("Analyze(%q) = %+v, want zero result", s, r)
		}
	}
}

func TestAnalyzeNaturalLanguageNotAnomalous(t *testing.T) {
	r := Analyze("What is the weather in San Francisco today?", DefaultWindow, DefaultThreshold)
	if r.Anomalous {
		t.Fatalf("natural language flagged anomalous: %+v", r)
	}
}

func TestAnalyzeHighEntropyAnomalous(t *testing.T) {
	// A long run of varied, non-repeating-looking characters approximating
	// a GCG-style suffix.
	gcg := "x8K$qZ7!pL2@wR9#mN4^vB6&cF1*tY3(dH5)sJ0-aU2_eI8=oM7~gV4`lQ9"
	r := Analyze(gcg, DefaultWindow, DefaultThreshold)
	if !r.Anomalous {
		t.Fatalf("expected high-entropy suffix to be anomalous: %+v", r)
	}
}

func TestShannonEntropyUniform(t *testing.T) {
	// "aaaa" has zero entropy (single symbol).
	if got := ShannonEntropy("aaaa"); got != 0 {
		t.Fatalf("expected 0 entropy for uniform string, got %v", got)
	}
}
