package policy

import "testing"

func TestEvaluateACLDenyWins(t *testing.T) {
	p := Policy{Capabilities: Capabilities{
		Allow: []string{"*"},
		Deny:  []string{"delete_user"},
	}}
	d := p.EvaluateACL("delete_user")
	if d.Allowed {
		t.Fatal("expected deny to win over allow")
	}
	if !contains(d.Reason, "deny list") {
		t.Fatalf("expected reason to mention deny list, got %q", d.Reason)
	}
}

func TestEvaluateACLRequireApproval(t *testing.T) {
	p := Policy{Capabilities: Capabilities{
		RequireApproval: []string{"refund_*"},
	}}
	d := p.EvaluateACL("refund_customer")
	if !d.Allowed || !d.RequiresApproval {
		t.Fatalf("expected allowed-with-approval, got %+v", d)
	}
}

func TestEvaluateACLDefaultDenyWhenAllowNonEmpty(t *testing.T) {
	p := Policy{Capabilities: Capabilities{Allow: []string{"search_*"}}}
	d := p.EvaluateACL("delete_all")
	if d.Allowed {
		t.Fatal("expected default-deny when allow list is non-empty and unmatched")
	}
}

func TestEvaluateACLOpenWhenNoLists(t *testing.T) {
	p := Policy{}
	d := p.EvaluateACL("anything")
	if !d.Allowed {
		t.Fatal("expected allow when no capability lists are configured")
	}
}

func TestParseWindowValid(t *testing.T) {
	cases := map[string]int64{"60s": 60, "5m": 300, "1h": 3600, "1d": 86400}
	for s, wantSeconds := range cases {
		got := ParseWindow(s)
		if got.Seconds() != float64(wantSeconds) {
			t.Errorf("ParseWindow(%q) = %v, want %ds", s, got, wantSeconds)
		}
	}
}

func TestParseWindowMalformedFallsBackToDefault(t *testing.T) {
	for _, s := range []string{"", "abc", "10x", "-5s"} {
		if got := ParseWindow(s); got.Seconds() != 60 {
			t.Errorf("ParseWindow(%q) = %v, want 60s default", s, got)
		}
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
