package script

import "testing"

func TestDetectPureLatin(t *testing.T) {
	lang := Detect("hello, world!")
	if lang.Primary != Latin {
		t.Fatalf("expected primary Latin, got %s", lang.Primary)
	}
	if len(lang.Switches) != 0 {
		t.Fatalf("expected no switches, got %+v", lang.Switches)
	}
}

func TestDetectMixedScriptSwitch(t *testing.T) {
	lang := Detect("helloПривет")
	if len(lang.Switches) != 1 {
		t.Fatalf("expected exactly one switch, got %+v", lang.Switches)
	}
	if lang.Switches[0].From != Latin || lang.Switches[0].To != Cyrillic {
		t.Fatalf("unexpected switch: %+v", lang.Switches[0])
	}
}

func TestDetectNeutralOnly(t *testing.T) {
	lang := Detect("123 456, 789!")
	if !lang.Unknown {
		t.Fatalf("expected unknown primary for purely neutral text, got %+v", lang)
	}
}

func TestDetectCJK(t *testing.T) {
	lang := Detect("こんにちは")
	if lang.Primary != CJK {
		t.Fatalf("expected CJK primary, got %s", lang.Primary)
	}
}
