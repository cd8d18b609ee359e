package compliance

import (
	"testing"

	"github.com/nox-hq/aegis/detect"
)

func TestEveryCoreTypeIsMapped(t *testing.T) {
	core := []detect.Type{
		detect.TypeInstructionOverride,
		detect.TypeSkeletonKey,
		detect.TypeDataExfiltration,
		detect.TypeDenialOfWallet,
		detect.TypeCanaryLeak,
	}
	for _, typ := range core {
		if len(ForType(typ)) == 0 {
			t.Fatalf("detection type %s has no compliance mapping", typ)
		}
	}
}

func TestCustomTypeUnmapped(t *testing.T) {
	if len(ForType(detect.TypeCustom)) != 0 {
		t.Fatal("custom detections should carry no framework mapping")
	}
}

func TestFilterByFramework(t *testing.T) {
	filtered := FilterByFramework(MITREATLAS, Mappings())
	for typ, controls := range filtered {
		for _, c := range controls {
			if c.Framework != MITREATLAS {
				t.Fatalf("type %s kept a non-ATLAS control %+v", typ, c)
			}
		}
	}
	if _, ok := filtered[detect.TypeLLMJudgeRejected]; ok {
		t.Fatal("llm_judge_rejected maps only to OWASP and should be dropped from the ATLAS view")
	}
}

func TestFilterIsCaseInsensitive(t *testing.T) {
	lower := FilterByFramework(Framework("mitre-atlas"), Mappings())
	if len(lower) == 0 {
		t.Fatal("framework filtering should be case-insensitive")
	}
}

func TestMappingsReturnsCopies(t *testing.T) {
	m := Mappings()
	m[detect.TypeInstructionOverride][0].ControlID = "mutated"
	if ForType(detect.TypeInstructionOverride)[0].ControlID == "mutated" {
		t.Fatal("Mappings must not expose the internal table")
	}
}
