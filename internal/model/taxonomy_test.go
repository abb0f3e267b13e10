package model

import "testing"

func TestParseSeverity(t *testing.T) {
	for _, input := range []string{"Info", "Low", "Medium", "High", "Critical"} {
		severity, err := ParseSeverity(input)
		if err != nil {
			t.Fatalf("parse %s: %v", input, err)
		}
		if string(severity) != input {
			t.Fatalf("severity mismatch: %s", severity)
		}
	}

	if _, err := ParseSeverity("Catastrophic"); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
	if _, err := ParseSeverity(""); err == nil {
		t.Fatalf("expected error for empty severity")
	}
}

func TestParseFindingType(t *testing.T) {
	for _, input := range []string{"Info", "Suspicious", "Degraded", "Exploit"} {
		findingType, err := ParseFindingType(input)
		if err != nil {
			t.Fatalf("parse %s: %v", input, err)
		}
		if string(findingType) != input {
			t.Fatalf("type mismatch: %s", findingType)
		}
	}

	if _, err := ParseFindingType("Unknown"); err == nil {
		t.Fatalf("expected error for unknown finding type")
	}
}
