package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
		{"Phase", KeyPhase, "build", Phase("build")},
		{"Step", KeyStep, "resolve", Step("resolve")},
		{"Group", KeyGroup, "article", Group("article")},
		{"Document", KeyDocument, "docs/a.md", Document("docs/a.md")},
		{"UID", KeyUID, "System.String", UID("System.String")},
		{"Container", KeyContainer, "dotnet", Container("dotnet")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Kind", KeyKind, "toc", Kind("toc")},
		{"URL", KeyURL, "http://example", URL("http://example")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if v := Count(3); v.Key != KeyCount || v.Value.Int64() != 3 {
		t.Fatalf("Count mismatch: %v", v)
	}
	if v := Attempt(2); v.Key != KeyAttempt {
		t.Fatalf("Attempt key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS || v.Value.Float64() != 12.5 {
		t.Fatalf("DurationMS mismatch: %v", v)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	if attr := Error(nil); attr.Value.String() != "" {
		t.Fatalf("expected empty error string, got %s", attr.Value.String())
	}
	if attr := Error(errors.New("boom")); attr.Value.String() != "boom" {
		t.Fatalf("expected boom, got %s", attr.Value.String())
	}
}
