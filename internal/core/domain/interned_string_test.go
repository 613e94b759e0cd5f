package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/loomworks/loom/internal/core/domain"
)

func TestInternedString_Equality(t *testing.T) {
	a := domain.NewInternedString("report")
	b := domain.NewInternedString("report")

	if a != b {
		t.Error("expected interned strings with the same content to be equal")
	}
	if a.Value() != b.Value() {
		t.Error("expected identical handles for the same content")
	}
	if a.String() != "report" {
		t.Errorf("expected report, got %s", a.String())
	}
}

func TestInternedString_ZeroValue(t *testing.T) {
	var zero domain.InternedString
	if zero.String() != "" {
		t.Errorf("expected empty string for zero value, got %q", zero.String())
	}
}

func TestInternedString_JSONRoundTrip(t *testing.T) {
	in := domain.NewInternedString("clean")

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	var out domain.InternedString
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if out != in {
		t.Errorf("expected %s after round trip, got %s", in, out)
	}
}
