package shared

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == b {
		t.Error("expected distinct IDs")
	}
	if len(a) != 36 || strings.Count(a, "-") != 4 {
		t.Errorf("expected a UUID string, got %s", a)
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"count": 3}

	compact, err := MarshalJSON(v, false)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if string(compact) != `{"count":3}` {
		t.Errorf("unexpected compact output: %s", compact)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil {
		t.Fatalf("failed to marshal pretty: %v", err)
	}
	if !strings.Contains(string(pretty), "\n") {
		t.Errorf("expected indented output, got %s", pretty)
	}
}
