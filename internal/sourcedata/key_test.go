package sourcedata

import "testing"

func TestKeyForNormalization(t *testing.T) {
	a := KeyFor("What is Austria's GDP?")
	b := KeyFor("  what is austrias gdp  ")
	if a.Signature != b.Signature {
		t.Fatalf("signatures differ for equivalent queries: %s vs %s", a.Signature, b.Signature)
	}
	if a.Normalized != "what is austria s gdp" {
		t.Fatalf("normalized = %q", a.Normalized)
	}
	if a.QueryText != "What is Austria's GDP?" {
		t.Fatalf("query text should only be trimmed, got %q", a.QueryText)
	}
}

func TestKeyForDistinctQueries(t *testing.T) {
	if KeyFor("gdp of austria").Signature == KeyFor("gdp of germany").Signature {
		t.Fatalf("distinct queries should have distinct signatures")
	}
}

func TestKeyForEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "?!?"} {
		key := KeyFor(q)
		if key.Normalized != "empty-query" {
			t.Fatalf("KeyFor(%q).Normalized = %q, want empty-query", q, key.Normalized)
		}
		if len(key.Signature) != 64 {
			t.Fatalf("signature should be a sha256 hex digest, got %q", key.Signature)
		}
	}
}
