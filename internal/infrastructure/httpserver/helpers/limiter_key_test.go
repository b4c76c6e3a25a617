package helpers

import "testing"

func TestLimiterKey_StableAndOpaque(t *testing.T) {
	a := LimiterKey("10.0.0.1", "client-1", "/tasks")
	b := LimiterKey("10.0.0.1", "client-1", "/tasks")
	if a != b {
		t.Fatalf("same inputs must derive the same key")
	}
	if len(a) != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", len(a))
	}
	for _, other := range []string{
		LimiterKey("10.0.0.2", "client-1", "/tasks"),
		LimiterKey("10.0.0.1", "client-2", "/tasks"),
		LimiterKey("10.0.0.1", "client-1", "/users"),
	} {
		if a == other {
			t.Fatalf("distinct callers must derive distinct keys")
		}
	}
}

func TestLimiterKey_FieldBoundaries(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide across field boundaries.
	if LimiterKey("ab", "c", "/p") == LimiterKey("a", "bc", "/p") {
		t.Fatalf("field boundary collision")
	}
}
