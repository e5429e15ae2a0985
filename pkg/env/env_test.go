package env

import "testing"

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("VEGSHOP_TEST_PORT", "  8081 ")
	if got := Get("VEGSHOP_TEST_PORT", "8080"); got != "8081" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("VEGSHOP_TEST_PORT", "   ")
	if got := Get("VEGSHOP_TEST_PORT", "8080"); got != "8080" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestFirstSkipsBlankKeys(t *testing.T) {
	t.Setenv("VEGSHOP_TEST_A", "")
	t.Setenv("VEGSHOP_TEST_B", "worker-2")
	got, ok := First("VEGSHOP_TEST_A", "VEGSHOP_TEST_B")
	if !ok || got != "worker-2" {
		t.Fatalf("expected worker-2, got %q ok=%v", got, ok)
	}
	if _, ok := First("VEGSHOP_TEST_MISSING"); ok {
		t.Fatalf("expected no value")
	}
}
