package env

import "testing"

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("SMARTPARK_TEST_VALUE", "  json ")
	if got := Get("SMARTPARK_TEST_VALUE", "console"); got != "json" {
		t.Fatalf("expected json, got %q", got)
	}
	t.Setenv("SMARTPARK_TEST_VALUE", "   ")
	if got := Get("SMARTPARK_TEST_VALUE", "console"); got != "console" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
}

func TestFirst(t *testing.T) {
	t.Setenv("SMARTPARK_TEST_A", "")
	t.Setenv("SMARTPARK_TEST_B", "web.1")
	if got := First("SMARTPARK_TEST_A", "SMARTPARK_TEST_B"); got != "web.1" {
		t.Fatalf("expected web.1, got %q", got)
	}
	if got := First("SMARTPARK_TEST_A"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
