package enums

import "testing"

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole("owner")
	if err != nil || role != UserRoleOwner {
		t.Fatalf("expected owner, got %q err=%v", role, err)
	}
	if _, err := ParseUserRole("admin"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if UserRole("").IsValid() {
		t.Fatal("empty role must be invalid")
	}
}

func TestBookingStatusTerminal(t *testing.T) {
	if BookingStatusActive.IsTerminal() {
		t.Fatal("active is not terminal")
	}
	for _, s := range []BookingStatus{BookingStatusCompleted, BookingStatusCancelled} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if _, err := ParseBookingStatus("pending"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestParseLogEventType(t *testing.T) {
	for _, raw := range []string{"entry", "exit", "alert"} {
		if _, err := ParseLogEventType(raw); err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
	}
	if LogEventType("parked").IsValid() {
		t.Fatal("unknown event type must be invalid")
	}
}
