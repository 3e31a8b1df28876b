package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/smartpark-backend/pkg/db/models"
)

type fakeWindow struct {
	counts map[string]int64
	err    error
}

func (f *fakeWindow) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }

func bookingRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/user/bookings", nil)
	return req.WithContext(WithUser(req.Context(), &models.User{ID: userID}))
}

func TestBookingRateLimitPerUser(t *testing.T) {
	store := &fakeWindow{counts: map[string]int64{}}
	handler := BookingRateLimit(store, 2, time.Minute, nil)(okHandler())

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, bookingRequest("a"))
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, bookingRequest("a"))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, bookingRequest("b"))
	if resp.Code != http.StatusOK {
		t.Fatalf("other users must not be throttled, got %d", resp.Code)
	}
}

func TestBookingRateLimitStoreFailure(t *testing.T) {
	handler := BookingRateLimit(&fakeWindow{err: errors.New("redis down")}, 2, time.Minute, nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, bookingRequest("a"))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestIPRateLimit(t *testing.T) {
	handler := IPRateLimit(1, time.Minute, nil)(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.1:1234"
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, second)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if !contains(resp.Body.String(), "RATE_LIMIT_EXCEEDED") {
		t.Fatalf("expected error envelope, got %s", resp.Body.String())
	}
}
