package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/angelmondragon/smartpark-backend/api/responses"
	"github.com/angelmondragon/smartpark-backend/pkg/types"
)

func TestRequestIDKeepsWellFormedInbound(t *testing.T) {
	handler := RequestID(nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(responses.RequestIDHeader, "edge-1234abcd")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(responses.RequestIDHeader); got != "edge-1234abcd" {
		t.Fatalf("expected inbound id to be echoed, got %q", got)
	}
}

func TestRequestIDReplacesMalformedInbound(t *testing.T) {
	handler := RequestID(nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(responses.RequestIDHeader, "bad id with spaces")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	got := rec.Header().Get(responses.RequestIDHeader)
	if got == "" || got == "bad id with spaces" {
		t.Fatalf("expected generated id, got %q", got)
	}
}

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := RequestID(nil)(Recoverer(nil)(panicking))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
	if body.Error.RequestID == "" || body.Error.RequestID != rec.Header().Get(responses.RequestIDHeader) {
		t.Fatalf("expected request id in body, got %q", body.Error.RequestID)
	}
}
