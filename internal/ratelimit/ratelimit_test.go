package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestLimiter(requestsPerSecond float64, burst int) (*Limiter, clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return newLimiter(requestsPerSecond, burst, clock), clock
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(remoteAddr, forwarded string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/presentations/p-1", nil)
	req.RemoteAddr = remoteAddr
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	return req
}

func TestRequestsWithinBurstAreAllowed(t *testing.T) {
	burst := 5
	limiter, _ := newTestLimiter(1, burst)

	for i := 0; i < burst; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Errorf("request %d within burst of %d should be allowed", i+1, burst)
		}
	}
	if limiter.allow("192.168.1.1") {
		t.Error("request exceeding burst should be denied")
	}
}

func TestTokensReplenishOverTime(t *testing.T) {
	limiter, clock := newTestLimiter(10, 2)

	limiter.allow("192.168.1.1")
	limiter.allow("192.168.1.1")
	if limiter.allow("192.168.1.1") {
		t.Fatal("expected request to be denied after exhausting burst")
	}

	clock.Advance(150 * time.Millisecond)

	if !limiter.allow("192.168.1.1") {
		t.Error("expected request to be allowed after token replenishment")
	}
}

func TestTokensDoNotExceedBurst(t *testing.T) {
	burst := 3
	limiter, clock := newTestLimiter(100, burst)
	limiter.allow("192.168.1.1")

	clock.Advance(time.Minute)

	allowed := 0
	for i := 0; i < burst+2; i++ {
		if limiter.allow("192.168.1.1") {
			allowed++
		}
	}
	if allowed != burst {
		t.Errorf("expected %d requests allowed, got %d", burst, allowed)
	}
}

func TestDifferentClientsHaveIndependentLimits(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)

	limiter.allow("10.0.0.1")
	if limiter.allow("10.0.0.1") {
		t.Error("expected second request from first client to be denied")
	}
	if !limiter.allow("10.0.0.2") {
		t.Error("expected first request from second client to be allowed")
	}
}

func TestPruneForgetsIdleClients(t *testing.T) {
	limiter, clock := newTestLimiter(1, 1)
	limiter.allow("10.0.0.1")

	clock.Advance(5 * time.Minute)
	limiter.allow("10.0.0.2")
	clock.Advance(6 * time.Minute)
	limiter.prune()

	if _, ok := limiter.visitors["10.0.0.1"]; ok {
		t.Error("expected idle client to be pruned")
	}
	if _, ok := limiter.visitors["10.0.0.2"]; !ok {
		t.Error("expected recent client to be kept")
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		expected   string
	}{
		{"remote addr host", "192.168.1.1:12345", "", "192.168.1.1"},
		{"remote addr without port", "192.168.1.1", "", "192.168.1.1"},
		{"forwarded", "10.0.0.1:1234", "203.0.113.50", "203.0.113.50"},
		{"forwarded chain", "10.0.0.1:1234", "203.0.113.50, 10.0.0.7", "203.0.113.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clientKey(requestFrom(tt.remoteAddr, tt.forwarded)); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMiddlewareReturns429WhenRateLimited(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)
	handler := limiter.Middleware(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.168.1.1:12345", ""))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestFrom("192.168.1.1:54321", ""))

	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", recorder.Code)
	}
	if recorder.Header().Get("Retry-After") != "10" {
		t.Errorf("expected Retry-After=10, got %s", recorder.Header().Get("Retry-After"))
	}
	if recorder.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", recorder.Header().Get("Content-Type"))
	}
	if strings.TrimSpace(recorder.Body.String()) != `{"error":"too many requests"}` {
		t.Errorf("unexpected body %s", recorder.Body.String())
	}
}

func TestMiddlewareRespectsXForwardedForHeader(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)
	handler := limiter.Middleware(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.99:1234", "203.0.113.50"))

	same := httptest.NewRecorder()
	handler.ServeHTTP(same, requestFrom("10.0.0.100:5678", "203.0.113.50"))
	if same.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for same X-Forwarded-For client, got %d", same.Code)
	}

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, requestFrom("10.0.0.99:1234", "203.0.113.51"))
	if other.Code != http.StatusOK {
		t.Errorf("expected 200 for different X-Forwarded-For client, got %d", other.Code)
	}
}

func TestMiddlewareDoesNotCallNextHandlerWhenRateLimited(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)
	callCount := 0

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.1:1234", ""))
	}

	if callCount != 1 {
		t.Errorf("expected next handler called 1 time, got %d", callCount)
	}
}
