package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

func newRequestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Window: time.Minute, Max: 5, CleanupInterval: time.Minute})
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom("10.0.0.1:1234"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Window: 15 * time.Minute, Max: 2, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequestFrom("10.0.0.2:1000"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequestFrom("10.0.0.2:2000"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	// 15分/2リクエスト = 450秒で1トークン補充
	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After is not a number: %v", err)
	}
	if retryAfter != 450 {
		t.Errorf("Retry-After = %d, want 450", retryAfter)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want %q", body.Code, "RATE_LIMIT_EXCEEDED")
	}
	if body.Error == "" {
		t.Error("expected 'error' field in rate limit response")
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Window: time.Hour, Max: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, newRequestFrom("192.0.2.1:1111"))
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, newRequestFrom("192.0.2.1:2222"))
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, newRequestFrom("192.0.2.2:1111"))

	if w1.Code != http.StatusOK {
		t.Errorf("first client first request: status = %d", w1.Code)
	}
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("same host other port: status = %d, want 429", w2.Code)
	}
	if w3.Code != http.StatusOK {
		t.Errorf("second client: status = %d, want 200", w3.Code)
	}
	if got := rl.LimiterCount(); got != 2 {
		t.Errorf("LimiterCount() = %d, want 2", got)
	}
}

func TestRateLimitMiddleware_UsesRealIPBehindProxy(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Window: time.Hour, Max: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	handler := middleware.RealIP(rl.Middleware()(okHandler()))

	for _, forwarded := range []string{"203.0.113.5", "203.0.113.6"} {
		req := newRequestFrom("127.0.0.1:8080")
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("client %s: status = %d, want 200", forwarded, w.Code)
		}
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Window:          10 * time.Millisecond,
		Max:             5,
		CleanupInterval: 50 * time.Millisecond,
	})
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), newRequestFrom("10.1.1.1:1"))

	if rl.LimiterCount() == 0 {
		t.Fatal("expected at least one limiter entry")
	}

	// TTL は 50ms * 2 = 100ms
	deadline := time.Now().Add(2 * time.Second)
	for rl.LimiterCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if count := rl.LimiterCount(); count != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", count)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestRateLimiterConfig_Rate(t *testing.T) {
	tests := []struct {
		name string
		cfg  RateLimiterConfig
		want float64
	}{
		{"default", DefaultRateLimiterConfig(), 100.0 / 900.0},
		{"per second", RateLimiterConfig{Window: time.Second, Max: 10}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := float64(tt.cfg.Rate()); got != tt.want {
				t.Errorf("Rate() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.Window != 15*time.Minute {
		t.Errorf("Window = %v, want 15m", cfg.Window)
	}
	if cfg.Max != 100 {
		t.Errorf("Max = %d, want 100", cfg.Max)
	}
}
