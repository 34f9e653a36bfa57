package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-gpus/config"
)

func TestRetryPolicyRespectsLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 2

	rp := newRetryPolicy(cfg)
	transient := ErrServer{Status: http.StatusBadGateway, Err: errors.New("bad gateway")}

	if !rp.allow(1, transient) {
		t.Fatalf("first retry should be allowed")
	}
	if !rp.allow(2, transient) {
		t.Fatalf("second retry should be allowed")
	}
	if rp.allow(3, transient) {
		t.Fatalf("third retry should not be allowed")
	}
}

func TestRetryPolicySkipsPermanentErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 5

	rp := newRetryPolicy(cfg)
	if rp.allow(1, ErrNotFound{Err: errors.New("gone")}) {
		t.Fatalf("not found should not be retried")
	}
	if rp.allow(1, errors.New("no responder")) {
		t.Fatalf("unclassified errors should not be retried")
	}

	cfg.MaxRetries = 0
	if newRetryPolicy(cfg).allow(1, ErrTimeout{Err: context.DeadlineExceeded}) {
		t.Fatalf("retries disabled should never allow")
	}
}

func TestRetryPolicyBackoffCapped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	rp := newRetryPolicy(cfg)

	if delay := rp.backoff(1); delay != 200*time.Millisecond {
		t.Fatalf("first delay = %v, want 200ms", delay)
	}
	delay := rp.backoff(4)
	if delay > cfg.RetryBackoffMax {
		t.Fatalf("delay %v exceeds max %v", delay, cfg.RetryBackoffMax)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Service Unavailable"), statusCode: http.StatusServiceUnavailable, expected: "server_error"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestFetchErrorUnwrapsClassification(t *testing.T) {
	err := error(&FetchError{URL: "http://shop.test/x", Err: ErrNotFound{Err: errors.New("Not Found")}})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.URL != "http://shop.test/x" {
		t.Fatalf("expected FetchError for url, got %v", err)
	}
	if got := errorTypeLabel(err); got != "not_found" {
		t.Fatalf("label through FetchError = %q, want not_found", got)
	}
}
