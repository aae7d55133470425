package httpapi

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// IsTransient reports whether err is worth retrying: 429/5xx, deadlines, and
// network timeouts or resets.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return false
}

// RetryTransient calls f up to attempts times, doubling the sleep between
// transient failures up to 2s. Permanent errors return immediately.
func RetryTransient(ctx context.Context, attempts int, initialSleep time.Duration, f func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	sleep := initialSleep
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := f()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) || i == attempts-1 {
			return err
		}

		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		sleep *= 2
		if sleep > 2*time.Second {
			sleep = 2 * time.Second
		}
	}
	return lastErr
}
