// Package timeouts provides centralized timeout values for outbound calls.
//
// Every call to the data store or to the chat platform runs under one of
// these budgets via context.WithTimeout. A timeout is an ordinary failure
// for the caller: the scheduler logs it and moves to the next promo.
//
//   - Ping: health checks
//   - Store: one data-store call (read or write)
//   - Platform: one chat-platform call (role, channel, message)
//   - Batch: a whole scheduler batch, bounding every call inside it
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing     = 2 * time.Second
	DefaultStore    = 10 * time.Second
	DefaultPlatform = 15 * time.Second
	DefaultBatch    = 10 * time.Minute
)

var mu sync.RWMutex

var (
	ping     = DefaultPing
	store    = DefaultStore
	platform = DefaultPlatform
	batch    = DefaultBatch
)

// Ping returns the timeout for health checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Store returns the timeout for a single data-store call.
func Store() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return store
}

// Platform returns the timeout for a single chat-platform call.
func Platform() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return platform
}

// Batch returns the timeout for one start or archive batch.
func Batch() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return batch
}

// Config holds timeout configuration values.
// Zero values are ignored (defaults are kept).
type Config struct {
	Ping     time.Duration
	Store    time.Duration
	Platform time.Duration
	Batch    time.Duration
}

// Configure sets custom timeout values. Zero values are ignored.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Store > 0 {
		store = cfg.Store
	}
	if cfg.Platform > 0 {
		platform = cfg.Platform
	}
	if cfg.Batch > 0 {
		batch = cfg.Batch
	}
}

// Reset restores all timeouts to their default values.
// Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	store = DefaultStore
	platform = DefaultPlatform
	batch = DefaultBatch
}

// ConfigureFromEnv reads TIMEOUT_PING, TIMEOUT_STORE, TIMEOUT_PLATFORM and
// TIMEOUT_BATCH (Go duration strings). Invalid or missing values are
// skipped. Returns the number of timeouts configured.
func ConfigureFromEnv() int {
	var cfg Config
	configured := 0
	for _, e := range []struct {
		key    string
		target *time.Duration
	}{
		{"TIMEOUT_PING", &cfg.Ping},
		{"TIMEOUT_STORE", &cfg.Store},
		{"TIMEOUT_PLATFORM", &cfg.Platform},
		{"TIMEOUT_BATCH", &cfg.Batch},
	} {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*e.target = d
			configured++
		}
	}
	Configure(cfg)
	return configured
}

// WithTimeout creates a context with timeout and returns a cancel function
// that logs a warning if the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Batch(), s.log, "promo start batch")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
