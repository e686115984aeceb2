// Package ratelimit implements an in-process sliding-window-log rate
// limiter keyed by client identifier.
//
// The limiter stores individual request timestamps per identifier and
// prunes those outside the trailing window on every check, giving exact
// limit enforcement with no burst-at-boundary doubling. Memory is O(window
// size) per identifier, acceptable at this service's per-identifier volume.
//
// State is per process: it is lost on restart and not shared across
// horizontally-scaled instances, so the effective global limit is the
// configured limit times the instance count. This is an accepted
// defense-in-depth trade-off, not a bug; a shared counter store keyed the
// same way would be the production-grade replacement.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = 60 * time.Second

	// DefaultStaleAfter is how long an identifier may stay idle before the
	// sweep removes it. The sweep is purely memory reclamation; Check
	// self-prunes on every read and never depends on it.
	DefaultStaleAfter = 5 * time.Minute
)

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	// Reset is the time until the oldest surviving timestamp exits the
	// window. Zero when the request is allowed and the window is empty.
	Reset time.Duration
}

// Limiter is a concurrency-safe, identifier-keyed expiring request counter.
//
// The internal map is the only shared mutable state and is never exposed;
// all access goes through Check so the locking discipline stays in one
// place.
type Limiter struct {
	logger *slog.Logger
	now    func() time.Time

	sweepInterval time.Duration
	staleAfter    time.Duration

	mu      sync.Mutex
	entries map[string][]time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Limiter. Call Start to enable the background sweep and
// Stop on shutdown.
func New(logger *slog.Logger) *Limiter {
	return &Limiter{
		logger:        logger,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		staleAfter:    DefaultStaleAfter,
		entries:       make(map[string][]time.Time),
		stopCh:        make(chan struct{}),
	}
}

// Check applies the sliding-window-log algorithm for one identifier.
//
// Policy values (limit, window) are supplied by the caller per route; the
// limiter itself is policy-free. The prune and the append happen under one
// lock acquisition so two concurrent checks for the same identifier can
// never both observe pre-prune state and over-admit.
func (l *Limiter) Check(identifier string, limit int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-window)

	timestamps := l.entries[identifier]

	// Drop everything at or before the window start. Appends are monotonic
	// in wall-clock time, so the slice is chronologically ordered and the
	// live region is a suffix.
	live := timestamps[:0:0]
	for _, ts := range timestamps {
		if ts.After(windowStart) {
			live = append(live, ts)
		}
	}

	if len(live) >= limit {
		reset := live[0].Add(window).Sub(now)
		if reset < 0 {
			reset = 0
		}
		l.entries[identifier] = live
		return Result{Allowed: false, Remaining: 0, Reset: reset}
	}

	live = append(live, now)
	l.entries[identifier] = live

	return Result{
		Allowed:   true,
		Remaining: limit - len(live),
		Reset:     live[0].Add(window).Sub(now),
	}
}

// Start launches the periodic sweep goroutine.
func (l *Limiter) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the sweep goroutine and waits for it to exit.
// Safe to call multiple times; safe to call without Start.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	l.wg.Wait()
}

// sweep removes identifiers whose newest timestamp is older than the
// staleness cutoff, bounding memory growth from abandoned identifiers.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.staleAfter)
	removed := 0
	for identifier, timestamps := range l.entries {
		if len(timestamps) == 0 || timestamps[len(timestamps)-1].Before(cutoff) {
			delete(l.entries, identifier)
			removed++
		}
	}

	if removed > 0 {
		l.logger.Debug("rate limiter sweep", "removed", removed, "tracked", len(l.entries))
	}
}

// size returns the number of tracked identifiers. Test helper.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
