package main

import (
	"log/slog"
	"time"
)

// ============================================================================
// Trigger Loop
// ============================================================================
//
// One goroutine, one blocking point:
//
//	Waiting --(device readable)--> drain --(cooldown elapsed?)--> dispatch
//	   ^                                                              |
//	   +--------------------------------------------------------------+
//
// Draining before the cooldown decision keeps a burst of events from being
// replayed as later triggers and stops the readiness wait from firing again
// on stale data.
// ============================================================================

// eventSource is a readable device as the trigger loop sees it.
type eventSource interface {
	// WaitReadable blocks until data is available.
	WaitReadable() error
	// Drain discards everything currently buffered.
	Drain() error
	Close() error
}

// debouncer enforces the minimum interval between dispatches.
// The zero value has never triggered.
type debouncer struct {
	interval time.Duration
	last     time.Time
}

// allow reports whether a dispatch at now is permitted and, if so, records it.
func (d *debouncer) allow(now time.Time) bool {
	if !d.last.IsZero() && now.Sub(d.last) <= d.interval {
		return false
	}
	d.last = now
	return true
}

// loopState is everything the trigger loop owns.
type loopState struct {
	src      eventSource
	debounce debouncer
	dispatch dispatcher
	now      func() time.Time
	logger   *slog.Logger
}

func newLoopState(src eventSource, d dispatcher, logger *slog.Logger) *loopState {
	return &loopState{
		src:      src,
		debounce: debouncer{interval: cooldown},
		dispatch: d,
		now:      time.Now,
		logger:   logger,
	}
}

// runDaemon waits for device activity until the wait fails.
//
// It returns the error that ended the loop. Player failures never end it.
// The caller owns and closes the source.
func runDaemon(st *loopState) error {
	for {
		if err := st.src.WaitReadable(); err != nil {
			return err
		}

		now := st.now()
		if err := st.src.Drain(); err != nil {
			return err
		}

		if !st.debounce.allow(now) {
			st.logger.Debug("trigger suppressed", "since_last", now.Sub(st.debounce.last))
			continue
		}

		st.logger.Debug("trigger")
		_ = st.dispatch.Dispatch()
	}
}
