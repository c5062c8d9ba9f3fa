// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retry provides bounded exponential backoff for transient
// upstream failures.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the first retry; each further retry
	// doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the doubling.
	MaxDelay time.Duration
}

// DefaultPolicy returns the production retry configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Do runs fn up to MaxAttempts times.
//
// # Description
//
// After a failed attempt, transient decides whether the error is worth
// retrying; a non-transient error returns immediately without consuming
// further attempts. The wait between attempts doubles from BaseDelay up
// to MaxDelay and honors context cancellation: a canceled context
// returns ctx.Err() rather than sleeping out the backoff.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - op: Operation name for logging.
//   - transient: Classifier; nil treats every error as transient.
//   - fn: The operation. A nil error stops the loop.
//
// # Outputs
//
//   - error: nil on success; the last error wrapped with the attempt
//     count when all attempts fail; the classification's error unchanged
//     when non-transient.
func (p Policy) Do(ctx context.Context, op string, transient func(error) bool, fn func(context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if transient != nil && !transient(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		slog.Warn("Transient failure, backing off",
			"operation", op,
			"attempt", attempt,
			"maxAttempts", p.MaxAttempts,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, p.MaxAttempts, lastErr)
}
