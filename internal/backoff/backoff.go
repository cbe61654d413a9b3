// Package backoff implements a small capped-exponential backoff with
// jitter, shared by the explorer client, the session ingestor's NotReady
// retry loop, and the supervisor's restart loop.
package backoff

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Policy describes a capped exponential backoff schedule.
type Policy struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// Default is a reasonable general-purpose policy: 500ms base, 2x factor,
// capped at 30s.
var Default = Policy{Base: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2}

// Duration returns the backoff duration for the given attempt (0-indexed),
// with up to 20% jitter applied.
func (p Policy) Duration(attempt int) time.Duration {
	d := float64(p.Base)
	for i := 0; i < attempt; i++ {
		d *= p.Factor
		if d >= float64(p.Max) {
			d = float64(p.Max)
			break
		}
	}
	capped := time.Duration(d)
	if capped > p.Max {
		capped = p.Max
	}
	return jitter(capped)
}

// jitter returns a duration in [0.8*d, 1.2*d), using crypto/rand so the
// jitter source is never seeded by wall-clock time (which this engine
// avoids reading from in hot paths).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return d
	}
	n := binary.BigEndian.Uint64(b[:]) >> 11 // 53-bit mantissa
	frac := float64(n) / float64(1<<53)      // [0, 1)
	mult := 0.8 + frac*0.4                   // [0.8, 1.2)
	return time.Duration(float64(d) * mult)
}

// Sleep blocks for the policy's attempt-th backoff duration, or returns
// ctx.Err() early if ctx is cancelled first.
func Sleep(ctx context.Context, p Policy, attempt int) error {
	t := time.NewTimer(p.Duration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
