package reactor

import (
	"sync"
	"time"
)

// minTimeJumpMS is the smallest rtmn_diff delta treated as a genuine
// wall-clock jump rather than scheduling jitter between two clock reads.
const minTimeJumpMS = 1000

// rtResampleThresholdMS bounds how often the wall clock is actually
// resampled; calls inside this window reuse the last rtmn_diff instead of
// making a fresh syscall.
const rtResampleThresholdMS = 500

// jumpDetectionMaxIter bounds the resample/compare retry loop. After this
// many attempts the latest sample is accepted regardless of delta size.
const jumpDetectionMaxIter = 4

// Clock tracks the loop's monotonic time (milliseconds, never decreases)
// and an interpolated wall-clock time (seconds), resampling the wall
// clock only occasionally and rejecting spurious single-read deltas.
//
// The monotonic and wall-clock sources are both injectable so tests can
// drive both independently of real time; NewClock wires real sources,
// NewClockFromSource drives both halves from one benbjohnson/clock.Clock
// (see collab/sqlworker for the same library used against a real
// database/sql driver).
type Clock struct {
	mu sync.RWMutex

	monoMS         int64
	wallSec        int64
	rtmnDiffMS     int64
	lastRTUpdateMS int64
	everUpdated    bool // distinguishes "never sampled" from a 0ms timestamp

	monotonicNow func() int64 // milliseconds
	realtimeNow  func() int64 // seconds
}

// NewClock returns a Clock backed by the real monotonic and wall clocks.
func NewClock() *Clock {
	start := time.Now()
	return newClock(
		func() int64 { return time.Since(start).Milliseconds() },
		func() int64 { return time.Now().Unix() },
	)
}

// WallClockSource is the minimal surface of benbjohnson/clock.Clock this
// package needs; satisfied by both clock.New() and clock.NewMock().
type WallClockSource interface {
	Now() time.Time
}

// NewClockFromSource builds a Clock whose wall-clock component is driven
// by src (typically a benbjohnson/clock.Mock in tests). The monotonic
// component still advances from src.Now(), so a fake clock's Add/Set
// drives both halves together — sufficient for the fire-once/periodic/
// jump test scenarios, which only need one moving time source.
func NewClockFromSource(src WallClockSource) *Clock {
	start := src.Now()
	return newClock(
		func() int64 { return src.Now().Sub(start).Milliseconds() },
		func() int64 { return src.Now().Unix() },
	)
}

func newClock(monotonicNow func() int64, realtimeNow func() int64) *Clock {
	return &Clock{monotonicNow: monotonicNow, realtimeNow: realtimeNow}
}

// MonotonicMS returns the last sampled monotonic time, in milliseconds.
// It never decreases between calls to update.
func (c *Clock) MonotonicMS() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monoMS
}

// RealtimeSeconds returns the last sampled, interpolated wall-clock time.
func (c *Clock) RealtimeSeconds() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wallSec
}

// WallNanos extends RealtimeSeconds with sub-second resolution derived
// from the same rtmn_diff, without an extra wall-clock syscall.
func (c *Clock) WallNanos() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return (c.rtmnDiffMS + c.monoMS) * int64(time.Millisecond)
}

// update resamples the monotonic clock unconditionally, and the wall
// clock either by reuse (inside rtResampleThresholdMS of the last
// update) or by a fresh resample/jump-detection loop.
func (c *Clock) update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	mono := c.monotonicNow()
	if c.everUpdated && mono-c.lastRTUpdateMS < rtResampleThresholdMS {
		c.monoMS = mono
		c.wallSec = (c.rtmnDiffMS + c.monoMS) / 1000
		return
	}

	// Resample both clocks up to jumpDetectionMaxIter times, accepting the
	// first sample whose rtmn_diff is close to the prior one. A single
	// outlier delta is usually scheduler preemption between the two
	// reads, not an actual wall-clock jump; after the last iteration we
	// accept whatever we most recently read. The very first update has no
	// prior rtmn_diff to compare against and accepts its first sample.
	prevDiff := c.rtmnDiffMS
	seeding := !c.everUpdated
	for i := 0; i < jumpDetectionMaxIter; i++ {
		mono = c.monotonicNow()
		wall := c.realtimeNow()
		diff := wall*1000 - mono

		delta := diff - prevDiff
		if delta < 0 {
			delta = -delta
		}

		c.monoMS = mono
		c.wallSec = wall
		c.rtmnDiffMS = diff
		c.lastRTUpdateMS = mono
		c.everUpdated = true

		if seeding || delta < minTimeJumpMS {
			return
		}
		prevDiff = diff
	}
}
