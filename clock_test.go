package reactor

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestClockMonotonicNeverDecreases(t *testing.T) {
	mock := clock.NewMock()
	c := NewClockFromSource(mock)

	c.update()
	first := c.MonotonicMS()

	mock.Add(10 * time.Millisecond)
	c.update()
	second := c.MonotonicMS()

	require.GreaterOrEqual(t, second, first)
}

func TestClockWallClockTracksSource(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))
	c := NewClockFromSource(mock)

	c.update()
	require.Equal(t, int64(1_700_000_000), c.RealtimeSeconds())

	mock.Add(2 * time.Second)
	c.update()
	require.Equal(t, int64(1_700_000_002), c.RealtimeSeconds())
}

func TestClockSmallAdvanceReusesRTMNDiffWithoutResample(t *testing.T) {
	// Regression guard for the 500ms reuse window: fake the wall clock
	// separately from the monotonic clock so we can tell whether update
	// actually resampled it.
	var monoMS int64
	var wallCalls int
	var wallSec int64 = 1_000_000

	c := newClock(
		func() int64 { return monoMS },
		func() int64 { wallCalls++; return wallSec },
	)

	c.update() // first call always resamples
	require.Equal(t, 1, wallCalls)

	monoMS += 100 // well within the 500ms reuse window
	wallSec = 999_999_999 // would be a huge jump if resampled
	c.update()

	require.Equal(t, 1, wallCalls, "update should not have resampled the wall clock")
	require.Equal(t, int64(1_000_000), c.RealtimeSeconds())
}

func TestClockJumpDetectionRejectsSingleOutlierSample(t *testing.T) {
	var monoMS int64 = 10_000 // past the 500ms threshold already
	var wallSec int64 = 1_000_000
	calls := 0

	// The first two resamples disagree wildly (simulating a preempted
	// read pair); the third settles back near the original diff and
	// should be the one accepted.
	c := newClock(
		func() int64 { return monoMS },
		func() int64 {
			calls++
			switch calls {
			case 2: // first resample after the seeding update
				return wallSec + 5000 // huge outlier
			default:
				return wallSec
			}
		},
	)
	c.update() // seed rtmn_diff with the real baseline
	require.Equal(t, wallSec, c.RealtimeSeconds())

	monoMS += 600 // force a resample on the next update
	c.update()

	require.Equal(t, wallSec, c.RealtimeSeconds())
}

func TestClockJumpDetectionAcceptsAfterMaxIterations(t *testing.T) {
	var monoMS int64 = 10_000
	var wallSec int64 = 1_000_000
	var jumpPerRead int64

	c := newClock(
		func() int64 { return monoMS },
		func() int64 { wallSec += jumpPerRead; return wallSec },
	)
	c.update()

	monoMS += 600
	jumpPerRead = 100 // the wall clock jumps 100s on every read, larger than minTimeJumpMS every time
	c.update()

	// After jumpDetectionMaxIter attempts, the latest sample must be
	// accepted regardless of the persistent large delta.
	require.Equal(t, wallSec, c.RealtimeSeconds())
}

func TestClockWallNanosDerivedWithoutSyscall(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(500, 0))
	c := NewClockFromSource(mock)
	c.update()

	require.Equal(t, int64(500)*int64(time.Second), c.WallNanos())
}
