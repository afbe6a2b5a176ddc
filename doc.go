// Package reactor implements the single-threaded event-loop core used by
// the rest of this server: a readiness-multiplexed I/O backend (epoll on
// Linux, kqueue on Darwin), a binary-heap timer store, and a coalescing
// pending-event queue, driven by one goroutine's call to Loop.Run.
//
// Everything outside the loop — SQL worker threads, script bindings,
// socket codecs, AOI grids, config watchers — talks to it only through
// StartIO/StopIO, StartTimer/StopTimer and Wake. None of those
// collaborators are part of this package; see the collab/ subpackages
// for examples wired against the same backends the loop itself uses.
//
// A Loop is not safe for concurrent use except where documented: Wake,
// Quit and SetBackendTimeCoarse may be called from any goroutine;
// everything else (StartIO, StopIO, StartTimer, StopTimer, Run) must run
// on the loop's own goroutine or before Run is first called.
package reactor
