// Package ratelimit wires github.com/joeycumines/go-catrate's sliding
// window limiter against the loop's overload hook: a tick whose busy
// time crosses a threshold counts as an "overload event" under the fixed
// "loop" category (see OverloadHandler). Other callers count their own
// work under their own categories through Allow (collab/aoi uses "aoi"),
// and once a category exceeds its configured rate, Guard starts
// rejecting new work for that category until the window clears.
//
// This is one of the collab/ packages demonstrating the core's
// external-collaborator boundary: it never touches reactor internals;
// its only link to the loop is a handler with the signature
// reactor.WithOverloadHandler accepts.
package ratelimit

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// Guard throttles overload notifications per category using a
// catrate.Limiter, so a burst of slow ticks produces one rejection
// decision per window rather than one log line per tick.
type Guard struct {
	limiter *catrate.Limiter
}

// NewGuard builds a Guard with the given sliding-window rates, e.g.
//
//	NewGuard(map[time.Duration]int{
//	    time.Second:      5,  // at most 5 overload ticks per second
//	    10 * time.Second: 20, // and at most 20 per 10 seconds
//	})
func NewGuard(rates map[time.Duration]int) *Guard {
	return &Guard{limiter: catrate.NewLimiter(rates)}
}

// Allow reports whether category is still under its configured rates;
// if not, the caller should shed load (e.g. defer non-critical
// collaborator work) until the window clears.
func (g *Guard) Allow(category string) bool {
	_, ok := g.limiter.Allow(category)
	return ok
}

// OverloadHandler adapts Guard to the signature reactor.WithOverloadHandler
// expects, tagging every notification under the fixed "loop" category.
func (g *Guard) OverloadHandler() func(error) {
	return func(err error) {
		g.limiter.Allow("loop")
	}
}
