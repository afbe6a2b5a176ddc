// Package confwatcher is a demo external collaborator: fsnotify delivers
// events over a channel rather than a pollable fd on every supported
// platform, so a dedicated goroutine drains that channel and calls
// Loop.Wake, the same boundary any other worker thread uses to hop back
// onto the loop's goroutine. This is the pattern the sibling pack repo
// (SeleniaProject-Orizon) uses for its own config hot-reload.
package confwatcher

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	reactor "github.com/li5414/MServer"
)

// ConfWatcher notifies a callback, on the loop's own goroutine, whenever
// a watched file changes.
type ConfWatcher struct {
	fsw *fsnotify.Watcher
	loop *reactor.Loop

	mu      sync.Mutex
	pending []fsnotify.Event
	onEvent func(fsnotify.Event)

	done chan struct{}
}

// New starts watching paths and invokes onEvent (on the loop's
// goroutine, inside Loop.Run) for every fsnotify event observed.
func New(loop *reactor.Loop, onEvent func(fsnotify.Event), paths ...string) (*ConfWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	c := &ConfWatcher{fsw: fsw, loop: loop, onEvent: onEvent, done: make(chan struct{})}

	// fsnotify delivers events over a channel rather than a pollable fd
	// on every supported platform; drain it from a dedicated goroutine
	// and hand events to the loop via Wake, the same boundary a worker
	// thread or socket codec uses to hop back onto the loop's goroutine.
	go c.drain()

	return c, nil
}

func (c *ConfWatcher) drain() {
	for {
		select {
		case ev, ok := <-c.fsw.Events:
			if !ok {
				return
			}
			c.mu.Lock()
			c.pending = append(c.pending, ev)
			c.mu.Unlock()
			_ = c.loop.Wake()
		case <-c.done:
			return
		}
	}
}

// Dispatch delivers every event buffered since the last call, invoking
// onEvent for each. Call this from wherever the loop learns it was
// woken for config-watcher reasons (e.g. a RunningHook, or a watcher on
// a side-channel fd shared with this ConfWatcher).
func (c *ConfWatcher) Dispatch() {
	c.mu.Lock()
	events := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, ev := range events {
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

// Close stops watching and releases the fsnotify watcher.
func (c *ConfWatcher) Close() error {
	close(c.done)
	return c.fsw.Close()
}
