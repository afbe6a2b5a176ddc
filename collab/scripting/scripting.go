// Package scripting binds a goja.Runtime's setTimeout/setInterval/
// clearTimeout/clearInterval to a reactor.Loop's timer watchers. It is
// the concrete stand-in for the "script bindings" external collaborator:
// scripting never touches loop internals, only Loop.StartTimer/StopTimer.
package scripting

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	reactor "github.com/li5414/MServer"
)

// Adapter bridges a goja.Runtime to a reactor.Loop, installing the
// timer-based globals scripts typically expect.
type Adapter struct {
	loop    *reactor.Loop
	runtime *goja.Runtime

	mu     sync.Mutex
	nextID int64
	timers map[int64]*reactor.TimerWatcher
}

// New builds an Adapter over loop and runtime and installs setTimeout,
// setInterval, clearTimeout and clearInterval as JS globals.
func New(loop *reactor.Loop, runtime *goja.Runtime) (*Adapter, error) {
	if loop == nil {
		return nil, fmt.Errorf("scripting: loop cannot be nil")
	}
	if runtime == nil {
		return nil, fmt.Errorf("scripting: runtime cannot be nil")
	}
	a := &Adapter{loop: loop, runtime: runtime, timers: make(map[int64]*reactor.TimerWatcher)}

	must := func(name string, fn func(goja.FunctionCall) goja.Value) {
		if err := runtime.Set(name, fn); err != nil {
			panic(fmt.Errorf("scripting: installing %s: %w", name, err))
		}
	}
	must("setTimeout", a.jsSetTimer(0))
	must("setInterval", a.jsSetTimer(-1)) // sentinel: repeat == delay
	must("clearTimeout", a.jsClear)
	must("clearInterval", a.jsClear)

	return a, nil
}

// Loop returns the underlying reactor.Loop.
func (a *Adapter) Loop() *reactor.Loop { return a.loop }

// Runtime returns the underlying goja.Runtime.
func (a *Adapter) Runtime() *goja.Runtime { return a.runtime }

func (a *Adapter) jsSetTimer(repeatSentinel int64) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(a.runtime.NewTypeError("timer callback required"))
		}
		fn, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			panic(a.runtime.NewTypeError("first argument must be a function"))
		}
		var delayMS int64
		if len(call.Arguments) > 1 {
			delayMS = call.Arguments[1].ToInteger()
		}
		repeat := repeatSentinel
		if repeat < 0 {
			repeat = delayMS
		}

		a.mu.Lock()
		id := a.nextID
		a.nextID++
		a.mu.Unlock()

		w := reactor.NewTimerWatcher(delayMS, repeat, func(reactor.Events) {
			if _, err := fn(goja.Undefined()); err != nil {
				panic(err)
			}
			if repeat == 0 {
				a.mu.Lock()
				delete(a.timers, id)
				a.mu.Unlock()
			}
		})

		a.mu.Lock()
		a.timers[id] = w
		a.mu.Unlock()

		if err := a.loop.StartTimer(w); err != nil {
			panic(a.runtime.NewGoError(err))
		}
		return a.runtime.ToValue(id)
	}
}

func (a *Adapter) jsClear(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		return goja.Undefined()
	}
	id := call.Arguments[0].ToInteger()
	a.mu.Lock()
	w, ok := a.timers[id]
	delete(a.timers, id)
	a.mu.Unlock()
	if ok {
		a.loop.StopTimer(w)
	}
	return goja.Undefined()
}
