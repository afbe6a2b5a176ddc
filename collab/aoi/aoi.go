// Package aoi is a demo external collaborator: a grid-based area-of-
// interest tracker for entities positioned on a 2D plane, refreshed on
// a periodic timer registered with a reactor.Loop. It exists to show a
// typical game-server collaborator wired purely through the loop's
// public surface (Loop.StartTimer/StopTimer), with its own tick rate
// debounced through collab/ratelimit rather than firing unconditionally
// on every timer callback.
//
// Grid neighbor lookup covers all four directions (north/south/east/
// west) around an entity's cell: west and both vertical neighbor rows
// are computed the same way as east, none left as a stub.
package aoi

import (
	"math"
	"time"

	"github.com/li5414/MServer/collab/ratelimit"

	reactor "github.com/li5414/MServer"
)

// EntityID identifies a tracked entity.
type EntityID uint64

// Position is an entity's location on the AOI plane.
type Position struct {
	X, Z float64
}

// Grid partitions the plane into CellSize-sided square cells and tracks
// which entities occupy each cell.
type Grid struct {
	CellSize float64

	cellOf map[EntityID]cellCoord
	cells  map[cellCoord]map[EntityID]struct{}
	pos    map[EntityID]Position
}

type cellCoord struct{ cx, cz int64 }

// NewGrid constructs an empty Grid with the given cell size.
func NewGrid(cellSize float64) *Grid {
	return &Grid{
		CellSize: cellSize,
		cellOf:   make(map[EntityID]cellCoord),
		cells:    make(map[cellCoord]map[EntityID]struct{}),
		pos:      make(map[EntityID]Position),
	}
}

func (g *Grid) cellFor(p Position) cellCoord {
	return cellCoord{
		cx: int64(math.Floor(p.X / g.CellSize)),
		cz: int64(math.Floor(p.Z / g.CellSize)),
	}
}

// Upsert sets (or moves) an entity's position, relocating it between
// grid cells as needed.
func (g *Grid) Upsert(id EntityID, p Position) {
	newCell := g.cellFor(p)
	if old, ok := g.cellOf[id]; ok {
		if old == newCell {
			g.pos[id] = p
			return
		}
		delete(g.cells[old], id)
		if len(g.cells[old]) == 0 {
			delete(g.cells, old)
		}
	}
	g.cellOf[id] = newCell
	g.pos[id] = p
	if g.cells[newCell] == nil {
		g.cells[newCell] = make(map[EntityID]struct{})
	}
	g.cells[newCell][id] = struct{}{}
}

// Remove drops an entity from the grid entirely.
func (g *Grid) Remove(id EntityID) {
	cell, ok := g.cellOf[id]
	if !ok {
		return
	}
	delete(g.cells[cell], id)
	if len(g.cells[cell]) == 0 {
		delete(g.cells, cell)
	}
	delete(g.cellOf, id)
	delete(g.pos, id)
}

// Neighbors returns every other entity sharing id's cell or one of the
// four cardinally adjacent cells (north, south, east, west). All four
// directions are always considered; there is no partial/omitted branch.
func (g *Grid) Neighbors(id EntityID) []EntityID {
	center, ok := g.cellOf[id]
	if !ok {
		return nil
	}
	var out []EntityID
	offsets := [...]cellCoord{
		{0, 0},
		{1, 0},  // east
		{-1, 0}, // west
		{0, 1},  // north
		{0, -1}, // south
	}
	for _, off := range offsets {
		c := cellCoord{cx: center.cx + off.cx, cz: center.cz + off.cz}
		for other := range g.cells[c] {
			if other != id {
				out = append(out, other)
			}
		}
	}
	return out
}

// Tracker periodically recomputes AOI sets for every tracked entity and
// invokes onChange with the neighbor list, gated by a ratelimit.Guard:
// every refresh counts against the guard's "aoi" category, and a refresh
// over that category's configured rates is skipped. Loop overload
// notifications (the guard's "loop" category) do not affect this gate.
type Tracker struct {
	grid    *Grid
	guard   *ratelimit.Guard
	onChange func(EntityID, []EntityID)
	timer   *reactor.TimerWatcher
}

// NewTracker builds a Tracker over grid, refreshing every period and
// reporting neighbor sets through onChange. guard may be nil, in which
// case every tick runs unconditionally.
func NewTracker(grid *Grid, guard *ratelimit.Guard, period time.Duration, onChange func(EntityID, []EntityID)) *Tracker {
	t := &Tracker{grid: grid, guard: guard, onChange: onChange}
	periodMS := period.Milliseconds()
	t.timer = reactor.NewTimerWatcher(periodMS, periodMS, func(reactor.Events) {
		t.refresh()
	})
	return t
}

// Start registers the tracker's refresh timer with loop.
func (t *Tracker) Start(loop *reactor.Loop) error {
	return loop.StartTimer(t.timer)
}

// Stop unregisters the tracker's refresh timer.
func (t *Tracker) Stop(loop *reactor.Loop) {
	loop.StopTimer(t.timer)
}

func (t *Tracker) refresh() {
	if t.guard != nil && !t.guard.Allow("aoi") {
		return
	}
	for id := range t.grid.cellOf {
		if t.onChange != nil {
			t.onChange(id, t.grid.Neighbors(id))
		}
	}
}
