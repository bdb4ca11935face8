// Package sim implements the tick-stepped swarm simulation: the resource
// environment, the mycelial field, the per-agent behavior loop and the
// context that owns them.
package sim

import (
	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/field"
	"github.com/ralfKruemmelPython/micro-swarm/rng"
)

// Environment holds the resource field and the blocked-cell mask. Blocked
// cells never regenerate.
type Environment struct {
	Resources *field.Grid
	Blocked   []uint8
	W, H      int
}

// NewEnvironment creates an empty environment of the given size.
func NewEnvironment(w, h int) *Environment {
	return &Environment{
		Resources: field.New(w, h, 0),
		Blocked:   make([]uint8, w*h),
		W:         w,
		H:         h,
	}
}

// SeedResources scatters sparse hotspots: roughly 2% of cells receive a
// value in [0.5, 1.0).
func (e *Environment) SeedResources(r *rng.Source) {
	for y := 0; y < e.H; y++ {
		for x := 0; x < e.W; x++ {
			v := r.Uniform(0, 1)
			if v > 0.98 {
				e.Resources.Set(x, y, r.Uniform(0.5, 1.0))
			} else {
				e.Resources.Set(x, y, 0)
			}
		}
	}
}

// Regenerate adds the regeneration rate to every non-blocked cell and
// clamps to the resource ceiling.
func (e *Environment) Regenerate(p config.Params) {
	for y := 0; y < e.H; y++ {
		for x := 0; x < e.W; x++ {
			if e.Blocked[y*e.W+x] != 0 {
				continue
			}
			v := e.Resources.At(x, y) + p.ResourceRegen
			if v > p.ResourceMax {
				v = p.ResourceMax
			}
			e.Resources.Set(x, y, v)
		}
	}
}

// ApplyBlockRect zeroes resources and marks cells blocked over the
// rectangle clipped to grid bounds.
func (e *Environment) ApplyBlockRect(x, y, w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	x0 := max(0, x)
	y0 := max(0, y)
	x1 := min(e.W, x+w)
	y1 := min(e.H, y+h)
	for yy := y0; yy < y1; yy++ {
		for xx := x0; xx < x1; xx++ {
			e.Resources.Set(xx, yy, 0)
			e.Blocked[yy*e.W+xx] = 1
		}
	}
}

// ShiftHotspots rotates the resource buffer toroidally by (dx, dy). The
// blocked mask is not rotated.
func (e *Environment) ShiftHotspots(dx, dy int) {
	if e.W <= 0 || e.H <= 0 {
		return
	}
	next := make([]float32, len(e.Resources.Data))
	sx := ((dx % e.W) + e.W) % e.W
	sy := ((dy % e.H) + e.H) % e.H
	for y := 0; y < e.H; y++ {
		for x := 0; x < e.W; x++ {
			nx := (x + sx) % e.W
			ny := (y + sy) % e.H
			next[ny*e.W+nx] = e.Resources.At(x, y)
		}
	}
	e.Resources.Data = next
}

// Clone returns a deep copy of the environment.
func (e *Environment) Clone() *Environment {
	out := &Environment{
		Resources: e.Resources.Clone(),
		Blocked:   make([]uint8, len(e.Blocked)),
		W:         e.W,
		H:         e.H,
	}
	copy(out.Blocked, e.Blocked)
	return out
}
