// Package field provides the dense 2D scalar grids the simulation is
// built on, plus the reference diffuse-and-evaporate pass.
package field

// Grid is a dense row-major float32 buffer. Index (x, y) maps to y*W + x.
// Grids are never resized during a run.
type Grid struct {
	W, H int
	Data []float32
}

// New creates a Grid of the given size filled with value.
func New(w, h int, value float32) *Grid {
	g := &Grid{W: w, H: h, Data: make([]float32, w*h)}
	if value != 0 {
		g.Fill(value)
	}
	return g
}

// At returns the value at (x, y). Bounds are the caller's responsibility.
func (g *Grid) At(x, y int) float32 {
	return g.Data[y*g.W+x]
}

// Set stores value at (x, y).
func (g *Grid) Set(x, y int, value float32) {
	g.Data[y*g.W+x] = value
}

// Add accumulates value at (x, y).
func (g *Grid) Add(x, y int, value float32) {
	g.Data[y*g.W+x] += value
}

// Fill sets every cell to value.
func (g *Grid) Fill(value float32) {
	for i := range g.Data {
		g.Data[i] = value
	}
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{W: g.W, H: g.H, Data: make([]float32, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// Sample reads the cell containing the point (fx, fy), returning 0 for
// out-of-bounds probes.
func (g *Grid) Sample(fx, fy float32) float32 {
	x := int(fx)
	y := int(fy)
	if fx < 0 || fy < 0 || x >= g.W || y >= g.H {
		return 0
	}
	return g.Data[y*g.W+x]
}

// DiffuseParams parameterizes one diffuse-and-evaporate pass.
type DiffuseParams struct {
	Evaporation float32
	Diffusion   float32
}

// DiffuseEvaporate applies one 5-point diffusion pass followed by
// evaporation, in a scratch buffer swapped into place. Border cells with
// fewer than four in-bound neighbors keep their center value before
// evaporation. Results are clamped to be non-negative.
func DiffuseEvaporate(g *Grid, p DiffuseParams) {
	next := make([]float32, len(g.Data))
	diff := p.Diffusion
	evap := p.Evaporation

	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			center := g.At(x, y)
			value := center
			if x > 0 && x < g.W-1 && y > 0 && y < g.H-1 {
				value = center * (1 - diff)
				value += g.At(x-1, y) * (diff * 0.25)
				value += g.At(x+1, y) * (diff * 0.25)
				value += g.At(x, y-1) * (diff * 0.25)
				value += g.At(x, y+1) * (diff * 0.25)
			}
			value *= 1 - evap
			if value < 0 {
				value = 0
			}
			next[y*g.W+x] = value
		}
	}

	g.Data = next
}
