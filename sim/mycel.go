package sim

import (
	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/field"
)

// Mycel is the reaction-transport support field coupling food pheromone
// and resources. Density stays in [0, 1] after every update.
type Mycel struct {
	Density *field.Grid
	W, H    int
}

// NewMycel creates an empty mycelial field.
func NewMycel(w, h int) *Mycel {
	return &Mycel{Density: field.New(w, h, 0), W: w, H: h}
}

// Update advances the density one tick from the local drive (thresholded
// mix of food pheromone and resources) plus neighbor transport and decay.
// Border cells average only their in-bound neighbors.
func (m *Mycel) Update(p config.Params, pheromone, resources *field.Grid) {
	next := make([]float32, len(m.Density.Data))

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			current := m.Density.At(x, y)

			drive := clamp01(p.MycelDriveP*pheromone.At(x, y) + p.MycelDriveR*resources.At(x, y))
			if drive > p.MycelDriveThreshold {
				drive = (drive - p.MycelDriveThreshold) / (1 - p.MycelDriveThreshold)
			} else {
				drive = 0
			}

			var neighborSum float32
			neighborCount := 0
			if x > 0 {
				neighborSum += m.Density.At(x-1, y)
				neighborCount++
			}
			if x < m.W-1 {
				neighborSum += m.Density.At(x+1, y)
				neighborCount++
			}
			if y > 0 {
				neighborSum += m.Density.At(x, y-1)
				neighborCount++
			}
			if y < m.H-1 {
				neighborSum += m.Density.At(x, y+1)
				neighborCount++
			}
			neighborAvg := current
			if neighborCount > 0 {
				neighborAvg = neighborSum / float32(neighborCount)
			}

			value := current +
				p.MycelGrowth*drive*(1-current) +
				p.MycelTransport*(neighborAvg-current) -
				p.MycelDecay*current
			next[y*m.W+x] = clamp01(value)
		}
	}

	m.Density.Data = next
}

// Clone returns a deep copy.
func (m *Mycel) Clone() *Mycel {
	return &Mycel{Density: m.Density.Clone(), W: m.W, H: m.H}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
