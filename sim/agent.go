package sim

import (
	"math"

	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/dna"
	"github.com/ralfKruemmelPython/micro-swarm/field"
	"github.com/ralfKruemmelPython/micro-swarm/rng"
)

const twoPi = 2 * math.Pi

// Agent is one swarm member. Respawn reuses the slot and resets all state.
type Agent struct {
	X, Y    float32
	Heading float32
	Energy  float32
	Species int
	Genome  dna.Genome

	LastEnergy   float32
	FitnessAccum float32
	FitnessTicks int
	FitnessValue float32
}

// StepFields bundles the mutable grids an agent reads and writes during
// its step. Agents observe the deposits of earlier agents in the same
// tick; the fields are shared, not snapshotted.
type StepFields struct {
	PheroFood   *field.Grid
	PheroDanger *field.Grid
	Molecules   *field.Grid
	Resources   *field.Grid
	Mycel       *field.Grid
}

// Step runs one sense/turn/move/harvest/deposit cycle for the agent.
// fitnessWindow 0 disables windowed fitness averaging.
func (a *Agent) Step(r *rng.Source, p config.Params, fitnessWindow int, profile config.SpeciesProfile, f StepFields) {
	a.LastEnergy = a.Energy
	sensor := p.AgentSenseRadius * a.Genome.SenseGain
	turn := p.AgentRandomTurn * profile.ExplorationMul

	angles := [3]float32{a.Heading - 0.6, a.Heading, a.Heading + 0.6}
	var weights [3]float32

	for i, angle := range angles {
		px := a.X + cosf(angle)*sensor
		py := a.Y + sinf(angle)*sensor
		pFood := f.PheroFood.Sample(px, py) * a.Genome.PheromoneGain * profile.FoodAttractionMul
		pDanger := f.PheroDanger.Sample(px, py) * a.Genome.PheromoneGain * profile.DangerAversionMul
		rVal := f.Resources.Sample(px, py) * profile.ResourceWeightMul
		mVal := f.Molecules.Sample(px, py) * profile.MoleculeWeightMul
		myVal := f.Mycel.Sample(px, py) * profile.MycelAttractionMul
		novelty := 1 - clamp01(pFood+pDanger+myVal)
		w := pFood + rVal + 0.25*mVal + myVal + profile.NoveltyWeight*novelty - pDanger
		if w < 0.001 {
			w = 0.001
		}
		weights[i] = w
	}

	total := weights[0] + weights[1] + weights[2]
	pick := r.Uniform(0, total)
	choice := 2
	for i, w := range weights {
		if pick <= w {
			choice = i
			break
		}
		pick -= w
	}

	a.Heading = wrapAngle(angles[choice] + r.Uniform(-turn, turn)*a.Genome.ExplorationBias)

	nx := a.X + cosf(a.Heading)
	ny := a.Y + sinf(a.Heading)

	bounced := false
	if nx >= 0 && ny >= 0 && nx < float32(f.PheroFood.W) && ny < float32(f.PheroFood.H) {
		a.X = nx
		a.Y = ny
	} else {
		a.Heading = wrapAngle(a.Heading + math.Pi)
		bounced = true
	}

	cx := int(a.X)
	cy := int(a.Y)
	if cx >= 0 && cy >= 0 && cx < f.Resources.W && cy < f.Resources.H {
		cell := f.Resources.At(cx, cy)
		harvested := cell
		if harvested > p.AgentHarvest {
			harvested = p.AgentHarvest
		}
		f.Resources.Set(cx, cy, cell-harvested)
		a.Energy += harvested

		deposit := p.PheroFoodDepositScale * harvested
		f.PheroFood.Add(cx, cy, deposit*profile.DepositFoodMul)
		f.Molecules.Add(cx, cy, harvested*0.5)
	}

	a.Energy -= p.AgentMoveCost
	if a.Energy < 0 {
		a.Energy = 0
	}

	delta := a.Energy - a.LastEnergy
	if delta > 0 {
		a.FitnessAccum += delta
	}
	a.FitnessTicks++
	if fitnessWindow > 0 && a.FitnessTicks >= fitnessWindow {
		a.FitnessValue = a.FitnessAccum / float32(a.FitnessTicks)
		a.FitnessAccum = 0
		a.FitnessTicks = 0
	}

	var dangerDeposit float32
	if bounced {
		dangerDeposit += p.DangerBounceDeposit
	}
	if delta < -p.DangerDeltaThreshold {
		dangerDeposit += (-delta) * p.PheroDangerDepositScale
	}
	if dangerDeposit > 0 {
		dx := int(a.X)
		dy := int(a.Y)
		if dx >= 0 && dy >= 0 && dx < f.PheroDanger.W && dy < f.PheroDanger.H {
			f.PheroDanger.Add(dx, dy, dangerDeposit*profile.DepositDangerMul)
		}
	}

	// Regulator role: trim over-dense food deposits back toward the
	// configured density ceiling.
	if profile.CounterDepositMul > 0 {
		dx := int(a.X)
		dy := int(a.Y)
		if dx >= 0 && dy >= 0 && dx < f.PheroFood.W && dy < f.PheroFood.H {
			localFood := f.PheroFood.At(dx, dy)
			density := localFood + f.Mycel.At(dx, dy)
			if density > profile.OverDensityThreshold {
				reduction := (density - profile.OverDensityThreshold) * profile.CounterDepositMul
				v := localFood - reduction
				if v < 0 {
					v = 0
				}
				f.PheroFood.Set(dx, dy, v)
			}
		}
	}
}

func wrapAngle(a float32) float32 {
	for a < 0 {
		a += twoPi
	}
	for a >= twoPi {
		a -= twoPi
	}
	return a
}

func cosf(a float32) float32 { return float32(math.Cos(float64(a))) }
func sinf(a float32) float32 { return float32(math.Sin(float64(a))) }
