// Package dna implements the evolutionary memory: bounded, fitness-sorted
// genome pools with age decay, and the biased resampling used at spawn.
package dna

import (
	"sort"

	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/rng"
)

// Genome clamp ranges.
const (
	SenseGainMin       = 0.2
	SenseGainMax       = 3.0
	PheromoneGainMin   = 0.2
	PheromoneGainMax   = 3.0
	ExplorationBiasMin = 0.0
	ExplorationBiasMax = 1.0
)

// Genome is the heritable behavior triple carried by every agent.
type Genome struct {
	SenseGain       float32 `csv:"sense_gain"`
	PheromoneGain   float32 `csv:"pheromone_gain"`
	ExplorationBias float32 `csv:"exploration_bias"`
}

// Clamp forces all three components into their valid ranges.
func (g *Genome) Clamp() {
	g.SenseGain = clamp(g.SenseGain, SenseGainMin, SenseGainMax)
	g.PheromoneGain = clamp(g.PheromoneGain, PheromoneGainMin, PheromoneGainMax)
	g.ExplorationBias = clamp(g.ExplorationBias, ExplorationBiasMin, ExplorationBiasMax)
}

// Random returns a fresh genome drawn from the spawn distribution.
func Random(r *rng.Source) Genome {
	return Genome{
		SenseGain:       r.Uniform(0.6, 1.4),
		PheromoneGain:   r.Uniform(0.6, 1.4),
		ExplorationBias: r.Uniform(0.2, 0.8),
	}
}

// Entry pairs a genome with its recorded fitness and age.
type Entry struct {
	Genome  Genome
	Fitness float32
	Age     int
}

// Memory is an ordered sequence of entries sorted descending by fitness.
// Capacity discipline is applied on every insertion; decay preserves the
// relative order because all entries scale by the same factor.
type Memory struct {
	Entries []Entry
}

// Add appends an entry, restores the descending fitness order and
// truncates to capacity. The worst entry is evicted when full.
func (m *Memory) Add(g Genome, fitness float32, capacity int) {
	m.Entries = append(m.Entries, Entry{Genome: g, Fitness: fitness})
	sort.SliceStable(m.Entries, func(i, j int) bool {
		return m.Entries[i].Fitness > m.Entries[j].Fitness
	})
	if capacity >= 0 && len(m.Entries) > capacity {
		m.Entries = m.Entries[:capacity]
	}
}

// Truncate shrinks the pool to at most capacity entries.
func (m *Memory) Truncate(capacity int) {
	if capacity >= 0 && len(m.Entries) > capacity {
		m.Entries = m.Entries[:capacity]
	}
}

// Clear drops all entries.
func (m *Memory) Clear() {
	m.Entries = m.Entries[:0]
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	return len(m.Entries)
}

// WorstFitness returns the fitness of the last (lowest) entry. Only
// meaningful on a non-empty pool.
func (m *Memory) WorstFitness() float32 {
	if len(m.Entries) == 0 {
		return 0
	}
	return m.Entries[len(m.Entries)-1].Fitness
}

// Decay ages every entry and scales its fitness by the configured decay
// factor (0.995 when evolution is disabled). Re-sorting is unnecessary.
func (m *Memory) Decay(evo config.EvoParams) {
	factor := float32(0.995)
	if evo.Enabled {
		factor = evo.AgeDecay
	}
	for i := range m.Entries {
		m.Entries[i].Age++
		m.Entries[i].Fitness *= factor
	}
}

// Sample draws a genome from the pool with elite bias and applies a
// bounded mutation. An empty pool yields a fresh random genome.
// survivalBias weights fitness in the pick; the mutation strengths come
// from evo when evolution is enabled and fall back to fixed values
// otherwise.
func (m *Memory) Sample(r *rng.Source, survivalBias float32, evo config.EvoParams) Genome {
	if len(m.Entries) == 0 {
		return Random(r)
	}

	pool := m.Entries
	if evo.Enabled {
		elite := int(float32(len(m.Entries)) * evo.EliteFrac)
		if elite < 1 {
			elite = 1
		}
		if r.Uniform01() < evo.EliteFrac {
			pool = m.Entries[:elite]
		}
	}

	var total float32
	for _, e := range pool {
		total += e.Fitness*survivalBias + 0.01
	}

	g := pool[0].Genome
	pick := r.Uniform(0, total)
	for _, e := range pool {
		w := e.Fitness*survivalBias + 0.01
		if pick <= w {
			g = e.Genome
			break
		}
		pick -= w
	}

	sigma := float32(0.1)
	delta := float32(0.05)
	if evo.Enabled {
		sigma = evo.MutationSigma
		delta = evo.ExplorationDelta
	}
	g.SenseGain *= r.Uniform(1-sigma, 1+sigma)
	g.PheromoneGain *= r.Uniform(1-sigma, 1+sigma)
	g.ExplorationBias += r.Uniform(-delta, delta)
	g.Clamp()
	return g
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
