package dna

import (
	"testing"

	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/rng"
)

func TestAddSortsDescendingAndTruncates(t *testing.T) {
	m := &Memory{}
	// Insert fitnesses 1..10 in a scrambled order with capacity 4.
	for _, f := range []float32{3, 7, 1, 10, 4, 8, 2, 9, 5, 6} {
		m.Add(Genome{SenseGain: 1, PheromoneGain: 1, ExplorationBias: 0.5}, f, 4)
	}
	want := []float32{10, 9, 8, 7}
	if m.Len() != len(want) {
		t.Fatalf("pool size = %d, want %d", m.Len(), len(want))
	}
	for i, w := range want {
		if m.Entries[i].Fitness != w {
			t.Errorf("entry %d fitness = %v, want %v", i, m.Entries[i].Fitness, w)
		}
	}
}

func TestDecayPreservesOrder(t *testing.T) {
	m := &Memory{}
	for _, f := range []float32{5, 3, 1} {
		m.Add(Genome{}, f, 10)
	}
	evo := config.DefaultEvoParams()
	evo.Enabled = true
	evo.AgeDecay = 0.9
	m.Decay(evo)

	for i := range m.Entries {
		if m.Entries[i].Age != 1 {
			t.Errorf("entry %d age = %d, want 1", i, m.Entries[i].Age)
		}
	}
	wants := []float32{4.5, 2.7, 0.9}
	for i, w := range wants {
		got := m.Entries[i].Fitness
		if got < w-1e-5 || got > w+1e-5 {
			t.Errorf("entry %d fitness = %v, want %v", i, got, w)
		}
	}
}

func TestDecayDisabledUsesDefaultFactor(t *testing.T) {
	m := &Memory{}
	m.Add(Genome{}, 1, 10)
	m.Decay(config.EvoParams{Enabled: false, AgeDecay: 0.5})
	got := m.Entries[0].Fitness
	if got < 0.995-1e-6 || got > 0.995+1e-6 {
		t.Errorf("fitness = %v, want 0.995", got)
	}
}

func TestSampleEmptyPoolReturnsFreshGenome(t *testing.T) {
	m := &Memory{}
	r := rng.New(11)
	g := m.Sample(r, 0.7, config.DefaultEvoParams())
	if g.SenseGain < 0.6 || g.SenseGain >= 1.4 {
		t.Errorf("fresh sense gain %v outside spawn range", g.SenseGain)
	}
	if g.PheromoneGain < 0.6 || g.PheromoneGain >= 1.4 {
		t.Errorf("fresh pheromone gain %v outside spawn range", g.PheromoneGain)
	}
	if g.ExplorationBias < 0.2 || g.ExplorationBias >= 0.8 {
		t.Errorf("fresh exploration bias %v outside spawn range", g.ExplorationBias)
	}
}

func TestSampleStaysWithinClampRanges(t *testing.T) {
	m := &Memory{}
	m.Add(Genome{SenseGain: 2.9, PheromoneGain: 0.21, ExplorationBias: 0.99}, 5, 10)
	evo := config.DefaultEvoParams()
	evo.Enabled = true
	evo.MutationSigma = 0.5
	evo.ExplorationDelta = 0.5
	r := rng.New(3)
	for i := 0; i < 500; i++ {
		g := m.Sample(r, 0.7, evo)
		if g.SenseGain < SenseGainMin || g.SenseGain > SenseGainMax {
			t.Fatalf("sense gain %v escaped clamp range", g.SenseGain)
		}
		if g.PheromoneGain < PheromoneGainMin || g.PheromoneGain > PheromoneGainMax {
			t.Fatalf("pheromone gain %v escaped clamp range", g.PheromoneGain)
		}
		if g.ExplorationBias < ExplorationBiasMin || g.ExplorationBias > ExplorationBiasMax {
			t.Fatalf("exploration bias %v escaped clamp range", g.ExplorationBias)
		}
	}
}

func TestSampleDeterministic(t *testing.T) {
	build := func() (*Memory, *rng.Source) {
		m := &Memory{}
		m.Add(Genome{SenseGain: 1.0, PheromoneGain: 1.0, ExplorationBias: 0.5}, 2, 10)
		m.Add(Genome{SenseGain: 1.2, PheromoneGain: 0.8, ExplorationBias: 0.3}, 1, 10)
		return m, rng.New(99)
	}
	evo := config.DefaultEvoParams()
	evo.Enabled = true

	m1, r1 := build()
	m2, r2 := build()
	for i := 0; i < 100; i++ {
		if m1.Sample(r1, 0.7, evo) != m2.Sample(r2, 0.7, evo) {
			t.Fatalf("samples diverged at draw %d", i)
		}
	}
}

func TestTruncateShrinks(t *testing.T) {
	m := &Memory{}
	for i := 0; i < 8; i++ {
		m.Add(Genome{}, float32(i), 16)
	}
	m.Truncate(3)
	if m.Len() != 3 {
		t.Fatalf("pool size = %d, want 3", m.Len())
	}
	// The survivors are the three best.
	if m.Entries[0].Fitness != 7 || m.Entries[2].Fitness != 5 {
		t.Errorf("unexpected survivors: %+v", m.Entries)
	}
}

func TestGenomeClamp(t *testing.T) {
	g := Genome{SenseGain: 99, PheromoneGain: -1, ExplorationBias: 1.5}
	g.Clamp()
	if g.SenseGain != SenseGainMax || g.PheromoneGain != PheromoneGainMin || g.ExplorationBias != ExplorationBiasMax {
		t.Errorf("clamp produced %+v", g)
	}
}
