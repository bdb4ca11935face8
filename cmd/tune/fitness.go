package main

import (
	"sync"

	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/sim"
)

// FitnessEvaluator runs batch simulations and scores parameter vectors.
// Lower fitness is better.
type FitnessEvaluator struct {
	params   *ParamVector
	ticks    int
	seeds    []uint32
	baseCfg  *config.Config
	tailSpan int // metrics entries averaged at the end of a run
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, ticks int, seeds []uint32, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:   params,
		ticks:    ticks,
		seeds:    seeds,
		baseCfg:  baseCfg,
		tailSpan: 50,
	}
}

// seedResult holds the score from one seed run.
type seedResult struct {
	energy float64
	mycel  float64
}

// Evaluate scores a parameter vector as the negated average of tail-window
// swarm energy plus a mycel coverage bonus, averaged over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s uint32) {
			defer wg.Done()
			results[idx] = fe.runOne(x, s)
		}(i, seed)
	}
	wg.Wait()

	var energy, mycel float64
	for _, r := range results {
		energy += r.energy
		mycel += r.mycel
	}
	n := float64(len(results))
	energy /= n
	mycel /= n

	return -(energy + 0.25*mycel)
}

func (fe *FitnessEvaluator) runOne(x []float64, seed uint32) seedResult {
	params := fe.baseCfg.Params
	fe.params.ApplyToParams(&params, x)
	evo := fe.baseCfg.Evolution

	s := sim.New(params, evo, seed)
	s.SpeciesFracs = fe.baseCfg.Species.Fracs
	s.Profiles = fe.baseCfg.ProfileArray()
	s.StepN(fe.ticks)

	tail := fe.tailSpan
	if tail > len(s.Metrics) {
		tail = len(s.Metrics)
	}
	if tail == 0 {
		return seedResult{}
	}
	var energy, mycel float64
	for _, m := range s.Metrics[len(s.Metrics)-tail:] {
		energy += float64(m.AvgEnergy)
		mycel += float64(m.MycelAvg)
	}
	return seedResult{
		energy: energy / float64(tail),
		mycel:  mycel / float64(tail),
	}
}
