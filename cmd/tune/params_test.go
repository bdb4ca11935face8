package main

import (
	"math"
	"testing"

	"github.com/ralfKruemmelPython/micro-swarm/config"
)

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-12 {
			t.Errorf("param %s: %v != %v", pv.Specs[i].Name, back[i], raw[i])
		}
	}
}

func TestClampBounds(t *testing.T) {
	pv := NewParamVector()
	low := make([]float64, pv.Dim())
	high := make([]float64, pv.Dim())
	for i := range low {
		low[i] = -1e9
		high[i] = 1e9
	}
	for i, v := range pv.Clamp(low) {
		if v != pv.Specs[i].Min {
			t.Errorf("param %s low clamp = %v, want %v", pv.Specs[i].Name, v, pv.Specs[i].Min)
		}
	}
	for i, v := range pv.Clamp(high) {
		if v != pv.Specs[i].Max {
			t.Errorf("param %s high clamp = %v, want %v", pv.Specs[i].Name, v, pv.Specs[i].Max)
		}
	}
}

func TestApplyToParamsMatchesSpecOrder(t *testing.T) {
	pv := NewParamVector()
	p := config.DefaultParams()
	values := pv.DefaultVector()
	values[0] = 0.09 // pheromone_evaporation
	values[9] = 0.11 // agent_harvest
	pv.ApplyToParams(&p, values)
	if math.Abs(float64(p.PheromoneEvaporation)-0.09) > 1e-6 {
		t.Errorf("pheromone evaporation = %v", p.PheromoneEvaporation)
	}
	if math.Abs(float64(p.AgentHarvest)-0.11) > 1e-6 {
		t.Errorf("agent harvest = %v", p.AgentHarvest)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	if testing.Short() {
		t.Skip("simulation-backed evaluation")
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Params.Width = 16
	cfg.Params.Height = 16
	cfg.Params.AgentCount = 16

	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, 50, []uint32{42, 1042}, cfg)
	a := fe.Evaluate(pv.DefaultVector())
	b := fe.Evaluate(pv.DefaultVector())
	if a != b {
		t.Errorf("evaluations differ: %v vs %v", a, b)
	}
}
