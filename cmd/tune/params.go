package main

import (
	"github.com/ralfKruemmelPython/micro-swarm/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
// Grid size, agent count and capacities stay locked; the search covers
// the field dynamics and the agent economics.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "pheromone_evaporation", Min: 0.005, Max: 0.10, Default: 0.02},
			{Name: "pheromone_diffusion", Min: 0.05, Max: 0.30, Default: 0.15},
			{Name: "molecule_evaporation", Min: 0.10, Max: 0.60, Default: 0.35},
			{Name: "molecule_diffusion", Min: 0.05, Max: 0.40, Default: 0.25},
			{Name: "resource_regen", Min: 0.0005, Max: 0.01, Default: 0.0015},
			{Name: "mycel_growth", Min: 0.005, Max: 0.08, Default: 0.02},
			{Name: "mycel_decay", Min: 0.001, Max: 0.02, Default: 0.003},
			{Name: "mycel_transport", Min: 0.02, Max: 0.30, Default: 0.12},
			{Name: "agent_move_cost", Min: 0.002, Max: 0.05, Default: 0.01},
			{Name: "agent_harvest", Min: 0.01, Max: 0.12, Default: 0.04},
			{Name: "phero_food_deposit_scale", Min: 0.2, Max: 1.5, Default: 0.8},
			{Name: "phero_danger_deposit_scale", Min: 0.1, Max: 1.2, Default: 0.6},
			{Name: "dna_survival_bias", Min: 0.2, Max: 1.5, Default: 0.7},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToParams applies a parameter vector to simulation parameters.
// Order must match Specs order.
func (pv *ParamVector) ApplyToParams(p *config.Params, values []float64) {
	clamped := pv.Clamp(values)
	i := 0
	p.PheromoneEvaporation = float32(clamped[i])
	i++
	p.PheromoneDiffusion = float32(clamped[i])
	i++
	p.MoleculeEvaporation = float32(clamped[i])
	i++
	p.MoleculeDiffusion = float32(clamped[i])
	i++
	p.ResourceRegen = float32(clamped[i])
	i++
	p.MycelGrowth = float32(clamped[i])
	i++
	p.MycelDecay = float32(clamped[i])
	i++
	p.MycelTransport = float32(clamped[i])
	i++
	p.AgentMoveCost = float32(clamped[i])
	i++
	p.AgentHarvest = float32(clamped[i])
	i++
	p.PheroFoodDepositScale = float32(clamped[i])
	i++
	p.PheroDangerDepositScale = float32(clamped[i])
	i++
	p.DNASurvivalBias = float32(clamped[i])
}
