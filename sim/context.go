package sim

import (
	"log/slog"

	"github.com/ralfKruemmelPython/micro-swarm/compute"
	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/dna"
	"github.com/ralfKruemmelPython/micro-swarm/field"
	"github.com/ralfKruemmelPython/micro-swarm/rng"
)

// FieldKind selects one of the five grids owned by a simulation.
type FieldKind int

const (
	FieldResources FieldKind = iota
	FieldPheroFood
	FieldPheroDanger
	FieldMolecules
	FieldMycel
	NumFieldKinds
)

// RespawnThreshold is the energy at or below which an agent is recycled.
const RespawnThreshold = 0.05

// storeThresholdDefault applies when evolution is disabled.
const storeThresholdDefault = 1.2

// globalPoolEpsilon guards the full global pool against churn from
// near-equal fitness values.
const globalPoolEpsilon = 1e-6

// Simulation owns all state for one run: parameters, RNG, fields, agents,
// DNA pools and the optional compute offload. Ownership is exclusive;
// external access goes through copy-in/copy-out.
type Simulation struct {
	Params       config.Params
	Evo          config.EvoParams
	Profiles     [config.NumSpecies]config.SpeciesProfile
	SpeciesFracs [config.NumSpecies]float32
	Stress       config.StressConfig

	Seed      uint32
	StepIndex int
	Paused    bool

	Rng *rng.Source

	Env         *Environment
	PheroFood   *field.Grid
	PheroDanger *field.Grid
	Molecules   *field.Grid
	Mycel       *Mycel

	DNASpecies [config.NumSpecies]dna.Memory
	DNAGlobal  dna.Memory

	Agents []Agent

	Metrics []StepMetrics

	stressApplied bool
	stressRng     *rng.Source

	gpu           *compute.Runtime
	gpuActive     bool
	gpuNoCopyback bool
	gpuPlatform   int
	gpuDevice     int
}

// New creates a simulation with seeded fields and agents.
func New(params config.Params, evo config.EvoParams, seed uint32) *Simulation {
	s := &Simulation{
		Params:       params,
		Evo:          evo,
		Profiles:     config.DefaultProfiles(),
		SpeciesFracs: config.DefaultSpeciesFracs(),
		Seed:         seed,
		Rng:          rng.New(seed),
	}
	s.Stress.AtStep = 120
	s.InitFields()
	s.InitAgents()
	return s
}

// InitFields rebuilds all five grids at the configured size and reseeds
// the resource hotspots.
func (s *Simulation) InitFields() {
	w, h := s.Params.Width, s.Params.Height
	s.Env = NewEnvironment(w, h)
	s.Env.SeedResources(s.Rng)
	s.PheroFood = field.New(w, h, 0)
	s.PheroDanger = field.New(w, h, 0)
	s.Molecules = field.New(w, h, 0)
	s.Mycel = NewMycel(w, h)
	s.gpuActive = false
}

// InitAgents rebuilds the agent sequence from the configured count.
func (s *Simulation) InitAgents() {
	s.Agents = make([]Agent, 0, s.Params.AgentCount)
	for i := 0; i < s.Params.AgentCount; i++ {
		var a Agent
		a.X = float32(s.Rng.UniformInt(0, s.Params.Width-1))
		a.Y = float32(s.Rng.UniformInt(0, s.Params.Height-1))
		a.Heading = s.Rng.Uniform(0, twoPi)
		a.Energy = s.Rng.Uniform(0.2, 0.6)
		a.LastEnergy = a.Energy
		a.Species = s.pickSpecies()
		a.Genome = s.sampleGenome(a.Species)
		s.Agents = append(s.Agents, a)
	}
}

// Reset reseeds the RNG, clears the DNA pools and metrics, and rebuilds
// fields and agents.
func (s *Simulation) Reset(seed uint32) {
	s.Seed = seed
	s.Rng = rng.New(seed)
	s.StepIndex = 0
	s.stressApplied = false
	s.stressRng = nil
	for i := range s.DNASpecies {
		s.DNASpecies[i].Clear()
	}
	s.DNAGlobal.Clear()
	s.Metrics = s.Metrics[:0]
	s.InitFields()
	s.InitAgents()
}

// Clone returns an independent deep copy. The copy starts with the
// compute offload inactive; everything else, including RNG state, is
// carried over so the clone's future ticks match the original's.
func (s *Simulation) Clone() *Simulation {
	out := &Simulation{
		Params:        s.Params,
		Evo:           s.Evo,
		Profiles:      s.Profiles,
		SpeciesFracs:  s.SpeciesFracs,
		Stress:        s.Stress,
		Seed:          s.Seed,
		StepIndex:     s.StepIndex,
		Paused:        s.Paused,
		stressApplied: s.stressApplied,
		gpuPlatform:   s.gpuPlatform,
		gpuDevice:     s.gpuDevice,
	}
	rngCopy := *s.Rng
	out.Rng = &rngCopy
	if s.stressRng != nil {
		stressCopy := *s.stressRng
		out.stressRng = &stressCopy
	}
	out.Env = s.Env.Clone()
	out.PheroFood = s.PheroFood.Clone()
	out.PheroDanger = s.PheroDanger.Clone()
	out.Molecules = s.Molecules.Clone()
	out.Mycel = s.Mycel.Clone()
	for i := range s.DNASpecies {
		out.DNASpecies[i].Entries = append([]dna.Entry(nil), s.DNASpecies[i].Entries...)
	}
	out.DNAGlobal.Entries = append([]dna.Entry(nil), s.DNAGlobal.Entries...)
	out.Agents = append([]Agent(nil), s.Agents...)
	out.Metrics = append([]StepMetrics(nil), s.Metrics...)
	return out
}

// Field returns the grid for the given kind, or nil.
func (s *Simulation) Field(kind FieldKind) *field.Grid {
	switch kind {
	case FieldResources:
		return s.Env.Resources
	case FieldPheroFood:
		return s.PheroFood
	case FieldPheroDanger:
		return s.PheroDanger
	case FieldMolecules:
		return s.Molecules
	case FieldMycel:
		return s.Mycel.Density
	default:
		return nil
	}
}

func (s *Simulation) pickSpecies() int {
	r := s.Rng.Uniform01()
	var accum float32
	for i := 0; i < config.NumSpecies; i++ {
		accum += s.SpeciesFracs[i]
		if r <= accum {
			return i
		}
	}
	return config.NumSpecies - 1
}

func (s *Simulation) applyRoleMutation(g *dna.Genome, profile config.SpeciesProfile) {
	sigma := s.Evo.MutationSigma * profile.MutationSigmaMul
	delta := s.Evo.ExplorationDelta * profile.ExplorationDeltaMul
	if sigma > 0 {
		g.SenseGain *= s.Rng.Uniform(1-sigma, 1+sigma)
		g.PheromoneGain *= s.Rng.Uniform(1-sigma, 1+sigma)
	}
	if delta > 0 {
		g.ExplorationBias += s.Rng.Uniform(-delta, delta)
	}
	g.Clamp()
}

func (s *Simulation) sampleGenome(species int) dna.Genome {
	profile := s.Profiles[species]
	useDNA := s.Rng.Uniform01() < profile.DNABinding
	var g dna.Genome
	if useDNA {
		if s.Evo.Enabled && s.DNAGlobal.Len() > 0 && s.Rng.Uniform01() < s.Evo.GlobalSpawnFrac {
			g = s.DNAGlobal.Sample(s.Rng, s.Params.DNASurvivalBias, s.Evo)
		} else {
			g = s.DNASpecies[species].Sample(s.Rng, s.Params.DNASurvivalBias, s.Evo)
		}
	} else {
		g = dna.Random(s.Rng)
	}
	if s.Evo.Enabled {
		s.applyRoleMutation(&g, profile)
	}
	return g
}

// storeGenome moves a successful genome into the evolutionary memory and
// taxes the agent's energy.
func (s *Simulation) storeGenome(a *Agent) {
	if s.Evo.Enabled {
		if a.Energy > s.Evo.MinEnergyToStore {
			s.DNASpecies[a.Species].Add(a.Genome, a.FitnessValue, s.Params.DNACapacity)
			if s.Params.DNAGlobalCapacity > 0 {
				if s.DNAGlobal.Len() < s.Params.DNAGlobalCapacity ||
					a.FitnessValue > s.DNAGlobal.WorstFitness()+globalPoolEpsilon {
					s.DNAGlobal.Add(a.Genome, a.FitnessValue, s.Params.DNAGlobalCapacity)
				}
			}
			a.Energy *= 0.6
		}
	} else {
		if a.Energy > storeThresholdDefault {
			s.DNASpecies[a.Species].Add(a.Genome, a.Energy, s.Params.DNACapacity)
			a.Energy *= 0.6
		}
	}
}

// ApplyScheduledStress fires the one-time perturbation once the schedule
// is due. It is idempotent; Step calls it at the start of every tick, and
// drivers may call it earlier in the same tick to dump post-stress state.
func (s *Simulation) ApplyScheduledStress() {
	if !s.Stress.Enabled || s.stressApplied || s.StepIndex < s.Stress.AtStep {
		return
	}
	if s.Stress.BlockRectSet {
		s.Env.ApplyBlockRect(s.Stress.BlockX, s.Stress.BlockY, s.Stress.BlockW, s.Stress.BlockH)
	}
	if s.Stress.ShiftSet {
		s.Env.ShiftHotspots(s.Stress.ShiftDX, s.Stress.ShiftDY)
	}
	s.stressApplied = true
	slog.Info("stress applied", "step", s.StepIndex)
}

func (s *Simulation) stressSource() *rng.Source {
	if s.stressRng == nil {
		seed := s.Seed
		if s.Stress.SeedSet {
			seed = s.Stress.Seed
		}
		s.stressRng = rng.New(seed)
	}
	return s.stressRng
}

func (s *Simulation) diffuseFields() {
	pher := field.DiffuseParams{
		Evaporation: s.Params.PheromoneEvaporation,
		Diffusion:   s.Params.PheromoneDiffusion,
	}
	mol := field.DiffuseParams{
		Evaporation: s.Params.MoleculeEvaporation,
		Diffusion:   s.Params.MoleculeDiffusion,
	}

	if s.gpuActive && !s.gpuNoCopyback {
		if err := s.gpu.UploadFields(s.PheroFood, s.PheroDanger, s.Molecules); err != nil {
			s.gpuActive = false
		}
	}
	if s.gpuActive {
		doCopyback := !s.gpuNoCopyback
		if err := s.gpu.StepDiffuse(pher, mol, doCopyback, s.PheroFood, s.PheroDanger, s.Molecules); err != nil {
			// The host buffers still hold the pre-diffusion state, so the
			// pass reruns on the CPU with identical inputs.
			s.gpuActive = false
			field.DiffuseEvaporate(s.PheroFood, pher)
			field.DiffuseEvaporate(s.PheroDanger, pher)
			field.DiffuseEvaporate(s.Molecules, mol)
		}
		return
	}
	field.DiffuseEvaporate(s.PheroFood, pher)
	field.DiffuseEvaporate(s.PheroDanger, pher)
	field.DiffuseEvaporate(s.Molecules, mol)
}

func (s *Simulation) respawn(a *Agent) {
	a.X = float32(s.Rng.UniformInt(0, s.Params.Width-1))
	a.Y = float32(s.Rng.UniformInt(0, s.Params.Height-1))
	a.Heading = s.Rng.Uniform(0, twoPi)
	a.Energy = s.Rng.Uniform(0.2, 0.5)
	a.LastEnergy = a.Energy
	a.FitnessAccum = 0
	a.FitnessTicks = 0
	a.FitnessValue = 0
	a.Species = s.pickSpecies()
	a.Genome = s.sampleGenome(a.Species)
}

// Step executes one tick. A paused simulation does nothing.
func (s *Simulation) Step() {
	if s.Paused {
		return
	}

	s.ApplyScheduledStress()

	fitnessWindow := 0
	if s.Evo.Enabled {
		fitnessWindow = s.Evo.FitnessWindow
	}
	fields := StepFields{
		PheroFood:   s.PheroFood,
		PheroDanger: s.PheroDanger,
		Molecules:   s.Molecules,
		Resources:   s.Env.Resources,
		Mycel:       s.Mycel.Density,
	}
	for i := range s.Agents {
		a := &s.Agents[i]
		a.Step(s.Rng, s.Params, fitnessWindow, s.Profiles[a.Species], fields)
		s.storeGenome(a)
	}

	s.diffuseFields()

	if s.Stress.Enabled && s.stressApplied && s.Stress.PheromoneNoise > 0 {
		noise := s.Stress.PheromoneNoise
		sr := s.stressSource()
		for i := range s.PheroFood.Data {
			s.PheroFood.Data[i] += sr.Uniform(0, noise)
		}
		for i := range s.PheroDanger.Data {
			s.PheroDanger.Data[i] += sr.Uniform(0, noise)
		}
	}

	s.Mycel.Update(s.Params, s.PheroFood, s.Env.Resources)
	s.Env.Regenerate(s.Params)
	for i := range s.DNASpecies {
		s.DNASpecies[i].Decay(s.Evo)
	}
	s.DNAGlobal.Decay(s.Evo)

	for i := range s.Agents {
		if s.Agents[i].Energy <= RespawnThreshold {
			s.respawn(&s.Agents[i])
		}
	}

	s.Metrics = append(s.Metrics, s.collectStepMetrics())
	s.StepIndex++
}

// StepN runs up to n ticks and returns how many executed.
func (s *Simulation) StepN(n int) int {
	if n <= 0 || s.Paused {
		return 0
	}
	for i := 0; i < n; i++ {
		s.Step()
	}
	return n
}

// EnableGPU activates or deactivates the compute offload. Activation
// walks init, kernel build, buffer allocation and the numeric self-test;
// any failure leaves the offload inactive.
func (s *Simulation) EnableGPU(enable bool) {
	if !enable {
		s.gpuActive = false
		return
	}
	rt := compute.NewRuntime()
	if err := rt.Init(s.gpuPlatform, s.gpuDevice); err != nil {
		s.gpuActive = false
		return
	}
	if err := rt.BuildKernels(); err != nil {
		s.gpuActive = false
		return
	}
	if err := rt.SelfTest(); err != nil {
		s.gpuActive = false
		return
	}
	if err := rt.InitFields(s.PheroFood, s.PheroDanger, s.Molecules); err != nil {
		s.gpuActive = false
		return
	}
	s.gpu = rt
	s.gpuActive = true
}

// SelectGPUDevice records the platform/device pair used by the next
// EnableGPU call.
func (s *Simulation) SelectGPUDevice(platform, device int) {
	s.gpuPlatform = platform
	s.gpuDevice = device
}

// SetNoCopyback switches the device buffers to be the source of truth
// between dumps. Silently refused while agents exist, because agents
// read and write host fields every tick.
func (s *Simulation) SetNoCopyback(enable bool) {
	if enable && s.Params.AgentCount > 0 {
		s.gpuNoCopyback = false
		return
	}
	s.gpuNoCopyback = enable
}

// GPUActive reports whether diffusion currently runs on the device.
func (s *Simulation) GPUActive() bool {
	return s.gpuActive
}

// EnsureHostFields forces a copyback when the device holds the current
// field state. Reports whether host fields are valid.
func (s *Simulation) EnsureHostFields() bool {
	if s.gpuActive && s.gpuNoCopyback {
		if err := s.gpu.Copyback(s.PheroFood, s.PheroDanger, s.Molecules); err != nil {
			s.gpuActive = false
			return false
		}
	}
	return true
}

// UploadFieldsIfActive pushes host fields to the device after external
// mutation (field copy-in, clear, CSV load).
func (s *Simulation) UploadFieldsIfActive() {
	if !s.gpuActive {
		return
	}
	if err := s.gpu.UploadFields(s.PheroFood, s.PheroDanger, s.Molecules); err != nil {
		s.gpuActive = false
	}
}
