package swarmapi

import (
	"fmt"
	"os"

	"github.com/ralfKruemmelPython/micro-swarm/compute"
	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/dna"
	"github.com/ralfKruemmelPython/micro-swarm/sim"
	"github.com/ralfKruemmelPython/micro-swarm/simio"
)

// Config seeds a new context.
type Config struct {
	Params config.Params
	Evo    config.EvoParams
	Seed   uint32
}

// AgentState is the copy-in/copy-out projection of one agent.
type AgentState struct {
	X, Y    float32
	Heading float32
	Energy  float32
	Species int

	SenseGain       float32
	PheromoneGain   float32
	ExplorationBias float32
}

// Create builds a context. A nil config yields the built-in defaults with
// seed 42.
func Create(cfg *Config) Handle {
	params := config.DefaultParams()
	evo := config.DefaultEvoParams()
	seed := uint32(42)
	if cfg != nil {
		params = cfg.Params
		evo = cfg.Evo
		seed = cfg.Seed
	}
	if params.Width <= 0 || params.Height <= 0 || params.AgentCount < 0 {
		return NullHandle
	}
	return register(sim.New(params, evo, seed))
}

// Destroy releases a context. Null handles are ignored.
func Destroy(h Handle) {
	unregister(h)
}

// Clone duplicates a context; the copy starts with the compute offload
// inactive.
func Clone(h Handle) Handle {
	s := resolve(h)
	if s == nil {
		return NullHandle
	}
	return register(s.Clone())
}

// Reset reseeds a context and rebuilds its fields, agents and pools.
func Reset(h Handle, seed uint32) {
	if s := resolve(h); s != nil {
		s.Reset(seed)
	}
}

// Step runs up to k ticks and returns how many executed.
func Step(h Handle, k int) int {
	s := resolve(h)
	if s == nil || k <= 0 {
		return 0
	}
	return s.StepN(k)
}

// Run is an alias for Step, kept for ABI compatibility.
func Run(h Handle, k int) int {
	return Step(h, k)
}

// Pause stops future Step calls from executing ticks.
func Pause(h Handle) {
	if s := resolve(h); s != nil {
		s.Paused = true
	}
}

// Resume re-enables tick execution.
func Resume(h Handle) {
	if s := resolve(h); s != nil {
		s.Paused = false
	}
}

// StepIndex returns the number of executed ticks.
func StepIndex(h Handle) int {
	s := resolve(h)
	if s == nil {
		return 0
	}
	return s.StepIndex
}

// GetParams reads the context's parameters.
func GetParams(h Handle) (config.Params, config.EvoParams, bool) {
	s := resolve(h)
	if s == nil {
		return config.Params{}, config.EvoParams{}, false
	}
	return s.Params, s.Evo, true
}

// SetParams replaces the parameters and re-initializes fields and agents.
// Invalid parameters are silently rejected and the context is unchanged.
func SetParams(h Handle, params config.Params, evo config.EvoParams) {
	s := resolve(h)
	if s == nil {
		return
	}
	check := config.Config{Params: params, Evolution: evo, Species: config.SpeciesConfig{Fracs: s.SpeciesFracs}}
	if err := check.Validate(); err != nil {
		return
	}
	s.Params = params
	s.Evo = evo
	s.InitFields()
	s.InitAgents()
}

// SetSpeciesProfiles replaces the four role profiles. No re-init.
func SetSpeciesProfiles(h Handle, profiles [config.NumSpecies]config.SpeciesProfile) {
	if s := resolve(h); s != nil {
		s.Profiles = profiles
	}
}

// GetSpeciesProfiles reads the four role profiles.
func GetSpeciesProfiles(h Handle) ([config.NumSpecies]config.SpeciesProfile, bool) {
	s := resolve(h)
	if s == nil {
		return [config.NumSpecies]config.SpeciesProfile{}, false
	}
	return s.Profiles, true
}

// SetSpeciesFracs replaces the spawn fractions. No re-init.
func SetSpeciesFracs(h Handle, fracs [config.NumSpecies]float32) {
	if s := resolve(h); s != nil {
		s.SpeciesFracs = fracs
	}
}

// GetSpeciesFracs reads the spawn fractions.
func GetSpeciesFracs(h Handle) ([config.NumSpecies]float32, bool) {
	s := resolve(h)
	if s == nil {
		return [config.NumSpecies]float32{}, false
	}
	return s.SpeciesFracs, true
}

// FieldInfo returns a field's dimensions, or zeros.
func FieldInfo(h Handle, kind sim.FieldKind) (w, hgt int) {
	s := resolve(h)
	if s == nil {
		return 0, 0
	}
	g := s.Field(kind)
	if g == nil {
		return 0, 0
	}
	return g.W, g.H
}

// CopyFieldOut copies a field into dst and returns the cell count, or 0
// when the handle, kind or destination size is unusable. A pending device
// state is copied back first.
func CopyFieldOut(h Handle, kind sim.FieldKind, dst []float32) int {
	s := resolve(h)
	if s == nil || dst == nil {
		return 0
	}
	if !s.EnsureHostFields() {
		return 0
	}
	g := s.Field(kind)
	if g == nil {
		return 0
	}
	count := g.W * g.H
	if len(dst) < count {
		return 0
	}
	copy(dst, g.Data)
	return count
}

// CopyFieldIn overwrites a field from src and returns the cell count. An
// active device gets the new state uploaded.
func CopyFieldIn(h Handle, kind sim.FieldKind, src []float32) int {
	s := resolve(h)
	if s == nil || src == nil {
		return 0
	}
	g := s.Field(kind)
	if g == nil {
		return 0
	}
	count := g.W * g.H
	if len(src) < count {
		return 0
	}
	copy(g.Data, src[:count])
	s.UploadFieldsIfActive()
	return count
}

// ClearField fills a field with value.
func ClearField(h Handle, kind sim.FieldKind, value float32) {
	s := resolve(h)
	if s == nil {
		return
	}
	g := s.Field(kind)
	if g == nil {
		return
	}
	g.Fill(value)
	s.UploadFieldsIfActive()
}

// LoadFieldCSV replaces a field from a CSV whose dimensions must match.
func LoadFieldCSV(h Handle, kind sim.FieldKind, path string) bool {
	s := resolve(h)
	if s == nil || path == "" {
		return false
	}
	g := s.Field(kind)
	if g == nil {
		return false
	}
	loaded, err := simio.LoadGrid(path)
	if err != nil {
		return false
	}
	if loaded.W != g.W || loaded.H != g.H {
		return false
	}
	copy(g.Data, loaded.Data)
	s.UploadFieldsIfActive()
	return true
}

// SaveFieldCSV dumps a field to a CSV.
func SaveFieldCSV(h Handle, kind sim.FieldKind, path string) bool {
	s := resolve(h)
	if s == nil || path == "" {
		return false
	}
	if !s.EnsureHostFields() {
		return false
	}
	g := s.Field(kind)
	if g == nil {
		return false
	}
	return simio.SaveGrid(path, g) == nil
}

// AgentCount returns the number of agents.
func AgentCount(h Handle) int {
	s := resolve(h)
	if s == nil {
		return 0
	}
	return len(s.Agents)
}

// GetAgents copies up to len(out) agents and returns the copied count.
func GetAgents(h Handle, out []AgentState) int {
	s := resolve(h)
	if s == nil || len(out) == 0 {
		return 0
	}
	count := min(len(out), len(s.Agents))
	for i := 0; i < count; i++ {
		a := &s.Agents[i]
		out[i] = AgentState{
			X: a.X, Y: a.Y, Heading: a.Heading, Energy: a.Energy, Species: a.Species,
			SenseGain:       a.Genome.SenseGain,
			PheromoneGain:   a.Genome.PheromoneGain,
			ExplorationBias: a.Genome.ExplorationBias,
		}
	}
	return count
}

// SetAgents replaces the agent sequence. Genomes are clamped; fitness
// accumulators reset.
func SetAgents(h Handle, agents []AgentState) {
	s := resolve(h)
	if s == nil || len(agents) == 0 {
		return
	}
	s.Agents = s.Agents[:0]
	for _, in := range agents {
		s.Agents = append(s.Agents, agentFromState(in))
	}
	s.Params.AgentCount = len(s.Agents)
}

// KillAgent zeroes an agent's energy; the slot respawns on the next tick.
func KillAgent(h Handle, agentID int) {
	s := resolve(h)
	if s == nil || agentID < 0 || agentID >= len(s.Agents) {
		return
	}
	s.Agents[agentID].Energy = 0
}

// SpawnAgent appends one agent.
func SpawnAgent(h Handle, agent *AgentState) {
	s := resolve(h)
	if s == nil || agent == nil {
		return
	}
	s.Agents = append(s.Agents, agentFromState(*agent))
	s.Params.AgentCount = len(s.Agents)
}

func agentFromState(in AgentState) sim.Agent {
	a := sim.Agent{
		X: in.X, Y: in.Y, Heading: in.Heading, Energy: in.Energy, Species: in.Species,
		Genome: dna.Genome{
			SenseGain:       in.SenseGain,
			PheromoneGain:   in.PheromoneGain,
			ExplorationBias: in.ExplorationBias,
		},
		LastEnergy: in.Energy,
	}
	a.Genome.Clamp()
	return a
}

// DNASizes returns the per-species and global pool sizes.
func DNASizes(h Handle) (species [config.NumSpecies]int, global int) {
	s := resolve(h)
	if s == nil {
		return species, 0
	}
	for i := range s.DNASpecies {
		species[i] = s.DNASpecies[i].Len()
	}
	return species, s.DNAGlobal.Len()
}

// DNACapacity returns the species and global capacities.
func DNACapacity(h Handle) (speciesCap, globalCap int) {
	s := resolve(h)
	if s == nil {
		return 0, 0
	}
	return s.Params.DNACapacity, s.Params.DNAGlobalCapacity
}

// SetDNACapacity updates the capacities, shrinking pools as needed.
func SetDNACapacity(h Handle, speciesCap, globalCap int) {
	s := resolve(h)
	if s == nil || speciesCap < 0 || globalCap < 0 {
		return
	}
	s.Params.DNACapacity = speciesCap
	s.Params.DNAGlobalCapacity = globalCap
	for i := range s.DNASpecies {
		s.DNASpecies[i].Truncate(speciesCap)
	}
	s.DNAGlobal.Truncate(globalCap)
}

// ClearDNAPools empties all five pools.
func ClearDNAPools(h Handle) {
	s := resolve(h)
	if s == nil {
		return
	}
	for i := range s.DNASpecies {
		s.DNASpecies[i].Clear()
	}
	s.DNAGlobal.Clear()
}

// ExportDNACSV writes the pools to a CSV.
func ExportDNACSV(h Handle, path string) bool {
	s := resolve(h)
	if s == nil || path == "" {
		return false
	}
	return simio.ExportDNACSV(path, s) == nil
}

// ImportDNACSV merges a CSV into the pools under the current capacities.
func ImportDNACSV(h Handle, path string) bool {
	s := resolve(h)
	if s == nil || path == "" {
		return false
	}
	return simio.ImportDNACSV(path, s) == nil
}

// SystemMetrics returns the aggregate snapshot.
func SystemMetrics(h Handle) sim.SystemMetrics {
	s := resolve(h)
	if s == nil {
		return sim.SystemMetrics{}
	}
	return s.CurrentMetrics()
}

// EnergyStats returns average, minimum and maximum agent energy.
func EnergyStats(h Handle) (avg, min, max float32) {
	s := resolve(h)
	if s == nil {
		return 0, 0, 0
	}
	return s.EnergyStats()
}

// EnergyBySpecies returns per-species average energy.
func EnergyBySpecies(h Handle) [config.NumSpecies]float32 {
	s := resolve(h)
	if s == nil {
		return [config.NumSpecies]float32{}
	}
	return s.EnergyBySpecies()
}

// EntropyMetrics summarizes all five field distributions.
func EntropyMetrics(h Handle) sim.EntropyMetrics {
	s := resolve(h)
	if s == nil {
		return sim.EntropyMetrics{}
	}
	if !s.EnsureHostFields() {
		return sim.EntropyMetrics{}
	}
	return s.EntropyMetricsNow()
}

// MycelStats summarizes the mycelial density field.
func MycelStats(h Handle) sim.MycelStats {
	s := resolve(h)
	if s == nil {
		return sim.MycelStats{}
	}
	return s.MycelStatsNow()
}

// OCLEnable activates or deactivates the compute offload.
func OCLEnable(h Handle, enable bool) {
	if s := resolve(h); s != nil {
		s.EnableGPU(enable)
	}
}

// OCLSelectDevice records the platform/device used on the next enable.
func OCLSelectDevice(h Handle, platform, device int) {
	if s := resolve(h); s != nil {
		s.SelectGPUDevice(platform, device)
	}
}

// OCLPrintDevices lists the selectable compute devices on stdout.
func OCLPrintDevices() {
	for pi, platform := range compute.Platforms() {
		fmt.Fprintf(os.Stdout, "platform %d: %s\n", pi, platform.Name)
		for di, device := range platform.Devices {
			fmt.Fprintf(os.Stdout, "  device %d: %s\n", di, device)
		}
	}
}

// OCLSetNoCopyback switches device buffers to be authoritative between
// dumps. Refused while agents exist.
func OCLSetNoCopyback(h Handle, enable bool) {
	if s := resolve(h); s != nil {
		s.SetNoCopyback(enable)
	}
}

// IsGPUActive reports whether diffusion runs on the device.
func IsGPUActive(h Handle) bool {
	s := resolve(h)
	return s != nil && s.GPUActive()
}
