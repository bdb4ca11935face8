package sim

import (
	"math"
	"testing"

	"github.com/ralfKruemmelPython/micro-swarm/config"
)

func smallParams(w, h, agents, steps int) config.Params {
	p := config.DefaultParams()
	p.Width = w
	p.Height = h
	p.AgentCount = agents
	p.Steps = steps
	return p
}

func TestEmptyWorldStaysZero(t *testing.T) {
	p := smallParams(32, 32, 0, 10)
	p.ResourceRegen = 0
	s := New(p, config.DefaultEvoParams(), 1)
	s.Env.Resources.Fill(0)

	s.StepN(10)

	for kind := FieldKind(0); kind < NumFieldKinds; kind++ {
		for i, v := range s.Field(kind).Data {
			if v != 0 {
				t.Fatalf("field %d cell %d = %v after empty-world run", kind, i, v)
			}
		}
	}
	for _, m := range s.Metrics {
		if m.AvgEnergy != 0 {
			t.Errorf("step %d avg energy = %v, want 0", m.Step, m.AvgEnergy)
		}
	}
	if s.DNAGlobal.Len() != 0 {
		t.Error("global DNA pool grew without agents")
	}
	for i := range s.DNASpecies {
		if s.DNASpecies[i].Len() != 0 {
			t.Errorf("species %d DNA pool grew without agents", i)
		}
	}
}

func TestSingleHotspotHarvest(t *testing.T) {
	p := smallParams(16, 16, 1, 25)
	p.ResourceRegen = 0
	p.AgentHarvest = 0.04
	s := New(p, config.DefaultEvoParams(), 1)

	s.Env.Resources.Fill(0)
	s.Env.Resources.Set(8, 8, 1.0)
	s.Agents[0] = Agent{X: 8, Y: 8, Heading: 0, Energy: 0.5, Species: 0, Genome: s.Agents[0].Genome}

	startEnergy := s.Agents[0].Energy
	s.StepN(25)

	var remaining float64
	for _, v := range s.Env.Resources.Data {
		if v < 0 {
			t.Fatalf("negative resource cell: %v", v)
		}
		remaining += float64(v)
	}
	// Total harvested cannot exceed the single unit of resource.
	harvested := 1.0 - remaining
	if harvested < 0 || harvested > 1.0+1e-6 {
		t.Errorf("harvested %v outside [0, 1]", harvested)
	}
	// The agent spent 25 move costs and gained at most what it harvested.
	maxEnergy := float64(startEnergy) + harvested
	if float64(s.Agents[0].Energy) > maxEnergy+1e-5 {
		t.Errorf("agent energy %v exceeds income bound %v", s.Agents[0].Energy, maxEnergy)
	}
}

func TestHarvestDepositsFoodPheromone(t *testing.T) {
	p := smallParams(16, 16, 1, 1)
	p.ResourceRegen = 0
	s := New(p, config.DefaultEvoParams(), 1)
	s.Env.Resources.Fill(0)

	fields := StepFields{
		PheroFood:   s.PheroFood,
		PheroDanger: s.PheroDanger,
		Molecules:   s.Molecules,
		Resources:   s.Env.Resources,
		Mycel:       s.Mycel.Density,
	}
	a := &s.Agents[0]
	a.X, a.Y = 8.5, 8.5
	a.Energy = 0.5
	// Surround the agent's area with resources so wherever it moves it
	// harvests this tick.
	for y := 6; y <= 10; y++ {
		for x := 6; x <= 10; x++ {
			s.Env.Resources.Set(x, y, 1.0)
		}
	}
	a.Step(s.Rng, s.Params, 0, s.Profiles[a.Species], fields)

	var foodSum float32
	for _, v := range s.PheroFood.Data {
		foodSum += v
	}
	if foodSum <= 0 {
		t.Error("no food pheromone deposited after harvest")
	}
	var molSum float32
	for _, v := range s.Molecules.Data {
		molSum += v
	}
	if molSum <= 0 {
		t.Error("no molecules deposited after harvest")
	}
}

func TestStressBlockRect(t *testing.T) {
	p := smallParams(32, 32, 0, 20)
	p.ResourceRegen = 0.01
	s := New(p, config.DefaultEvoParams(), 1)
	s.Stress = config.StressConfig{
		Enabled:      true,
		AtStep:       5,
		BlockRectSet: true,
		BlockX:       0, BlockY: 0, BlockW: 32, BlockH: 16,
	}
	s.Env.Resources.Fill(0.5)

	s.StepN(20)

	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			if v := s.Env.Resources.At(x, y); v != 0 {
				t.Fatalf("blocked cell (%d,%d) = %v, want 0", x, y, v)
			}
		}
	}
	// Bottom half kept regenerating: 0.5 + 20 * 0.01 = 0.7.
	for y := 16; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := s.Env.Resources.At(x, y)
			if math.Abs(float64(v-0.7)) > 1e-5 {
				t.Fatalf("unblocked cell (%d,%d) = %v, want 0.7", x, y, v)
			}
		}
	}
}

func TestShiftHotspotsToroidal(t *testing.T) {
	e := NewEnvironment(4, 4)
	e.Resources.Set(3, 3, 1)
	e.ShiftHotspots(2, 3)
	if got := e.Resources.At((3+2)%4, (3+3)%4); got != 1 {
		t.Errorf("shifted value missing, got %v", got)
	}
	e2 := NewEnvironment(4, 4)
	e2.Resources.Set(0, 0, 1)
	e2.ShiftHotspots(-1, -1)
	if got := e2.Resources.At(3, 3); got != 1 {
		t.Errorf("negative shift did not wrap, got %v", got)
	}
}

func TestRespawnBoundary(t *testing.T) {
	p := smallParams(16, 16, 2, 1)
	p.AgentMoveCost = 0 // keep energies exactly at the boundary values
	p.ResourceRegen = 0
	s := New(p, config.DefaultEvoParams(), 1)
	s.Env.Resources.Fill(0)

	s.Agents[0].Energy = RespawnThreshold // exactly 0.05: respawns
	s.Agents[1].Energy = 0.06             // just above: survives

	s.Step()

	if e := s.Agents[0].Energy; e < 0.2 || e >= 0.5 {
		t.Errorf("respawned agent energy = %v, want [0.2, 0.5)", e)
	}
	if e := s.Agents[1].Energy; e != 0.06 {
		t.Errorf("surviving agent energy = %v, want 0.06", e)
	}
	a := s.Agents[0]
	if a.X < 0 || a.X >= 16 || a.Y < 0 || a.Y >= 16 {
		t.Errorf("respawned agent outside bounds: (%v, %v)", a.X, a.Y)
	}
}

func TestInvariantsHoldOverRun(t *testing.T) {
	p := smallParams(24, 24, 64, 0)
	evo := config.DefaultEvoParams()
	evo.Enabled = true
	s := New(p, evo, 7)

	for tick := 0; tick < 100; tick++ {
		s.Step()

		for kind := FieldKind(0); kind < NumFieldKinds; kind++ {
			for i, v := range s.Field(kind).Data {
				if v < 0 || math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					t.Fatalf("tick %d field %d cell %d = %v", tick, kind, i, v)
				}
			}
		}
		for _, v := range s.Mycel.Density.Data {
			if v < 0 || v > 1 {
				t.Fatalf("tick %d mycel density %v outside [0,1]", tick, v)
			}
		}
		for i := range s.Agents {
			a := &s.Agents[i]
			if a.X < 0 || a.X >= 24 || a.Y < 0 || a.Y >= 24 {
				t.Fatalf("tick %d agent %d at (%v, %v)", tick, i, a.X, a.Y)
			}
			if a.Energy < 0 {
				t.Fatalf("tick %d agent %d energy %v", tick, i, a.Energy)
			}
			if a.Heading < 0 || a.Heading >= 2*math.Pi {
				t.Fatalf("tick %d agent %d heading %v", tick, i, a.Heading)
			}
		}
		for i := range s.DNASpecies {
			pool := &s.DNASpecies[i]
			if pool.Len() > p.DNACapacity {
				t.Fatalf("species pool %d exceeded capacity", i)
			}
			for j := 1; j < pool.Len(); j++ {
				if pool.Entries[j].Fitness > pool.Entries[j-1].Fitness {
					t.Fatalf("species pool %d out of order at %d", i, j)
				}
			}
		}
		if s.DNAGlobal.Len() > p.DNAGlobalCapacity {
			t.Fatal("global pool exceeded capacity")
		}
	}
}

func TestSameSeedSameMetrics(t *testing.T) {
	p := smallParams(32, 32, 128, 0)
	evo := config.DefaultEvoParams()
	evo.Enabled = true

	a := New(p, evo, 1234)
	b := New(p, evo, 1234)
	a.StepN(200)
	b.StepN(200)

	if len(a.Metrics) != len(b.Metrics) {
		t.Fatalf("metric counts differ: %d vs %d", len(a.Metrics), len(b.Metrics))
	}
	for i := range a.Metrics {
		if a.Metrics[i] != b.Metrics[i] {
			t.Fatalf("metrics diverged at step %d: %+v vs %+v", i, a.Metrics[i], b.Metrics[i])
		}
	}
	for kind := FieldKind(0); kind < NumFieldKinds; kind++ {
		fa, fb := a.Field(kind), b.Field(kind)
		for i := range fa.Data {
			if fa.Data[i] != fb.Data[i] {
				t.Fatalf("field %d diverged at cell %d", kind, i)
			}
		}
	}
}

func TestCloneContinuesIdentically(t *testing.T) {
	p := smallParams(24, 24, 48, 0)
	evo := config.DefaultEvoParams()
	evo.Enabled = true
	s := New(p, evo, 99)
	s.StepN(50)

	c := s.Clone()
	s.StepN(40)
	c.StepN(40)

	if len(s.Metrics) != len(c.Metrics) {
		t.Fatalf("metric counts differ: %d vs %d", len(s.Metrics), len(c.Metrics))
	}
	for i := range s.Metrics {
		if s.Metrics[i] != c.Metrics[i] {
			t.Fatalf("clone metrics diverged at entry %d", i)
		}
	}
	for kind := FieldKind(0); kind < NumFieldKinds; kind++ {
		fs, fc := s.Field(kind), c.Field(kind)
		for i := range fs.Data {
			if fs.Data[i] != fc.Data[i] {
				t.Fatalf("clone field %d diverged at cell %d", kind, i)
			}
		}
	}
}

func TestPausedStepDoesNothing(t *testing.T) {
	p := smallParams(16, 16, 8, 0)
	s := New(p, config.DefaultEvoParams(), 5)
	s.Paused = true
	before := s.StepIndex
	s.StepN(10)
	if s.StepIndex != before {
		t.Errorf("paused simulation advanced to step %d", s.StepIndex)
	}
	if len(s.Metrics) != 0 {
		t.Error("paused simulation logged metrics")
	}
}

func TestMycelStaysClamped(t *testing.T) {
	p := smallParams(8, 8, 0, 0)
	p.MycelGrowth = 1.0
	p.MycelTransport = 1.0
	s := New(p, config.DefaultEvoParams(), 3)
	s.PheroFood.Fill(10)
	s.Env.Resources.Fill(10)
	for i := 0; i < 50; i++ {
		s.Mycel.Update(s.Params, s.PheroFood, s.Env.Resources)
	}
	for _, v := range s.Mycel.Density.Data {
		if v < 0 || v > 1 {
			t.Fatalf("mycel density %v outside [0,1]", v)
		}
	}
}

func TestGPURunMatchesCPURun(t *testing.T) {
	p := smallParams(32, 32, 64, 0)
	cpu := New(p, config.DefaultEvoParams(), 42)
	gpu := New(p, config.DefaultEvoParams(), 42)
	gpu.EnableGPU(true)
	if !gpu.GPUActive() {
		t.Fatal("reference device did not activate")
	}

	cpu.StepN(100)
	gpu.StepN(100)

	for kind := FieldKind(0); kind < NumFieldKinds; kind++ {
		fc, fg := cpu.Field(kind), gpu.Field(kind)
		for i := range fc.Data {
			d := math.Abs(float64(fc.Data[i] - fg.Data[i]))
			if d > 1e-3 {
				t.Fatalf("field %d cell %d diverged by %v", kind, i, d)
			}
		}
	}
}

func TestEntropyMetricsUniformField(t *testing.T) {
	values := make([]float32, 256)
	for i := range values {
		values[i] = float32(i) / 256
	}
	st := ComputeFieldStats(values, 16)
	if st.NormEntropy < 0.99 {
		t.Errorf("uniform ramp norm entropy = %v, want ~1", st.NormEntropy)
	}
	if st.Min != 0 {
		t.Errorf("min = %v, want 0", st.Min)
	}
}

func TestEntropyMetricsConstantField(t *testing.T) {
	values := make([]float32, 64)
	for i := range values {
		values[i] = 0.5
	}
	st := ComputeFieldStats(values, 16)
	if st.Entropy != 0 {
		t.Errorf("constant field entropy = %v, want 0", st.Entropy)
	}
	if st.Mean != 0.5 || st.Min != 0.5 || st.Max != 0.5 {
		t.Errorf("constant field stats: %+v", st)
	}
}
