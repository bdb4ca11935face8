package compute

import (
	"fmt"
	"math"
	"testing"

	"github.com/ralfKruemmelPython/micro-swarm/field"
	"github.com/ralfKruemmelPython/micro-swarm/rng"
)

func newReadyRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := NewRuntime()
	if err := rt.Init(0, 0); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := rt.BuildKernels(); err != nil {
		t.Fatalf("BuildKernels: %v", err)
	}
	return rt
}

func randomGrid(w, h int, seed uint32) *field.Grid {
	g := field.New(w, h, 0)
	r := rng.New(seed)
	for i := range g.Data {
		g.Data[i] = r.Uniform(0, 1)
	}
	return g
}

func TestSelfTestPasses(t *testing.T) {
	rt := newReadyRuntime(t)
	defer rt.Release()
	if err := rt.SelfTest(); err != nil {
		t.Fatalf("SelfTest: %v", err)
	}
	if !rt.IsAvailable() {
		t.Fatal("runtime unavailable after passing self-test")
	}
}

func TestStepDiffuseMatchesCPU(t *testing.T) {
	const w, h = 24, 17
	food := randomGrid(w, h, 1)
	danger := randomGrid(w, h, 2)
	molecules := randomGrid(w, h, 3)

	refFood := food.Clone()
	refDanger := danger.Clone()
	refMolecules := molecules.Clone()

	rt := newReadyRuntime(t)
	defer rt.Release()
	if err := rt.InitFields(food, danger, molecules); err != nil {
		t.Fatalf("InitFields: %v", err)
	}

	pher := field.DiffuseParams{Diffusion: 0.15, Evaporation: 0.02}
	mol := field.DiffuseParams{Diffusion: 0.25, Evaporation: 0.35}

	for tick := 0; tick < 100; tick++ {
		if err := rt.StepDiffuse(pher, mol, true, food, danger, molecules); err != nil {
			t.Fatalf("StepDiffuse tick %d: %v", tick, err)
		}
		field.DiffuseEvaporate(refFood, pher)
		field.DiffuseEvaporate(refDanger, pher)
		field.DiffuseEvaporate(refMolecules, mol)
	}

	compare := func(name string, got, want *field.Grid) {
		t.Helper()
		var maxErr float64
		for i := range got.Data {
			d := math.Abs(float64(got.Data[i] - want.Data[i]))
			if d > maxErr {
				maxErr = d
			}
		}
		if maxErr > SelfTestTolerance {
			t.Errorf("%s diverged: max abs error %g", name, maxErr)
		}
	}
	compare("food", food, refFood)
	compare("danger", danger, refDanger)
	compare("molecules", molecules, refMolecules)
}

func TestNoCopybackThenExplicitCopyback(t *testing.T) {
	const w, h = 8, 8
	food := randomGrid(w, h, 4)
	danger := randomGrid(w, h, 5)
	molecules := randomGrid(w, h, 6)
	refFood := food.Clone()

	rt := newReadyRuntime(t)
	defer rt.Release()
	if err := rt.InitFields(food, danger, molecules); err != nil {
		t.Fatalf("InitFields: %v", err)
	}

	pher := field.DiffuseParams{Diffusion: 0.2, Evaporation: 0}
	stale := food.Clone()
	if err := rt.StepDiffuse(pher, pher, false, food, danger, molecules); err != nil {
		t.Fatalf("StepDiffuse: %v", err)
	}
	// Host buffers are untouched without copyback.
	for i := range food.Data {
		if food.Data[i] != stale.Data[i] {
			t.Fatal("host buffer changed without copyback")
		}
	}

	if err := rt.Copyback(food, danger, molecules); err != nil {
		t.Fatalf("Copyback: %v", err)
	}
	field.DiffuseEvaporate(refFood, pher)
	for i := range food.Data {
		if math.Abs(float64(food.Data[i]-refFood.Data[i])) > 1e-6 {
			t.Fatal("copyback did not deliver the diffused field")
		}
	}
}

// failingDevice errors on dispatch to exercise the one-way disable path.
type failingDevice struct {
	*simDevice
	failDispatch bool
}

type failingKernel struct {
	inner Kernel
	dev   *failingDevice
}

func (k *failingKernel) Dispatch(w, h int, src, dst Buffer, diffusion, evaporation float32) error {
	if k.dev.failDispatch {
		return fmt.Errorf("injected dispatch failure")
	}
	return k.inner.Dispatch(w, h, src, dst, diffusion, evaporation)
}

type failingProgram struct {
	inner Program
	dev   *failingDevice
}

func (p *failingProgram) Kernel(name string) (Kernel, error) {
	k, err := p.inner.Kernel(name)
	if err != nil {
		return nil, err
	}
	return &failingKernel{inner: k, dev: p.dev}, nil
}

func (d *failingDevice) BuildProgram(source string) (Program, error) {
	p, err := d.simDevice.BuildProgram(source)
	if err != nil {
		return nil, err
	}
	return &failingProgram{inner: p, dev: d}, nil
}

func TestDispatchFailureDisablesPermanently(t *testing.T) {
	dev := &failingDevice{simDevice: newSimDevice()}
	rt := NewRuntime()
	rt.device = dev
	rt.disabled = false
	if err := rt.BuildKernels(); err != nil {
		t.Fatalf("BuildKernels: %v", err)
	}

	food := randomGrid(8, 8, 7)
	danger := randomGrid(8, 8, 8)
	molecules := randomGrid(8, 8, 9)
	if err := rt.InitFields(food, danger, molecules); err != nil {
		t.Fatalf("InitFields: %v", err)
	}

	dev.failDispatch = true
	p := field.DiffuseParams{Diffusion: 0.1, Evaporation: 0.1}
	if err := rt.StepDiffuse(p, p, true, food, danger, molecules); err == nil {
		t.Fatal("expected dispatch error")
	}
	if rt.IsAvailable() {
		t.Fatal("runtime still available after dispatch failure")
	}
	// There is no re-enable path: further calls keep failing.
	if err := rt.StepDiffuse(p, p, true, food, danger, molecules); err == nil {
		t.Fatal("disabled runtime accepted a dispatch")
	}
}

func TestInitRejectsUnknownDevice(t *testing.T) {
	rt := NewRuntime()
	if err := rt.Init(3, 9); err == nil {
		t.Fatal("expected error for unknown device")
	}
	if rt.IsAvailable() {
		t.Fatal("runtime available after failed init")
	}
}

func TestPingFlipsPerDispatch(t *testing.T) {
	rt := newReadyRuntime(t)
	defer rt.Release()
	food := randomGrid(4, 4, 10)
	danger := randomGrid(4, 4, 11)
	molecules := randomGrid(4, 4, 12)
	if err := rt.InitFields(food, danger, molecules); err != nil {
		t.Fatalf("InitFields: %v", err)
	}
	for i := range rt.fields {
		if rt.fields[i].ping != 0 {
			t.Fatalf("field %d ping = %d after init, want 0", i, rt.fields[i].ping)
		}
	}
	p := field.DiffuseParams{Diffusion: 0.1, Evaporation: 0}
	if err := rt.StepDiffuse(p, p, false, food, danger, molecules); err != nil {
		t.Fatalf("StepDiffuse: %v", err)
	}
	for i := range rt.fields {
		if rt.fields[i].ping != 1 {
			t.Fatalf("field %d ping = %d after one dispatch, want 1", i, rt.fields[i].ping)
		}
	}
}
