package compute

import (
	"fmt"
	"log/slog"

	"github.com/ralfKruemmelPython/micro-swarm/field"
	"github.com/ralfKruemmelPython/micro-swarm/rng"
)

// Field indices within the runtime's buffer set.
const (
	FieldFood = iota
	FieldDanger
	FieldMolecules
	numFields
)

// SelfTestTolerance is the maximum per-cell divergence allowed between
// the device and the CPU reference after the self-test passes.
const SelfTestTolerance = 1e-3

const selfTestSize = 16
const selfTestPasses = 5

// pingPong is a pair of device buffers with an index selecting the
// current one. The index flips after each dispatch.
type pingPong struct {
	bufs [2]Buffer
	ping int
}

func (pp *pingPong) current() Buffer { return pp.bufs[pp.ping] }
func (pp *pingPong) next() Buffer    { return pp.bufs[1-pp.ping] }
func (pp *pingPong) flip()           { pp.ping = 1 - pp.ping }

// Runtime owns the device-side state for the three diffused fields. Any
// error permanently disables the runtime for its lifetime; callers fall
// back to the CPU kernel and must create a fresh runtime to retry.
type Runtime struct {
	device Device
	kernel Kernel

	w, h   int
	fields [numFields]pingPong

	disabled bool
	haveBufs bool
}

// NewRuntime returns an idle runtime. Init must succeed before any other
// operation.
func NewRuntime() *Runtime {
	return &Runtime{disabled: true}
}

func (rt *Runtime) fail(stage string, err error) error {
	slog.Warn("compute runtime disabled", "stage", stage, "error", err)
	rt.releaseBuffers()
	if rt.device != nil {
		rt.device.Release()
		rt.device = nil
	}
	rt.kernel = nil
	rt.disabled = true
	return fmt.Errorf("%s: %w", stage, err)
}

// Init binds the selected platform/device.
func (rt *Runtime) Init(platform, device int) error {
	d, err := Open(platform, device)
	if err != nil {
		return rt.fail("init", err)
	}
	rt.device = d
	rt.disabled = false
	return nil
}

// BuildKernels compiles the diffusion kernel from the embedded source.
func (rt *Runtime) BuildKernels() error {
	if rt.disabled || rt.device == nil {
		return fmt.Errorf("compute: runtime not initialized")
	}
	prog, err := rt.device.BuildProgram(KernelSource)
	if err != nil {
		return rt.fail("build", err)
	}
	k, err := prog.Kernel(DiffuseKernelName)
	if err != nil {
		return rt.fail("build", err)
	}
	rt.kernel = k
	return nil
}

// InitFields allocates the six device buffers (a pair per field, W*H*4
// bytes each), uploads the host data into the current buffers and resets
// every ping bit.
func (rt *Runtime) InitFields(food, danger, molecules *field.Grid) error {
	if rt.disabled || rt.device == nil || rt.kernel == nil {
		return fmt.Errorf("compute: runtime not initialized")
	}
	rt.releaseBuffers()
	rt.w = food.W
	rt.h = food.H
	byteSize := rt.w * rt.h * 4
	for i := 0; i < numFields; i++ {
		for j := 0; j < 2; j++ {
			b, err := rt.device.CreateBuffer(byteSize)
			if err != nil {
				return rt.fail("alloc", err)
			}
			rt.fields[i].bufs[j] = b
		}
		rt.fields[i].ping = 0
	}
	rt.haveBufs = true
	return rt.UploadFields(food, danger, molecules)
}

// UploadFields writes the host data into the currently-selected buffer of
// each field.
func (rt *Runtime) UploadFields(food, danger, molecules *field.Grid) error {
	if !rt.IsAvailable() || !rt.haveBufs {
		return fmt.Errorf("compute: runtime not ready")
	}
	grids := [numFields]*field.Grid{food, danger, molecules}
	for i, g := range grids {
		if err := rt.device.WriteBuffer(rt.fields[i].current(), g.Data); err != nil {
			return rt.fail("upload", err)
		}
	}
	return nil
}

// StepDiffuse dispatches the kernel once per field, flipping each field's
// ping after its dispatch. With doCopyback the results are read back into
// the host grids before returning.
func (rt *Runtime) StepDiffuse(pher, mol field.DiffuseParams, doCopyback bool, food, danger, molecules *field.Grid) error {
	if !rt.IsAvailable() || !rt.haveBufs {
		return fmt.Errorf("compute: runtime not ready")
	}
	params := [numFields]field.DiffuseParams{pher, pher, mol}
	for i := range rt.fields {
		pp := &rt.fields[i]
		if err := rt.kernel.Dispatch(rt.w, rt.h, pp.current(), pp.next(), params[i].Diffusion, params[i].Evaporation); err != nil {
			return rt.fail("dispatch", err)
		}
		pp.flip()
	}
	if err := rt.device.Finish(); err != nil {
		return rt.fail("dispatch", err)
	}
	if doCopyback {
		return rt.Copyback(food, danger, molecules)
	}
	return nil
}

// Copyback reads the three currently-selected buffers into the host grids.
func (rt *Runtime) Copyback(food, danger, molecules *field.Grid) error {
	if !rt.IsAvailable() || !rt.haveBufs {
		return fmt.Errorf("compute: runtime not ready")
	}
	grids := [numFields]*field.Grid{food, danger, molecules}
	for i, g := range grids {
		if err := rt.device.ReadBuffer(rt.fields[i].current(), g.Data); err != nil {
			return rt.fail("copyback", err)
		}
	}
	return nil
}

// IsAvailable reports whether device, queue and kernel all exist and no
// error has disabled the runtime.
func (rt *Runtime) IsAvailable() bool {
	return !rt.disabled && rt.device != nil && rt.kernel != nil
}

// DeviceName returns the bound device's name, or "" when unavailable.
func (rt *Runtime) DeviceName() string {
	if rt.device == nil {
		return ""
	}
	return rt.device.Name()
}

// SelfTest runs five device and CPU diffusion passes on a random 16x16
// field and compares them. Divergence beyond SelfTestTolerance disables
// the runtime.
func (rt *Runtime) SelfTest() error {
	if !rt.IsAvailable() {
		return fmt.Errorf("compute: runtime not ready")
	}

	r := rng.New(0x5eed)
	ref := field.New(selfTestSize, selfTestSize, 0)
	for i := range ref.Data {
		ref.Data[i] = r.Uniform(0, 1)
	}

	byteSize := selfTestSize * selfTestSize * 4
	var pp pingPong
	for j := 0; j < 2; j++ {
		b, err := rt.device.CreateBuffer(byteSize)
		if err != nil {
			return rt.fail("selftest", err)
		}
		pp.bufs[j] = b
	}
	defer pp.bufs[0].Release()
	defer pp.bufs[1].Release()

	if err := rt.device.WriteBuffer(pp.current(), ref.Data); err != nil {
		return rt.fail("selftest", err)
	}

	params := field.DiffuseParams{Diffusion: 0.2, Evaporation: 0.05}
	for pass := 0; pass < selfTestPasses; pass++ {
		if err := rt.kernel.Dispatch(selfTestSize, selfTestSize, pp.current(), pp.next(), params.Diffusion, params.Evaporation); err != nil {
			return rt.fail("selftest", err)
		}
		pp.flip()
		field.DiffuseEvaporate(ref, params)
	}
	if err := rt.device.Finish(); err != nil {
		return rt.fail("selftest", err)
	}

	got := make([]float32, selfTestSize*selfTestSize)
	if err := rt.device.ReadBuffer(pp.current(), got); err != nil {
		return rt.fail("selftest", err)
	}

	var maxErr float64
	for i := range got {
		d := float64(got[i] - ref.Data[i])
		if d < 0 {
			d = -d
		}
		if d > maxErr {
			maxErr = d
		}
	}
	if maxErr > SelfTestTolerance {
		return rt.fail("selftest", fmt.Errorf("max abs error %g exceeds %g", maxErr, SelfTestTolerance))
	}
	return nil
}

// Release frees all device state. The runtime stays disabled afterwards.
func (rt *Runtime) Release() {
	rt.releaseBuffers()
	if rt.device != nil {
		rt.device.Release()
		rt.device = nil
	}
	rt.kernel = nil
	rt.disabled = true
}

func (rt *Runtime) releaseBuffers() {
	if !rt.haveBufs {
		return
	}
	for i := range rt.fields {
		for j := range rt.fields[i].bufs {
			if rt.fields[i].bufs[j] != nil {
				rt.fields[i].bufs[j].Release()
				rt.fields[i].bufs[j] = nil
			}
		}
	}
	rt.haveBufs = false
}
