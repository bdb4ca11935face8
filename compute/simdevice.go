package compute

import (
	"fmt"
	"strings"
)

// simDevice is the reference in-process device. It executes dispatches on
// the caller's thread with the same arithmetic as the kernel source, so
// parity with the CPU path is exact.
type simDevice struct {
	released bool
}

func newSimDevice() *simDevice {
	return &simDevice{}
}

func (d *simDevice) Name() string { return "cpu-sim" }

type simBuffer struct {
	data []float32
}

func (b *simBuffer) ByteSize() int { return len(b.data) * 4 }
func (b *simBuffer) Release()      { b.data = nil }

func (d *simDevice) CreateBuffer(byteSize int) (Buffer, error) {
	if d.released {
		return nil, fmt.Errorf("compute: device released")
	}
	if byteSize <= 0 || byteSize%4 != 0 {
		return nil, fmt.Errorf("compute: invalid buffer size %d", byteSize)
	}
	return &simBuffer{data: make([]float32, byteSize/4)}, nil
}

func (d *simDevice) WriteBuffer(b Buffer, src []float32) error {
	sb, ok := b.(*simBuffer)
	if !ok || sb.data == nil {
		return fmt.Errorf("compute: invalid buffer")
	}
	if len(src) > len(sb.data) {
		return fmt.Errorf("compute: write of %d floats exceeds buffer of %d", len(src), len(sb.data))
	}
	copy(sb.data, src)
	return nil
}

func (d *simDevice) ReadBuffer(b Buffer, dst []float32) error {
	sb, ok := b.(*simBuffer)
	if !ok || sb.data == nil {
		return fmt.Errorf("compute: invalid buffer")
	}
	if len(dst) > len(sb.data) {
		return fmt.Errorf("compute: read of %d floats exceeds buffer of %d", len(dst), len(sb.data))
	}
	copy(dst, sb.data)
	return nil
}

type simProgram struct{}

func (p *simProgram) Kernel(name string) (Kernel, error) {
	if name != DiffuseKernelName {
		return nil, fmt.Errorf("compute: unknown kernel %q", name)
	}
	return &simKernel{}, nil
}

func (d *simDevice) BuildProgram(source string) (Program, error) {
	if d.released {
		return nil, fmt.Errorf("compute: device released")
	}
	if !strings.Contains(source, DiffuseKernelName) {
		return nil, fmt.Errorf("compute: program build failed: missing kernel %q", DiffuseKernelName)
	}
	return &simProgram{}, nil
}

func (d *simDevice) Finish() error {
	if d.released {
		return fmt.Errorf("compute: device released")
	}
	return nil
}

func (d *simDevice) Release() { d.released = true }

type simKernel struct{}

func (k *simKernel) Dispatch(w, h int, src, dst Buffer, diffusion, evaporation float32) error {
	sb, ok := src.(*simBuffer)
	if !ok || sb.data == nil {
		return fmt.Errorf("compute: invalid source buffer")
	}
	db, ok := dst.(*simBuffer)
	if !ok || db.data == nil {
		return fmt.Errorf("compute: invalid destination buffer")
	}
	if len(sb.data) < w*h || len(db.data) < w*h {
		return fmt.Errorf("compute: dispatch over %dx%d exceeds buffers", w, h)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			center := sb.data[i]
			value := center
			if x > 0 && x < w-1 && y > 0 && y < h-1 {
				value = center * (1 - diffusion)
				value += sb.data[i-1] * (diffusion * 0.25)
				value += sb.data[i+1] * (diffusion * 0.25)
				value += sb.data[i-w] * (diffusion * 0.25)
				value += sb.data[i+w] * (diffusion * 0.25)
			}
			value *= 1 - evaporation
			if value < 0 {
				value = 0
			}
			db.data[i] = value
		}
	}
	return nil
}
