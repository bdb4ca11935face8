// Package compute offloads the per-tick diffusion passes to a compute
// device behind a ping-pong buffer scheme. The dynamic library loader
// that binds a vendor OpenCL implementation lives with the host; the
// runtime here only consumes the Device interface, and a reference
// in-process device is provided for hosts without a loader.
package compute

import (
	"errors"
	"fmt"
)

// KernelSource is the diffusion kernel text handed to Device.BuildProgram.
// Its semantics are the reference diffuse-and-evaporate pass: interior
// cells take a 5-point stencil, border cells keep their center value, and
// every result is evaporated and clamped to be non-negative.
const KernelSource = `
__kernel void diffuse_evaporate(__global const float *src,
                                __global float *dst,
                                const int width,
                                const int height,
                                const float diffusion,
                                const float evaporation) {
    int x = get_global_id(0);
    int y = get_global_id(1);
    if (x >= width || y >= height) return;
    int i = y * width + x;
    float center = src[i];
    float value = center;
    if (x > 0 && x < width - 1 && y > 0 && y < height - 1) {
        value = center * (1.0f - diffusion);
        value += src[i - 1] * (diffusion * 0.25f);
        value += src[i + 1] * (diffusion * 0.25f);
        value += src[i - width] * (diffusion * 0.25f);
        value += src[i + width] * (diffusion * 0.25f);
    }
    value *= (1.0f - evaporation);
    dst[i] = max(0.0f, value);
}
`

// DiffuseKernelName is the kernel entry point built from KernelSource.
const DiffuseKernelName = "diffuse_evaporate"

// Buffer is an opaque device allocation.
type Buffer interface {
	ByteSize() int
	Release()
}

// Kernel is a compiled diffusion kernel.
type Kernel interface {
	// Dispatch runs one pass over a w×h grid reading src and writing dst.
	Dispatch(w, h int, src, dst Buffer, diffusion, evaporation float32) error
}

// Program is a compiled program from which kernels are created.
type Program interface {
	Kernel(name string) (Kernel, error)
}

// Device is the surface the runtime consumes. All operations are
// synchronous: Finish returns once prior dispatches are visible to reads.
type Device interface {
	Name() string
	CreateBuffer(byteSize int) (Buffer, error)
	WriteBuffer(b Buffer, src []float32) error
	ReadBuffer(b Buffer, dst []float32) error
	BuildProgram(source string) (Program, error)
	Finish() error
	Release()
}

// PlatformInfo describes one selectable platform and its devices.
type PlatformInfo struct {
	Name    string
	Devices []string
}

// ErrNoSuchDevice is returned when a platform or device index is out of
// range for the registered platforms.
var ErrNoSuchDevice = errors.New("compute: no such platform or device")

// Opener binds a platform/device pair to a Device. Hosts with a dynamic
// loader register their own; the default opens the reference device.
type Opener func(platform, device int) (Device, error)

var (
	platforms  = []PlatformInfo{{Name: "reference", Devices: []string{"cpu-sim"}}}
	openDevice Opener = func(platform, device int) (Device, error) {
		if platform != 0 || device != 0 {
			return nil, fmt.Errorf("%w: platform %d device %d", ErrNoSuchDevice, platform, device)
		}
		return newSimDevice(), nil
	}
)

// RegisterLoader replaces the platform listing and device opener, used by
// hosts that bind a real compute library at startup.
func RegisterLoader(info []PlatformInfo, open Opener) {
	platforms = info
	openDevice = open
}

// Platforms lists the selectable platforms.
func Platforms() []PlatformInfo {
	return platforms
}

// Open binds the indexed platform/device.
func Open(platform, device int) (Device, error) {
	return openDevice(platform, device)
}
