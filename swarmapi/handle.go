// Package swarmapi exposes the simulation to external hosts through an
// opaque handle surface mirroring the C ABI. Every operation runs
// synchronously on the caller's thread, tolerates the null handle, and
// never panics across the boundary; failures surface as sentinel returns.
package swarmapi

import (
	"sync"

	"github.com/ralfKruemmelPython/micro-swarm/sim"
)

// API version of the handle surface.
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// Handle is a process-local token naming one simulation context.
// NullHandle never resolves.
type Handle int64

// NullHandle is the zero handle; every operation treats it as a no-op.
const NullHandle Handle = 0

var registry = struct {
	sync.Mutex
	next     Handle
	contexts map[Handle]*sim.Simulation
}{
	next:     1,
	contexts: make(map[Handle]*sim.Simulation),
}

func register(s *sim.Simulation) Handle {
	registry.Lock()
	defer registry.Unlock()
	h := registry.next
	registry.next++
	registry.contexts[h] = s
	return h
}

func resolve(h Handle) *sim.Simulation {
	if h == NullHandle {
		return nil
	}
	registry.Lock()
	defer registry.Unlock()
	return registry.contexts[h]
}

func unregister(h Handle) {
	registry.Lock()
	defer registry.Unlock()
	delete(registry.contexts, h)
}

// Version returns the ABI version triple.
func Version() (major, minor, patch int) {
	return VersionMajor, VersionMinor, VersionPatch
}
