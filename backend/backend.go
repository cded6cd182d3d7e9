// Package backend provides pluggable GPU device backends for instbatch.
//
// Backends register themselves via Register, typically from init()
// functions. The software backend in this package registers itself on
// import and is the fallback; GPU backends live in subpackages and are
// enabled by importing them:
//
//	import _ "github.com/gogpu/instbatch/backend/native" // gogpu/wgpu
//	import _ "github.com/gogpu/instbatch/backend/gogpu"  // gogpu/gogpu
package backend

import (
	"errors"

	"github.com/gogpu/instbatch/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when Device is called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// GPUBackend is the interface device backends implement. A backend
// owns the GPU API bring-up (instance, adapter, device, queue) and
// hands out a gpucore.Device the batching core allocates buffers from.
type GPUBackend interface {
	// Name returns the backend identifier (e.g. "software", "native").
	Name() string

	// Init initializes the backend. Must be called before Device.
	Init() error

	// Close releases all backend resources, including any devices it
	// handed out. The backend must not be used after Close.
	Close()

	// Device returns the backend's device. Fails with ErrNotInitialized
	// before Init.
	Device() (gpucore.Device, error)
}
