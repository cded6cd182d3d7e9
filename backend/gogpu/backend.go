//go:build !nogpu

package gogpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gogpu/gpu"
	"github.com/gogpu/gogpu/gpu/types"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/instbatch"
	"github.com/gogpu/instbatch/backend"
	"github.com/gogpu/instbatch/gpucore"
)

// Backend is a GPU device backend using gogpu/gogpu.
// It implements the backend.GPUBackend interface.
//
// Backend is safe for concurrent use from multiple goroutines.
type Backend struct {
	mu sync.RWMutex

	// GPU resources via gogpu
	gpuBackend gpu.Backend
	instance   types.Instance
	adapter    types.Adapter
	device     types.Device
	queue      types.Queue

	dev *Device

	// State
	initialized bool
}

// init registers the gogpu backend on package import.
func init() {
	backend.Register(backend.BackendGoGPU, func() backend.GPUBackend {
		return &Backend{}
	})
}

// NewBackend creates a new gogpu device backend.
// The backend must be initialized with Init() before use.
func NewBackend() *Backend {
	return &Backend{}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return backend.BackendGoGPU
}

// Init initializes the backend by creating GPU resources:
// the active gogpu backend (Rust or Pure Go), a WebGPU instance, a GPU
// adapter, a logical device, and the command queue.
//
// Returns an error if GPU initialization fails.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	// Step 1: Get gogpu backend
	gpuBackend := gpu.GetBackend()
	if gpuBackend == nil {
		// Try to initialize default backend
		if err := gpu.InitDefaultBackend(); err != nil {
			return fmt.Errorf("%w: %w", ErrNoGPUBackend, err)
		}
		gpuBackend = gpu.GetBackend()
	}
	if gpuBackend == nil {
		return ErrNoGPUBackend
	}
	b.gpuBackend = gpuBackend

	// Step 2: Create Instance
	instance, err := gpuBackend.CreateInstance()
	if err != nil {
		return fmt.Errorf("instance creation failed: %w", err)
	}
	b.instance = instance

	// Step 3: Request Adapter (prefer high performance GPU)
	adapter, err := gpuBackend.RequestAdapter(instance, &types.AdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoGPUBackend, err)
	}
	b.adapter = adapter

	// Step 4: Create Device
	device, err := gpuBackend.RequestDevice(adapter, &types.DeviceOptions{
		Label: "instbatch-gogpu-device",
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceCreationFailed, err)
	}
	b.device = device

	// Step 5: Get Queue
	b.queue = gpuBackend.GetQueue(device)

	b.dev = NewDevice(gpuBackend, device, b.queue)
	b.initialized = true

	instbatch.Logger().Info("gogpu: backend initialized", "gpu", gpuBackend.Name())
	return nil
}

// Close releases all backend resources.
// The backend should not be used after Close is called.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}

	if b.dev != nil {
		b.dev.Close()
		b.dev = nil
	}

	// Device/adapter/instance handles are managed by the gogpu backend
	// and released when it is destroyed.
	b.initialized = false
}

// Device returns the backend's device.
func (b *Backend) Device() (gpucore.Device, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return b.dev, nil
}
