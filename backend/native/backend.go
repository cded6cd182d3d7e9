// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package native provides a Pure Go GPU device backend for instbatch
// using gogpu/wgpu.
//
// Importing this package registers the "native" backend:
//
//	import _ "github.com/gogpu/instbatch/backend/native"
package native

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/instbatch"
	"github.com/gogpu/instbatch/backend"
	"github.com/gogpu/instbatch/gpucore"
)

// Backend is a GPU device backend over gogpu/wgpu's HAL.
// It implements backend.GPUBackend.
type Backend struct {
	mu sync.Mutex

	instance hal.Instance
	device   *HALDevice

	// externalDevice is true when the hal device came from a shared
	// provider; shared resources are not destroyed on Close.
	externalDevice bool
	halDevice      hal.Device
	initialized    bool
}

// init registers the native backend on package import.
func init() {
	backend.Register(backend.BackendNative, func() backend.GPUBackend {
		return &Backend{}
	})
}

// NewBackend creates a new native backend.
// The backend must be initialized with Init() before use.
func NewBackend() *Backend {
	return &Backend{}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return backend.BackendNative
}

// Init brings up a standalone hal device: Vulkan backend, first
// suitable adapter, default limits. Used when no external device
// provider is attached; see NewDeviceFromProvider for sharing.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("%w: vulkan backend not registered", ErrNoGPUBackend)
	}

	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoGPUBackend, err)
	}
	b.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		b.instance = nil
		return ErrNoAdapter
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		b.instance = nil
		return fmt.Errorf("%w: %w", ErrDeviceCreationFailed, err)
	}

	b.halDevice = openDev.Device
	b.device = NewHALDevice(openDev.Device, openDev.Queue, nil)
	b.initialized = true

	instbatch.Logger().Info("native: GPU initialized", "adapter", selected.Info.Name)
	return nil
}

// Close releases all backend resources.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		b.device.Close()
		b.device = nil
	}
	if !b.externalDevice {
		if b.halDevice != nil {
			b.halDevice.Destroy()
			b.halDevice = nil
		}
		if b.instance != nil {
			b.instance.Destroy()
			b.instance = nil
		}
	} else {
		// Don't destroy shared resources -- we don't own them.
		b.halDevice = nil
		b.instance = nil
	}
	b.initialized = false
}

// Device returns the backend's device.
func (b *Backend) Device() (gpucore.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return b.device, nil
}
