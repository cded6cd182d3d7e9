// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/instbatch/gpucore"
)

// halProvider is the optional extension of gpucontext.DeviceProvider
// that exposes the underlying HAL handles. gogpu's providers implement
// it as HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewDeviceFromProvider builds a gpucore.Device over a GPU device
// shared by the host application, avoiding a second instance/device
// bring-up. The provider must implement the HAL access extension of
// gpucontext.DeviceProvider; gogpu's providers do.
//
// The returned device does not own the underlying hal device; closing
// it only releases the buffers instbatch created.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider) (gpucore.Device, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("native: provider does not expose HAL handles")
	}

	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("native: provider HalQueue is not hal.Queue")
	}

	return NewHALDevice(device, queue, nil), nil
}
