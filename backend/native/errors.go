// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

// Package errors for the native backend.
var (
	// ErrNoGPUBackend is returned when no wgpu HAL backend is available.
	ErrNoGPUBackend = errors.New("native: no GPU backend available")

	// ErrNoAdapter is returned when no GPU adapter is found.
	ErrNoAdapter = errors.New("native: no GPU adapters found")

	// ErrDeviceCreationFailed is returned when GPU device creation fails.
	ErrDeviceCreationFailed = errors.New("native: device creation failed")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("native: backend not initialized")

	// ErrReadbackUnsupported is returned by ReadBuffer; the batching
	// core never reads GPU buffers back, so the staging path is not
	// implemented here.
	ErrReadbackUnsupported = errors.New("native: buffer readback not supported")
)
