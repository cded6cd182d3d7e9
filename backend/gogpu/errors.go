// Package gogpu provides a GPU device backend for instbatch using the
// gogpu/gogpu framework.
//
// This backend uses gogpu's gpu.Backend interface, which supports both
// Rust (wgpu-native) and Pure Go (gogpu/wgpu) implementations. Users can
// select the underlying GPU backend by importing the appropriate package:
//
//	import _ "github.com/gogpu/gogpu/gpu/backend/rust"   // Rust backend
//	import _ "github.com/gogpu/gogpu/gpu/backend/native" // Pure Go backend
package gogpu

import "errors"

// Package errors for gogpu backend.
var (
	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("gogpu: backend not initialized")

	// ErrNoGPUBackend is returned when no GPU backend is available.
	ErrNoGPUBackend = errors.New("gogpu: no GPU backend available")

	// ErrDeviceCreationFailed is returned when GPU device creation fails.
	ErrDeviceCreationFailed = errors.New("gogpu: device creation failed")

	// ErrReadbackUnsupported is returned by ReadBuffer; gpu.Backend does
	// not expose buffer readback.
	ErrReadbackUnsupported = errors.New("gogpu: buffer readback not supported")
)
