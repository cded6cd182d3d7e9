// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the GPU buffer abstraction instbatch is
// layered over.
//
// The batching core never talks to a GPU API directly: it allocates and
// writes buffers through the Device interface using opaque BufferIDs.
// Concrete devices live in the backend packages:
//
//	+------------------+          +-----------------+
//	|  backend/native  |          |  backend/gogpu  |
//	|  (hal.Device)    |          |  (gpu.Backend)  |
//	+------------------+          +-----------------+
//	          \                       /
//	           \                     /
//	            +---- gpucore.Device ----+
//	            |   (this abstraction)   |
//	            +------------------------+
//
// The software device in the backend package implements the same
// interface in plain memory and is the default for headless use and
// tests.
package gpucore
