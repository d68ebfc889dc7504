//go:build windows

// Copyright 2025 The textnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package webgpu

import (
	internalwebgpu "github.com/textnet-ml/textnet/internal/backend/webgpu"
	"github.com/textnet-ml/textnet/tensor"
)

// Backend is the WebGPU backend.
type Backend = internalwebgpu.Backend

var _ tensor.Backend = (*Backend)(nil)

// New initializes a WebGPU device. Call Release when done.
//
// Returns an error if no compatible adapter is found.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable reports whether a WebGPU adapter can be obtained.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
