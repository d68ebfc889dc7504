// Copyright 2025 The textnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go backend.
//
// Kernels partition their work by destination element across goroutines, so
// results do not depend on the number of workers.
//
// Example:
//
//	backend := cpu.New()
//	registry := layer.NewRegistry[*cpu.Backend]()
package cpu

import (
	internalcpu "github.com/textnet-ml/textnet/internal/backend/cpu"
	"github.com/textnet-ml/textnet/internal/parallel"
	"github.com/textnet-ml/textnet/tensor"
)

// Backend is the CPU backend.
type Backend = internalcpu.CPUBackend

var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend using every available core.
func New() *Backend {
	return internalcpu.New()
}

// NewSequential creates a CPU backend that runs every kernel on the calling
// goroutine.
func NewSequential() *Backend {
	return internalcpu.NewWithConfig(parallel.Sequential())
}
