// Copyright 2025 The textnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/textnet-ml/textnet/internal/tensor"

// Backend is the kernel set every compute backend implements.
//
// Implementations:
//   - backend/cpu: pure Go, parallel over destination rows
//   - backend/webgpu: WGSL compute shaders through WebGPU
type Backend = tensor.Backend

// Activation selects an element-wise function.
type Activation = tensor.Activation

// Activation kinds.
const (
	Identity = tensor.Identity
	Sigmoid  = tensor.Sigmoid
	Tanh     = tensor.Tanh
	ReLU     = tensor.ReLU
	Softplus = tensor.Softplus
)

// Activations lists every activation kind.
func Activations() []Activation { return tensor.Activations() }

// MatchWindow is the index set visited by the match kernels: per batch row
// lengths of both sequences and the position stride.
type MatchWindow = tensor.MatchWindow
