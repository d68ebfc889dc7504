// Copyright 2025 The textnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the host tensor types and the backend capability
// interface used by textnet layers.
//
// # Overview
//
// Every node and parameter of a net is a rank-4 float32 Tensor bound to a
// Backend. The backend owns the kernels: fill, axpy, the element-wise
// activations and the weighted match between two sequences. Tensors always
// live in host memory, so a layer runs unchanged on any backend.
//
// # Basic Usage
//
//	import (
//	    "github.com/textnet-ml/textnet/backend/cpu"
//	    "github.com/textnet-ml/textnet/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 1, 8, 16}, backend)
//	    x.Set(1.5, 0, 0, 3, 7)
//	}
package tensor
