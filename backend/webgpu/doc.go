// Copyright 2025 The textnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend.
//
// The backend is built on windows, where go-webgpu loads wgpu_native.
// Every kernel uploads its operands, dispatches a WGSL compute shader and
// reads the result back into host memory, so layers run unchanged on it.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gpu.Release()
//	registry := layer.NewRegistry[*webgpu.Backend]()
package webgpu
