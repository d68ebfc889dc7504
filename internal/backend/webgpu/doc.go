// Package webgpu implements the tensor.Backend capability set with WGSL
// compute shaders, using go-webgpu (github.com/go-webgpu/webgpu) for
// zero-CGO WebGPU bindings.
//
// Tensors stay in host memory. Every kernel uploads its operands, dispatches
// one compute pass and reads the destination back, so results land in the
// same RawTensor a CPU backend would have written.
//
// The bindings are only built on windows; on other platforms the package is
// empty and callers fall back to the CPU backend.
package webgpu
