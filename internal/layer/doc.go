// Package layer implements the layer computation engine: nodes carrying data
// and gradients between layers, learned parameters, the shared Layer
// contract and the concrete layer types.
//
// Every layer follows the same per-step protocol, driven by the net:
//
//	Setup (once) → Reshape → Forward → Backprop → Parameter.Update
//
// Backprop always accumulates ("+=") into bottom gradients, so a node read by
// several layers receives the sum of their contributions. Bottoms whose
// propagate-gradient flag is off are left untouched.
//
// Layers are generic over the tensor backend: the same layer code runs on the
// CPU backend or the WebGPU backend.
package layer
