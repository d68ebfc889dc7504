// Copyright 2025 The textnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package layer provides the textnet layer contract, the built-in layer
// types and the registry that constructs them by name.
//
// A layer reads bottom nodes and writes top nodes. Each node carries a
// value tensor, a gradient tensor of the same shape and, for sequence
// data, a per batch row length vector. Layers own their parameters; the
// updater bound to each parameter applies the accumulated gradient.
//
// Built-in types:
//   - identity, sigmoid, tanh, relu, softplus: element-wise activations
//   - match_weighted_dot: weighted dot product match between two sequences
//   - embedding, max_pooling, fc, euclid_loss, text_pair_data
//
// Example:
//
//	backend := cpu.New()
//	registry := layer.NewRegistry[*cpu.Backend]()
//	match, err := registry.New(layer.TypeMatchWeightedDot, backend)
//	settings := layer.Settings{
//	    "d1":        layer.IntValue(16),
//	    "is_var_len": layer.BoolValue(true),
//	    "w_filler":  layer.MapValue(layer.Settings{"init_type": layer.StringValue("xavier")}),
//	    "w_updater": layer.MapValue(layer.Settings{
//	        "updater_type": layer.StringValue("adam"),
//	        "lr":           layer.FloatValue(0.01),
//	    }),
//	}
//	err = match.Setup(settings, bottom, top, rand.New(rand.NewSource(1)))
package layer
