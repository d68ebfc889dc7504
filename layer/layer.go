// Copyright 2025 The textnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package layer

import (
	"github.com/textnet-ml/textnet/internal/layer"
	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/tensor"
)

// Layer is the contract shared by every layer type.
type Layer[B tensor.Backend] = layer.Layer[B]

// Node is a named value/gradient pair with an optional length vector.
type Node[B tensor.Backend] = layer.Node[B]

// Parameter is a learnable node with its initializer and updater.
type Parameter[B tensor.Backend] = layer.Parameter[B]

// Registry maps layer type names to constructors.
type Registry[B tensor.Backend] = layer.Registry[B]

// Constructor creates an unconfigured layer.
type Constructor[B tensor.Backend] = layer.Constructor[B]

// TextPair is one labelled example read by the text_pair_data layer.
type TextPair = layer.TextPair

// Built-in layer type names.
const (
	TypeMatchWeightedDot = layer.TypeMatchWeightedDot
	TypeEmbedding        = layer.TypeEmbedding
	TypeMaxPooling       = layer.TypeMaxPooling
	TypeFC               = layer.TypeFC
	TypeEuclidLoss       = layer.TypeEuclidLoss
	TypeTextPairData     = layer.TypeTextPairData
)

// Errors returned by Setup, Reshape and Registry.New.
var (
	ErrNodeCount     = layer.ErrNodeCount
	ErrShapeMismatch = layer.ErrShapeMismatch
	ErrUnknownType   = layer.ErrUnknownType
	ErrNoLength      = layer.ErrNoLength
)

// NewRegistry returns a registry holding every built-in layer type.
func NewRegistry[B tensor.Backend]() *Registry[B] {
	return layer.NewRegistry[B]()
}

// NewNode creates an empty node.
func NewNode[B tensor.Backend](name string, backend B) *Node[B] {
	return layer.NewNode(name, backend)
}

// Settings holds the typed configuration of a layer.
type Settings = setting.Map

// Value is one typed setting.
type Value = setting.Value

// Setting value constructors.
var (
	IntValue    = setting.IntValue
	BoolValue   = setting.BoolValue
	FloatValue  = setting.FloatValue
	StringValue = setting.StringValue
	MapValue    = setting.MapValue
)
