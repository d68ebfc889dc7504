// Copyright 2025 The textnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package net assembles layers into a net from a JSON configuration, runs
// training steps and saves checkpoints.
//
// Example:
//
//	cfg, err := net.LoadConfig("examples/matching/model.json")
//	backend := cpu.New()
//	n, err := net.New(cfg, layer.NewRegistry[*cpu.Backend](), backend, net.TagTrain)
//	err = n.Setup(rand.New(rand.NewSource(cfg.Seed)))
//	res, err := net.NewTrainer(n, net.TrainerOptions{}).Run(ctx)
//	err = n.Save("model.txnt", net.SaveOptions{Iteration: res.Iters})
package net

import (
	"github.com/textnet-ml/textnet/internal/net"
	"github.com/textnet-ml/textnet/layer"
	"github.com/textnet-ml/textnet/tensor"
)

// Layer tags.
const (
	TagTrain = net.TagTrain
	TagTest  = net.TagTest
)

// Config is the JSON description of a net and its training schedule.
type Config = net.Config

// LayerConfig declares one layer of a net.
type LayerConfig = net.LayerConfig

// Net is a DAG of layers connected through named nodes.
type Net[B tensor.Backend] = net.Net[B]

// SaveOptions configures Net.Save.
type SaveOptions = net.SaveOptions

// Trainer drives a net for a fixed number of steps.
type Trainer[B tensor.Backend] = net.Trainer[B]

// TrainerOptions configures a Trainer.
type TrainerOptions = net.TrainerOptions

// Result summarizes a trainer run.
type Result = net.Result

// ErrNotReady is returned by Step before a successful Setup.
var ErrNotReady = net.ErrNotReady

// LoadConfig reads and validates a net configuration file.
func LoadConfig(path string) (*Config, error) { return net.LoadConfig(path) }

// ParseConfig decodes and validates a net configuration.
func ParseConfig(data []byte) (*Config, error) { return net.ParseConfig(data) }

// New builds the layers of cfg tagged for tag.
func New[B tensor.Backend](cfg *Config, registry *layer.Registry[B], backend B, tag string) (*Net[B], error) {
	return net.New(cfg, registry, backend, tag)
}

// NewTrainer creates a trainer for a net that has been set up.
func NewTrainer[B tensor.Backend](n *Net[B], opts TrainerOptions) *Trainer[B] {
	return net.NewTrainer(n, opts)
}

// ReadCheckpoint returns the configuration and parameters stored in a
// checkpoint.
func ReadCheckpoint(path string) (*Config, map[string]*tensor.RawTensor, error) {
	return net.ReadCheckpoint(path)
}
