//go:build !windows

package main

import (
	"context"

	"github.com/pkg/errors"
)

func runGPU(context.Context, options) error {
	return errors.New("gpu device: WebGPU backend is only built on windows")
}
