//go:build windows

package main

import (
	"context"

	"github.com/textnet-ml/textnet/internal/backend/webgpu"
)

func runGPU(ctx context.Context, opts options) error {
	gpu, err := webgpu.New()
	if err != nil {
		return err
	}
	defer gpu.Release()
	return run(ctx, gpu, opts)
}
