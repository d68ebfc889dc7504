package net

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// TrainerOptions configures a Trainer.
type TrainerOptions struct {
	// Iters overrides the configured max_iters when > 0.
	Iters int

	// SavePath enables periodic checkpoints every save_interval steps.
	SavePath string

	// Float16 stores periodic checkpoints in half precision.
	Float16 bool

	// Progress receives the progress bar; nil means stderr, io.Discard hides it.
	Progress io.Writer
}

// Result summarizes a run.
type Result struct {
	Iters    int       // Completed steps
	Losses   []float64 // Loss of every completed step
	LastMean float64   // Mean loss of the last display window
}

// Trainer drives a net for a fixed number of steps.
type Trainer[B tensor.Backend] struct {
	net  *Net[B]
	opts TrainerOptions
}

// NewTrainer creates a trainer for a net that has been set up.
func NewTrainer[B tensor.Backend](net *Net[B], opts TrainerOptions) *Trainer[B] {
	return &Trainer[B]{net: net, opts: opts}
}

// Run executes the steps, training when the net was built for TagTrain.
// It logs the mean loss every display_interval steps and stops between steps
// when ctx is cancelled, returning the partial result with ctx's error.
func (t *Trainer[B]) Run(ctx context.Context) (Result, error) {
	cfg := t.net.Config()
	iters := cfg.MaxIters
	if t.opts.Iters > 0 {
		iters = t.opts.Iters
	}
	train := t.net.Training()

	out := t.opts.Progress
	if out == nil {
		out = os.Stderr
	}
	bar := progressbar.NewOptions(iters,
		progressbar.OptionSetDescription(fmt.Sprintf("%s %s", cfg.NetName, t.net.Tag())),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)
	defer func() { _ = bar.Finish() }()

	res := Result{Losses: make([]float64, 0, iters)}
	var window float64
	var windowLen int
	for i := 0; i < iters; i++ {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrapf(err, "stopped after %d steps", res.Iters)
		}
		loss, err := t.net.Step(train)
		if err != nil {
			return res, errors.Wrapf(err, "step %d", i)
		}
		res.Iters++
		res.Losses = append(res.Losses, loss)
		window += loss
		windowLen++
		_ = bar.Add(1)

		if res.Iters%cfg.DisplayInterval == 0 || res.Iters == iters {
			res.LastMean = window / float64(windowLen)
			bar.Describe(fmt.Sprintf("%s %s loss %.6f", cfg.NetName, t.net.Tag(), res.LastMean))
			klog.Infof("%s iter %d: mean loss %.6f", t.net.Tag(), res.Iters, res.LastMean)
			window, windowLen = 0, 0
		}
		if train && cfg.SaveInterval > 0 && t.opts.SavePath != "" && res.Iters%cfg.SaveInterval == 0 {
			if err := t.net.Save(t.opts.SavePath, SaveOptions{Float16: t.opts.Float16, Iteration: res.Iters}); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}
