// Command textnet builds a net from a JSON model or a checkpoint, trains or
// evaluates it and optionally saves a checkpoint.
//
// Usage:
//
//	textnet [flags] <model.json|checkpoint>
//
// Flags:
//
//	-device cpu|gpu    compute backend (default cpu)
//	-nettype Train|Test
//	-param path        load parameters from a checkpoint after setup
//	-save path         checkpoint written periodically and after the run
//	-iters N           override max_iters
//	-half              store checkpoints in float16
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/textnet-ml/textnet/internal/backend/cpu"
	"github.com/textnet-ml/textnet/internal/layer"
	"github.com/textnet-ml/textnet/internal/net"
	"github.com/textnet-ml/textnet/internal/tensor"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks command line mistakes, reported with exit status 2.
var errUsage = errors.New("usage")

type options struct {
	model    string
	device   tensor.Device
	netType  string
	param    string
	save     string
	iters    int
	half     bool
	progress io.Writer
}

func parseOptions(fs *flag.FlagSet, args []string) (options, error) {
	device := fs.String("device", "cpu", "compute backend: cpu or gpu")
	netType := fs.String("nettype", net.TagTrain, "net phase: Train or Test")
	param := fs.String("param", "", "checkpoint to load parameters from")
	save := fs.String("save", "", "checkpoint path")
	iters := fs.Int("iters", 0, "override max_iters when > 0")
	half := fs.Bool("half", false, "store checkpoints in float16")
	if err := fs.Parse(args); err != nil {
		return options{}, errors.Wrap(errUsage, err.Error())
	}

	opts := options{param: *param, save: *save, iters: *iters, half: *half, netType: *netType}
	if fs.NArg() != 1 {
		return opts, errors.Wrap(errUsage, "expected exactly one model or checkpoint path")
	}
	opts.model = fs.Arg(0)
	d, err := tensor.ParseDevice(*device)
	if err != nil {
		return opts, errors.Wrap(errUsage, err.Error())
	}
	opts.device = d
	if opts.netType != net.TagTrain && opts.netType != net.TagTest {
		return opts, errors.Wrapf(errUsage, "-nettype must be %s or %s, got %q", net.TagTrain, net.TagTest, opts.netType)
	}
	if opts.iters < 0 {
		return opts, errors.Wrapf(errUsage, "-iters must be >= 0, got %d", opts.iters)
	}
	return opts, nil
}

// loadModel reads a JSON net configuration, or the configuration stored in a
// checkpoint. The second result is the checkpoint to restore, if any.
func loadModel(path string) (*net.Config, string, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		cfg, err := net.LoadConfig(path)
		return cfg, "", err
	}
	cfg, _, err := net.ReadCheckpoint(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func execute(ctx context.Context, opts options) error {
	switch opts.device {
	case tensor.WebGPU:
		return runGPU(ctx, opts)
	default:
		return run(ctx, cpu.New(), opts)
	}
}

func run[B tensor.Backend](ctx context.Context, backend B, opts options) error {
	cfg, checkpoint, err := loadModel(opts.model)
	if err != nil {
		return err
	}
	if opts.param != "" {
		checkpoint = opts.param
	}

	n, err := net.New(cfg, layer.NewRegistry[B](), backend, opts.netType)
	if err != nil {
		return err
	}
	if err := n.Setup(rand.New(rand.NewSource(cfg.Seed))); err != nil { //nolint:gosec // G404: reproducible initialization.
		return err
	}
	if checkpoint != "" {
		if err := n.Load(checkpoint); err != nil {
			return err
		}
	}
	klog.Info(n.Summary())

	trainer := net.NewTrainer(n, net.TrainerOptions{
		Iters:    opts.iters,
		SavePath: opts.save,
		Float16:  opts.half,
		Progress: opts.progress,
	})
	res, runErr := trainer.Run(ctx)
	if res.Iters > 0 {
		klog.Infof("%s: %d steps, last mean loss %.6f", cfg.NetName, res.Iters, res.LastMean)
	}
	if opts.save != "" && n.Training() && res.Iters > 0 {
		if err := n.Save(opts.save, net.SaveOptions{Float16: opts.half, Iteration: res.Iters}); err != nil {
			return err
		}
	}
	return runErr
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <model.json|checkpoint>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	opts, err := parseOptions(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(exitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = execute(ctx, opts)
	stop()
	klog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "textnet: %+v\n", err)
		os.Exit(exitError)
	}
	os.Exit(exitOK)
}
