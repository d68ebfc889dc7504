package net

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/textnet-ml/textnet/internal/layer"
	"github.com/textnet-ml/textnet/internal/serialization"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// Checkpoint metadata keys.
const (
	MetaConfig    = "net_config"
	MetaIteration = "iteration"
	MetaBackend   = "backend"
)

// SaveOptions configures Save.
type SaveOptions struct {
	// Float16 stores parameter values in half precision. Updater state is
	// then omitted, since step counters and second moments do not survive
	// the conversion.
	Float16 bool

	// Iteration is recorded in the metadata.
	Iteration int
}

func paramKey(layerName string, i int) string { return fmt.Sprintf("%s.%d", layerName, i) }

// StateDict returns a copy of every parameter value keyed "<layer_name>.<index>".
func (n *Net[B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	n.eachParam(func(key string, p *layer.Parameter[B]) {
		out[key] = p.Snapshot()
	})
	return out
}

// updaterState returns the running state of every updater keyed
// "<layer_name>.<index>.<buffer>".
func (n *Net[B]) updaterState() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	n.eachParam(func(key string, p *layer.Parameter[B]) {
		if u := p.Updater(); u != nil {
			for name, buf := range u.StateDict() {
				out[key+"."+name] = buf.Clone()
			}
		}
	})
	return out
}

func (n *Net[B]) eachParam(f func(key string, p *layer.Parameter[B])) {
	for _, e := range n.entries {
		for i, p := range e.layer.Params() {
			f(paramKey(e.cfg.Name, i), p)
		}
	}
}

// LoadStateDict restores parameter values. Every parameter of the net must
// be present with its shape. Updater state ("<key>.<buffer>" entries) is
// restored when present.
func (n *Net[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	var err error
	n.eachParam(func(key string, p *layer.Parameter[B]) {
		if err != nil {
			return
		}
		raw, ok := stateDict[key]
		if !ok {
			err = errors.Errorf("checkpoint has no parameter %q", key)
			return
		}
		if err = p.Restore(raw); err != nil {
			return
		}
		u := p.Updater()
		if u == nil {
			return
		}
		state := make(map[string]*tensor.RawTensor)
		for name, buf := range stateDict {
			if rest, found := strings.CutPrefix(name, key+"."); found {
				state[rest] = buf
			}
		}
		if len(state) > 0 {
			err = errors.Wrapf(u.LoadStateDict(state), "updater state of %q", key)
		}
	})
	return err
}

// Save writes the parameters, updater state and the net configuration to path.
func (n *Net[B]) Save(path string, opts SaveOptions) error {
	cfgJSON, err := n.cfg.Marshal()
	if err != nil {
		return err
	}
	stateDict := n.StateDict()
	if !opts.Float16 {
		for k, v := range n.updaterState() {
			stateDict[k] = v
		}
	}
	meta := map[string]string{
		MetaConfig:    string(cfgJSON),
		MetaIteration: fmt.Sprint(opts.Iteration),
		MetaBackend:   n.backend.Name(),
	}

	w, err := serialization.NewWriter(path, serialization.WriteOptions{Float16: opts.Float16})
	if err != nil {
		return err
	}
	if err := w.WriteStateDict(stateDict, meta); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "save %s", path)
	}
	if err := w.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		klog.Infof("saved %s (%s, iteration %d)", path, humanize.Bytes(uint64(info.Size())), opts.Iteration) //nolint:gosec // G115: file sizes are non-negative.
	}
	return nil
}

// Load restores parameters (and updater state when present) from path.
func (n *Net[B]) Load(path string) error {
	r, err := serialization.NewReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	stateDict, err := r.ReadStateDict()
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := n.LoadStateDict(stateDict); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	klog.Infof("loaded %s (%d tensors)", path, len(stateDict))
	return nil
}

// ReadCheckpoint reads the net configuration stored in a checkpoint along
// with its tensors, so a net can be rebuilt from the checkpoint alone.
func ReadCheckpoint(path string) (*Config, map[string]*tensor.RawTensor, error) {
	r, err := serialization.NewReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = r.Close() }()

	stateDict, err := r.ReadStateDict()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read %s", path)
	}
	raw, ok := r.Metadata()[MetaConfig]
	if !ok {
		return nil, nil, errors.Errorf("%s: no net configuration in checkpoint", path)
	}
	cfg, err := ParseConfig([]byte(raw))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s: stored net configuration", path)
	}
	return cfg, stateDict, nil
}
