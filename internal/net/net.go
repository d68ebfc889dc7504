// Package net wires layers into a runnable network: it owns the node arena,
// runs the per-step schedule and saves or restores parameters.
//
// A step is Reshape on every layer, Forward in order and, when training,
// gradient reset on every node, Backprop in reverse order and one Update per
// parameter.
package net

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/textnet-ml/textnet/internal/layer"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// ErrNotReady is returned by Step on a net whose Setup has not succeeded.
var ErrNotReady = errors.New("net is not set up")

type entry[B tensor.Backend] struct {
	cfg    LayerConfig
	layer  layer.Layer[B]
	bottom []*layer.Node[B]
	top    []*layer.Node[B]
}

// Net is a sequence of layers connected through named nodes.
type Net[B tensor.Backend] struct {
	cfg     *Config
	backend B
	tag     string
	entries []*entry[B]
	nodes   []*layer.Node[B]
	index   map[string]int
	ready   bool
	failed  error
}

// New builds the net for tag (TagTrain or TagTest) from cfg. Layers tagged
// for the other phase are skipped. Every bottom node must be produced by an
// earlier layer and no node may be produced twice.
func New[B tensor.Backend](cfg *Config, registry *layer.Registry[B], backend B, tag string) (*Net[B], error) {
	if tag != TagTrain && tag != TagTest {
		return nil, errors.Errorf("net type %q, want %q or %q", tag, TagTrain, TagTest)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Net[B]{cfg: cfg, backend: backend, tag: tag, index: make(map[string]int)}

	for _, lc := range cfg.Layers {
		if lc.Tag != "" && lc.Tag != tag {
			continue
		}
		l, err := registry.New(lc.Type, backend)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %q", lc.Name)
		}
		e := &entry[B]{cfg: lc, layer: l}
		for _, name := range lc.Bottoms {
			i, ok := n.index[name]
			if !ok {
				return nil, errors.Errorf("layer %q: bottom node %q is not produced by an earlier layer", lc.Name, name)
			}
			e.bottom = append(e.bottom, n.nodes[i])
		}
		for _, name := range lc.Tops {
			if _, ok := n.index[name]; ok {
				return nil, errors.Errorf("layer %q: node %q is produced twice", lc.Name, name)
			}
			n.index[name] = len(n.nodes)
			node := layer.NewNode(name, backend)
			n.nodes = append(n.nodes, node)
			e.top = append(e.top, node)
		}
		if lc.PropGrad != nil {
			if err := l.SetPropagateGradient(lc.PropGrad); err != nil {
				return nil, errors.Wrapf(err, "layer %q", lc.Name)
			}
		}
		l.SetShowInfo(cfg.ShowInfo)
		n.entries = append(n.entries, e)
	}
	if len(n.entries) == 0 {
		return nil, errors.Errorf("net %q has no layers for %s", cfg.NetName, tag)
	}
	return n, nil
}

// Setup runs Setup then Reshape on every layer in order, drawing parameter
// initialization from rng. Any error leaves the net unusable.
func (n *Net[B]) Setup(rng *rand.Rand) error {
	n.ready = false
	for _, e := range n.entries {
		if err := e.layer.Setup(e.cfg.Setting, e.bottom, e.top, rng); err != nil {
			n.failed = errors.Wrapf(err, "setup layer %q", e.cfg.Name)
			return n.failed
		}
		if err := e.layer.Reshape(e.bottom, e.top); err != nil {
			n.failed = errors.Wrapf(err, "reshape layer %q", e.cfg.Name)
			return n.failed
		}
		klog.V(1).Infof("%s: layer %q (%s) ready", n.cfg.NetName, e.cfg.Name, e.cfg.Type)
	}
	n.ready, n.failed = true, nil
	return nil
}

// Config returns the net configuration.
func (n *Net[B]) Config() *Config { return n.cfg }

// Tag returns the phase the net was built for.
func (n *Net[B]) Tag() string { return n.tag }

// Training reports whether Step should run the backward pass by default.
func (n *Net[B]) Training() bool { return n.tag == TagTrain }

// Layers returns the layers in execution order.
func (n *Net[B]) Layers() []layer.Layer[B] {
	out := make([]layer.Layer[B], len(n.entries))
	for i, e := range n.entries {
		out[i] = e.layer
	}
	return out
}

// Node returns the named node, or nil.
func (n *Net[B]) Node(name string) *layer.Node[B] {
	i, ok := n.index[name]
	if !ok {
		return nil
	}
	return n.nodes[i]
}

// Step runs one iteration and returns the summed value of every loss layer.
// With train the gradients are recomputed and every parameter is updated
// exactly once. A reshape failure leaves the net unusable, as in Setup.
func (n *Net[B]) Step(train bool) (float64, error) {
	if !n.ready {
		if n.failed != nil {
			return 0, errors.Wrap(ErrNotReady, n.failed.Error())
		}
		return 0, ErrNotReady
	}
	for _, e := range n.entries {
		if err := e.layer.Reshape(e.bottom, e.top); err != nil {
			n.ready = false
			n.failed = errors.Wrapf(err, "reshape layer %q", e.cfg.Name)
			return 0, n.failed
		}
	}
	var loss float64
	for _, e := range n.entries {
		e.layer.Forward(e.bottom, e.top)
		if isLoss(e.cfg.Type) {
			loss += float64(e.top[0].Data().Data()[0])
		}
	}
	if !train {
		return loss, nil
	}

	for _, node := range n.nodes {
		node.ZeroDiff()
	}
	for i := len(n.entries) - 1; i >= 0; i-- {
		e := n.entries[i]
		e.layer.Backprop(e.bottom, e.top)
	}
	for _, e := range n.entries {
		for _, p := range e.layer.Params() {
			p.Update()
		}
	}
	return loss, nil
}

func isLoss(layerType string) bool { return strings.HasSuffix(layerType, "_loss") }

// NumParams returns the number of learned values.
func (n *Net[B]) NumParams() int {
	var total int
	for _, e := range n.entries {
		for _, p := range e.layer.Params() {
			total += p.Shape().NumElements()
		}
	}
	return total
}

// Summary describes every layer's output shapes and the parameter budget.
func (n *Net[B]) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "net %q (%s, %s):\n", n.cfg.NetName, n.tag, n.backend.Name())
	for _, e := range n.entries {
		shapes := make([]string, len(e.top))
		for i, t := range e.top {
			shapes[i] = fmt.Sprintf("%s%v", t.Name(), t.Shape())
		}
		var params int
		for _, p := range e.layer.Params() {
			params += p.Shape().NumElements()
		}
		fmt.Fprintf(&sb, "  %-20s %-20s -> %s", e.cfg.Name, e.cfg.Type, strings.Join(shapes, ", "))
		if params > 0 {
			fmt.Fprintf(&sb, "  (%s params)", humanize.Comma(int64(params)))
		}
		sb.WriteByte('\n')
	}
	total := n.NumParams()
	fmt.Fprintf(&sb, "  total: %s parameters, %s\n",
		humanize.Comma(int64(total)), humanize.Bytes(uint64(total)*4)) //nolint:gosec // G115: non-negative.
	return sb.String()
}
