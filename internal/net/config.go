package net

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/setting"
)

// Layer tags select which layers a net instance contains. Untagged layers
// belong to every net.
const (
	TagTrain = "Train"
	TagTest  = "Test"
)

// LayerConfig declares one layer of a net.
type LayerConfig struct {
	Name     string      `json:"layer_name"`
	Type     string      `json:"layer_type"`
	Tag      string      `json:"tag,omitempty"`
	Bottoms  []string    `json:"bottom_nodes,omitempty"`
	Tops     []string    `json:"top_nodes"`
	PropGrad []bool      `json:"prop_grad,omitempty"`
	Setting  setting.Map `json:"setting,omitempty"`
}

// Config is the JSON description of a net and its training schedule.
type Config struct {
	NetName         string        `json:"net_name"`
	MaxIters        int           `json:"max_iters"`
	DisplayInterval int           `json:"display_interval"`
	SaveInterval    int           `json:"save_interval"`
	Seed            int64         `json:"seed"`
	ShowInfo        bool          `json:"show_info"`
	Layers          []LayerConfig `json:"layers"`
}

// LoadConfig reads and validates a net configuration file.
func LoadConfig(path string) (*Config, error) {
	//nolint:gosec // G304: model paths come from the command line.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read net config")
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "net config %s", path)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a net configuration. Unknown top-level
// or layer keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	cfg := &Config{DisplayInterval: 1}
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the schedule values and that layer names are unique.
// Node wiring is checked when a net is built.
func (c *Config) Validate() error {
	if c.MaxIters < 0 || c.DisplayInterval < 1 || c.SaveInterval < 0 {
		return errors.Errorf("max_iters (%d) and save_interval (%d) must be >= 0, display_interval (%d) >= 1",
			c.MaxIters, c.SaveInterval, c.DisplayInterval)
	}
	if len(c.Layers) == 0 {
		return errors.New("no layers")
	}
	seen := make(map[string]bool, len(c.Layers))
	for i, l := range c.Layers {
		if l.Name == "" || l.Type == "" {
			return errors.Errorf("layer %d: layer_name and layer_type are required", i)
		}
		if seen[l.Name] {
			return errors.Errorf("layer %d: duplicate layer_name %q", i, l.Name)
		}
		seen[l.Name] = true
		switch l.Tag {
		case "", TagTrain, TagTest:
		default:
			return errors.Errorf("layer %q: tag %q, want %q, %q or empty", l.Name, l.Tag, TagTrain, TagTest)
		}
	}
	return nil
}

// Marshal encodes the configuration as JSON, for checkpoint metadata.
func (c *Config) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	return data, errors.Wrap(err, "encode net config")
}
