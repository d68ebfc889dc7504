package setting

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrMissingRequired is returned when a required setting is absent.
	ErrMissingRequired = errors.New("missing required setting")

	// ErrWrongKind is returned when a setting has an unexpected type.
	ErrWrongKind = errors.New("setting has wrong kind")
)

// Field declares one setting accepted by a layer type.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Default  Value
}

// Required declares a setting that must be present.
func Required(name string, kind Kind) Field {
	return Field{Name: name, Kind: kind, Required: true}
}

// Optional declares a setting that falls back to def when absent.
func Optional(name string, def Value) Field {
	return Field{Name: name, Kind: def.Kind(), Default: def}
}

// Schema lists the settings a layer type understands.
type Schema []Field

// Resolve validates m against the schema and returns a new map holding every
// declared field: the given value, or the default for optional fields.
// Ints are accepted (and converted) where floats are declared. Keys the
// schema does not declare are logged and dropped.
func (s Schema) Resolve(m Map) (Map, error) {
	out := make(Map, len(s))
	known := make(map[string]bool, len(s))
	for _, f := range s {
		known[f.Name] = true
		v, ok := m[f.Name]
		if !ok {
			if f.Required {
				return nil, errors.Wrapf(ErrMissingRequired, "%q (%s)", f.Name, f.Kind)
			}
			out[f.Name] = f.Default
			continue
		}
		switch {
		case v.Kind() == f.Kind:
		case v.Kind() == Int && f.Kind == Float:
			v = FloatValue(float64(v.Int()))
		default:
			return nil, errors.Wrapf(ErrWrongKind, "%q is %s, want %s", f.Name, v.Kind(), f.Kind)
		}
		out[f.Name] = v
	}
	for _, k := range m.Keys() {
		if !known[k] {
			klog.Warningf("setting: ignoring unknown key %q", k)
		}
	}
	return out, nil
}
