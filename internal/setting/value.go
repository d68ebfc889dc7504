// Package setting holds the variant-valued configuration dictionaries that
// layers are constructed from, and the per-layer schemas that turn them into
// validated, defaulted maps.
package setting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// Kind is the type tag of a Value.
type Kind int

// Value kinds.
const (
	Invalid Kind = iota
	Int
	Bool
	Float
	String
	Nested
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Float:
		return "float"
	case String:
		return "string"
	case Nested:
		return "map"
	default:
		return "invalid"
	}
}

// Value is a single setting: an int, bool, float, string or nested Map.
type Value struct {
	kind Kind
	i    int
	b    bool
	f    float64
	s    string
	m    Map
}

// IntValue returns an int setting.
func IntValue(v int) Value { return Value{kind: Int, i: v} }

// BoolValue returns a bool setting.
func BoolValue(v bool) Value { return Value{kind: Bool, b: v} }

// FloatValue returns a float setting.
func FloatValue(v float64) Value { return Value{kind: Float, f: v} }

// StringValue returns a string setting.
func StringValue(v string) Value { return Value{kind: String, s: v} }

// MapValue returns a nested setting.
func MapValue(v Map) Value { return Value{kind: Nested, m: v} }

// Kind returns the type tag of v.
func (v Value) Kind() Kind { return v.kind }

// Int returns the value of an Int setting.
func (v Value) Int() int {
	v.mustBe(Int)
	return v.i
}

// Bool returns the value of a Bool setting.
func (v Value) Bool() bool {
	v.mustBe(Bool)
	return v.b
}

// Float returns the value of a Float setting. Int settings convert.
func (v Value) Float() float64 {
	if v.kind == Int {
		return float64(v.i)
	}
	v.mustBe(Float)
	return v.f
}

// Str returns the value of a String setting.
func (v Value) Str() string {
	v.mustBe(String)
	return v.s
}

// Map returns the value of a Nested setting.
func (v Value) Map() Map {
	v.mustBe(Nested)
	return v.m
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("setting: %s value read as %s", v.kind, k))
	}
}

func (v Value) String() string {
	switch v.kind {
	case Int:
		return fmt.Sprint(v.i)
	case Bool:
		return fmt.Sprint(v.b)
	case Float:
		return fmt.Sprint(v.f)
	case String:
		return fmt.Sprintf("%q", v.s)
	case Nested:
		return v.m.String()
	default:
		return "<invalid>"
	}
}

// UnmarshalJSON decodes a JSON scalar or object. Numbers written without a
// fraction or exponent become Int, all others Float.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("setting: empty value")
	}
	switch data[0] {
	case '{':
		var m Map
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = MapValue(m)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case 'n':
		return errors.New("setting: null values are not allowed")
	case '[':
		return errors.New("setting: list values are not supported")
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.Wrapf(err, "setting: bad number %s", data)
		}
		if !bytes.ContainsAny(data, ".eE") {
			i, err := n.Int64()
			if err == nil && i >= math.MinInt && i <= math.MaxInt {
				*v = IntValue(int(i))
				return nil
			}
		}
		f, err := n.Float64()
		if err != nil {
			return errors.Wrapf(err, "setting: bad number %s", data)
		}
		*v = FloatValue(f)
	}
	return nil
}

// MarshalJSON encodes v so that UnmarshalJSON restores the same kind.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Int:
		return json.Marshal(v.i)
	case Bool:
		return json.Marshal(v.b)
	case Float:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			// Keep the fraction so the value decodes as Float again.
			return []byte(fmt.Sprintf("%.1f", v.f)), nil
		}
		return json.Marshal(v.f)
	case String:
		return json.Marshal(v.s)
	case Nested:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	default:
		return nil, errors.New("setting: cannot encode invalid value")
	}
}

// Map is a string-keyed settings dictionary.
type Map map[string]Value

// Get returns the value stored under key.
func (m Map) Get(key string) (Value, bool) {
	v, ok := m[key]
	return v, ok
}

// Int returns the Int setting stored under key. It panics if the key is
// absent or of another kind; use it on maps returned by Schema.Resolve.
func (m Map) Int(key string) int { return m.must(key).Int() }

// Bool returns the Bool setting stored under key.
func (m Map) Bool(key string) bool { return m.must(key).Bool() }

// Float returns the Float (or Int) setting stored under key.
func (m Map) Float(key string) float64 { return m.must(key).Float() }

// Str returns the String setting stored under key.
func (m Map) Str(key string) string { return m.must(key).Str() }

// Sub returns the nested Map stored under key.
func (m Map) Sub(key string) Map { return m.must(key).Map() }

func (m Map) must(key string) Value {
	v, ok := m[key]
	if !ok {
		panic(fmt.Sprintf("setting: key %q not present", key))
	}
	return v
}

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Map) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s: %s", k, m[k])
	}
	buf.WriteByte('}')
	return buf.String()
}
