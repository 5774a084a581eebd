package reprnode

import (
	"reflect"
	"slices"

	"github.com/chazu/bimrepr/pkg/kernel"
)

// Input socket names, in declaration order.
const (
	SocketContextType       = "context_type"
	SocketContextIdentifier = "context_identifier"
	SocketTargetView        = "target_view"
	SocketParadigm          = "paradigm"
	SocketObjects           = "blender_objects"
)

// Output socket names.
const (
	OutputFile            = "file"
	OutputRepresentations = "Representations"
)

var inputNames = []string{
	SocketContextType,
	SocketContextIdentifier,
	SocketTargetView,
	SocketParadigm,
	SocketObjects,
}

// Paradigm selects how mesh geometry is converted.
type Paradigm string

const (
	ParadigmTessellation Paradigm = "Tessellation"
	ParadigmExtrusion    Paradigm = "Extrusion"
)

// Allowed enumeration values.
var (
	ContextTypes       = []string{"Model", "Plan"}
	ContextIdentifiers = []string{"Body", "Annotation", "Box", "Axis"}
	TargetViews        = []string{"MODEL_VIEW", "PLAN_VIEW", "GRAPH_VIEW", "SKETCH_VIEW"}
	Paradigms          = []string{string(ParadigmTessellation), string(ParadigmExtrusion)}
)

// Config holds the node's four enumeration properties.
type Config struct {
	ContextType       string   `yaml:"context_type"`
	ContextIdentifier string   `yaml:"context_identifier"`
	TargetView        string   `yaml:"target_view"`
	Paradigm          Paradigm `yaml:"paradigm"`
}

// DefaultConfig returns Model / Body / MODEL_VIEW / Tessellation.
func DefaultConfig() Config {
	return Config{
		ContextType:       "Model",
		ContextIdentifier: "Body",
		TargetView:        "MODEL_VIEW",
		Paradigm:          ParadigmTessellation,
	}
}

// WithDefaults fills the empty fields of c from d.
func (c Config) WithDefaults(d Config) Config {
	if c.ContextType == "" {
		c.ContextType = d.ContextType
	}
	if c.ContextIdentifier == "" {
		c.ContextIdentifier = d.ContextIdentifier
	}
	if c.TargetView == "" {
		c.TargetView = d.TargetView
	}
	if c.Paradigm == "" {
		c.Paradigm = d.Paradigm
	}
	return c
}

// Validate checks every field against its enumeration.
func (c Config) Validate() error {
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{SocketContextType, c.ContextType, ContextTypes},
		{SocketContextIdentifier, c.ContextIdentifier, ContextIdentifiers},
		{SocketTargetView, c.TargetView, TargetViews},
		{SocketParadigm, string(c.Paradigm), Paradigms},
	}
	for _, ch := range checks {
		if !slices.Contains(ch.allowed, ch.value) {
			return &ConfigError{Field: ch.field, Value: ch.value, Allowed: ch.allowed}
		}
	}
	return nil
}

// effectiveInputs fills unset enumeration sockets with the node's property
// values, wrapped as lists the way a linked socket would deliver them. The
// mesh socket carries the flattened objects, so a single object is compared
// like a list of one.
func effectiveInputs(in map[string]any, props Config, objects []kernel.Object) map[string]any {
	out := make(map[string]any, len(inputNames))
	for _, name := range inputNames {
		out[name] = in[name]
	}
	out[SocketObjects] = objects
	fallback := map[string]string{
		SocketContextType:       props.ContextType,
		SocketContextIdentifier: props.ContextIdentifier,
		SocketTargetView:        props.TargetView,
		SocketParadigm:          string(props.Paradigm),
	}
	for name, v := range fallback {
		if _, ok := firstString(out[name]); !ok {
			out[name] = []string{v}
		}
	}
	return out
}

// resolveConfig reads the enumeration sockets of effective inputs.
func resolveConfig(in map[string]any) (Config, error) {
	var c Config
	fields := []struct {
		socket string
		dst    *string
	}{
		{SocketContextType, &c.ContextType},
		{SocketContextIdentifier, &c.ContextIdentifier},
		{SocketTargetView, &c.TargetView},
	}
	for _, f := range fields {
		s, ok := firstString(in[f.socket])
		if !ok {
			return Config{}, &InputError{Socket: f.socket, Value: in[f.socket]}
		}
		*f.dst = s
	}
	p, ok := firstString(in[SocketParadigm])
	if !ok {
		return Config{}, &InputError{Socket: SocketParadigm, Value: in[SocketParadigm]}
	}
	c.Paradigm = Paradigm(p)
	return c, c.Validate()
}

// firstString returns the first non-empty string found in v, descending
// into nested slices.
func firstString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case Paradigm:
		return string(t), t != ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return "", false
	}
	for i := 0; i < rv.Len(); i++ {
		if s, ok := firstString(rv.Index(i).Interface()); ok {
			return s, true
		}
	}
	return "", false
}

// objectsFrom flattens a mesh socket value into mesh objects. It accepts a
// single object, slices of objects, and arbitrarily nested slices.
func objectsFrom(v any) ([]kernel.Object, error) {
	var out []kernel.Object
	var walk func(v any) error
	walk = func(v any) error {
		switch t := v.(type) {
		case nil:
			return nil
		case kernel.Object:
			out = append(out, t)
			return nil
		case *kernel.Object:
			if t != nil {
				out = append(out, *t)
			}
			return nil
		case []kernel.Object:
			out = append(out, t...)
			return nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return &InputError{Socket: SocketObjects, Value: v}
		}
		for i := 0; i < rv.Len(); i++ {
			if err := walk(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}
