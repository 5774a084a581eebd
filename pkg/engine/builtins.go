package engine

import (
	"fmt"
	"slices"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/bimrepr/pkg/graph"
	"github.com/chazu/bimrepr/pkg/kernel"
	"github.com/chazu/bimrepr/pkg/reprnode"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: repr-node -> repr_node
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpSolid wraps a kernel solid so it can be passed between builtins.
type sexpSolid struct {
	solid kernel.Solid
	desc  string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return "(" + s.desc + ")"
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps an x/y/z triple.
type sexpVec3 struct {
	vec [3]float64
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %.1f %.1f %.1f)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpMesh wraps a named, meshed object produced by `mesh`.
type sexpMesh struct {
	obj kernel.Object
}

func (m *sexpMesh) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mesh %q %d triangles)", m.obj.Name, m.obj.Mesh.TriangleCount())
}
func (m *sexpMesh) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef refers to a node declared with `repr-node`.
type sexpNodeRef struct {
	id   graph.NodeID
	name string
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(noderef %q)", n.name)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toPositive extracts a number that must be greater than zero.
func toPositive(s zygo.Sexp) (float64, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("must be positive, got %g", f)
	}
	return f, nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toEnum extracts a keyword or string and checks it against allowed.
func toEnum(s zygo.Sexp, allowed []string) (string, error) {
	v, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	if !slices.Contains(allowed, v) {
		return "", fmt.Errorf("invalid value %q, expected one of %v", v, allowed)
	}
	return v, nil
}

// toSolid extracts a kernel solid from a sexpSolid.
func toSolid(s zygo.Sexp) (*sexpSolid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a triple from a sexpVec3.
func toVec3(s zygo.Sexp) ([3]float64, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return [3]float64{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toMesh extracts a mesh object from a sexpMesh.
func toMesh(s zygo.Sexp) (kernel.Object, error) {
	if m, ok := s.(*sexpMesh); ok {
		return m.obj, nil
	}
	return kernel.Object{}, fmt.Errorf("expected mesh, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all script builtins into a zygomys environment.
// Solids are built and meshed with k; node declarations are appended to s.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, k kernel.Kernel, s *Script) {

	// -----------------------------------------------------------------------
	// (box :x 4 :y 0.3 :z 3)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var dims [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			v, ok := pa.kw[axis]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("box: missing :%s", axis)
			}
			f, err := toPositive(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: %s: %w", axis, err)
			}
			dims[i] = f
		}
		return &sexpSolid{
			solid: k.Box(dims[0], dims[1], dims[2]),
			desc:  fmt.Sprintf("box %gx%gx%g", dims[0], dims[1], dims[2]),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 3 :radius 0.2)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var height, radius float64
		for _, f := range []struct {
			kw  string
			dst *float64
		}{{"height", &height}, {"radius", &radius}} {
			v, ok := pa.kw[f.kw]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("cylinder: missing :%s", f.kw)
			}
			n, err := toPositive(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: %s: %w", f.kw, err)
			}
			*f.dst = n
		}
		return &sexpSolid{
			solid: k.Cylinder(height, radius),
			desc:  fmt.Sprintf("cylinder h%g r%g", height, radius),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b c)
	// -----------------------------------------------------------------------
	env.AddFunction("union", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("union requires at least 2 solids, got %d", len(args))
		}
		acc, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("union: solid 0: %w", err)
		}
		solid := acc.solid
		for i, a := range args[1:] {
			next, err := toSolid(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("union: solid %d: %w", i+1, err)
			}
			solid = k.Union(solid, next.solid)
		}
		return &sexpSolid{solid: solid, desc: fmt.Sprintf("union of %d", len(args))}, nil
	})

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var vec [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			vec[i] = f
		}
		return &sexpVec3{vec: vec}, nil
	})

	// -----------------------------------------------------------------------
	// (move (box ...) :at (vec3 0 0 3))
	// -----------------------------------------------------------------------
	env.AddFunction("move", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("move requires a solid as first argument")
		}
		src, err := toSolid(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		v, ok := pa.kw["at"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("move: missing :at")
		}
		at, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: at: %w", err)
		}
		return &sexpSolid{
			solid: k.Translate(src.solid, at[0], at[1], at[2]),
			desc:  src.desc + fmt.Sprintf(" at %g,%g,%g", at[0], at[1], at[2]),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (rotate (box ...) :by (vec3 0 0 90))  ; Euler angles in degrees
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a solid as first argument")
		}
		src, err := toSolid(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		v, ok := pa.kw["by"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("rotate: missing :by")
		}
		by, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: by: %w", err)
		}
		return &sexpSolid{
			solid: k.Rotate(src.solid, by[0], by[1], by[2]),
			desc:  src.desc + fmt.Sprintf(" rotated %g,%g,%g", by[0], by[1], by[2]),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (mesh "wall" (box ...))
	// -----------------------------------------------------------------------
	env.AddFunction("mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("mesh requires a name and a solid")
		}
		meshName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh: name: %w", err)
		}
		src, err := toSolid(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh %q: %w", meshName, err)
		}
		m, err := k.ToMesh(src.solid)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh %q: %w", meshName, err)
		}
		return &sexpMesh{obj: kernel.Object{Name: meshName, Mesh: m}}, nil
	})

	// -----------------------------------------------------------------------
	// (repr-node "walls" :objects (list wall-a wall-b)
	//            :context-type "Model" :context-identifier "Body"
	//            :target-view "MODEL_VIEW" :paradigm "Tessellation")
	//
	// Registered as "repr_node"; the preprocessor rewrites repr-node.
	// -----------------------------------------------------------------------
	env.AddFunction("repr_node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("repr-node requires a name argument")
		}
		nodeName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("repr-node: name: %w", err)
		}
		if nodeName == "" {
			return zygo.SexpNull, fmt.Errorf("repr-node: name must not be empty")
		}

		spec := NodeSpec{ID: graph.NewNodeID(nodeName), Name: nodeName}

		if v, ok := pa.kw["objects"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("repr-node %q: objects: %w", nodeName, err)
			}
			for i, item := range items {
				obj, err := toMesh(item)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("repr-node %q: object %d: %w", nodeName, i, err)
				}
				spec.Objects = append(spec.Objects, obj)
			}
		}

		enums := []struct {
			kw      string
			allowed []string
			dst     *string
		}{
			{"context-type", reprnode.ContextTypes, &spec.Config.ContextType},
			{"context-identifier", reprnode.ContextIdentifiers, &spec.Config.ContextIdentifier},
			{"target-view", reprnode.TargetViews, &spec.Config.TargetView},
		}
		for _, e := range enums {
			v, ok := pa.kw[e.kw]
			if !ok {
				continue
			}
			val, err := toEnum(v, e.allowed)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("repr-node %q: %s: %w", nodeName, e.kw, err)
			}
			*e.dst = val
		}
		if v, ok := pa.kw["paradigm"]; ok {
			val, err := toEnum(v, reprnode.Paradigms)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("repr-node %q: paradigm: %w", nodeName, err)
			}
			spec.Config.Paradigm = reprnode.Paradigm(val)
		}

		if !s.add(spec) {
			return zygo.SexpNull, fmt.Errorf("repr-node: duplicate node name %q", nodeName)
		}
		return &sexpNodeRef{id: spec.ID, name: nodeName}, nil
	})
}
