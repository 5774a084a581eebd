package reprnode

import (
	"errors"
	"fmt"
)

// ErrUnimplementedParadigm is returned when a node is configured for a
// geometry paradigm that has no converter.
var ErrUnimplementedParadigm = errors.New("reprnode: geometry paradigm not implemented")

// RepresentationCreationError reports that the document produced no
// representation for one mesh object. Representations created for earlier
// objects in the same evaluation remain unless rollback is enabled.
type RepresentationCreationError struct {
	Index  int    // position of the offending mesh object
	Object string // its name
	Err    error  // document error, if any
}

func (e *RepresentationCreationError) Error() string {
	msg := fmt.Sprintf("couldn't create representation for object %d (%q), possibly wrong context", e.Index, e.Object)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RepresentationCreationError) Unwrap() error { return e.Err }

// ConfigError reports an enumeration value that is not allowed.
type ConfigError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q, expected one of %v", e.Field, e.Value, e.Allowed)
}

// InputError reports a socket value of an unexpected shape.
type InputError struct {
	Socket string
	Value  any
}

func (e *InputError) Error() string {
	return fmt.Sprintf("socket %s: unsupported value of type %T", e.Socket, e.Value)
}
