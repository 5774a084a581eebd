package document

import "errors"

var (
	// ErrNotFound is returned when an id does not name a live entity.
	ErrNotFound = errors.New("document: entity not found")

	// ErrRejected is returned when the document refuses to create an entity,
	// for example a representation under an incompatible context.
	ErrRejected = errors.New("document: entity rejected")

	// ErrReferenced is returned when removing an entity that other entities
	// still point at.
	ErrReferenced = errors.New("document: entity still referenced")
)
