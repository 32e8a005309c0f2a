package target

import (
	"errors"

	"github.com/danmuck/edgetrack/internal/properties"
)

var (
	ErrInvalidToken     = errors.New("target: invalid token")
	ErrInvalidHierarchy = errors.New("target: invalid hierarchy")
	ErrInvalidEventName = errors.New("target: invalid event name")
	ErrNotFound         = errors.New("target: not found")
	ErrHasChildren      = errors.New("target: target has children")
	ErrRemoved          = errors.New("target: target removed")

	// ErrInvalidProperty is returned for rejected property names or values.
	ErrInvalidProperty = properties.ErrInvalidProperty
)
