package gridmap

import (
	"errors"
	"fmt"

	"taxi-relay/internal/models"
)

// ErrInvalidMap is matched by every map parsing failure
var ErrInvalidMap = errors.New("invalid map")

// ErrUnreachable is matched by every failed path query
var ErrUnreachable = errors.New("destination unreachable")

// InvalidMapError is returned when a map description cannot be parsed
type InvalidMapError struct {
	Reason string
}

func (e *InvalidMapError) Error() string {
	return fmt.Sprintf("invalid map: %s", e.Reason)
}

func (e *InvalidMapError) Unwrap() error {
	return ErrInvalidMap
}

// UnreachableError is returned when no path connects two coordinates
type UnreachableError struct {
	Origin      models.Coordinate
	Destination models.Coordinate
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("no path from %s to %s", e.Origin, e.Destination)
}

func (e *UnreachableError) Unwrap() error {
	return ErrUnreachable
}

// OutOfBoundsError is returned when a coordinate lies outside the grid
type OutOfBoundsError struct {
	Coordinate models.Coordinate
	Rows, Cols int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("coordinate %s outside %dx%d grid", e.Coordinate, e.Rows, e.Cols)
}
