package backing

import "errors"

var (
	// ErrBadSize indicates a non-positive buffer size.
	ErrBadSize = errors.New("backing: buffer size must be positive")

	// ErrMapFull indicates the mapped allocator reached its size limit.
	ErrMapFull = errors.New("backing: mapped size limit reached")

	// ErrUnknownBuffer indicates a Release of a pointer this allocator
	// never produced.
	ErrUnknownBuffer = errors.New("backing: unknown buffer")
)
