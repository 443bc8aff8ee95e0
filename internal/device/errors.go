package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device identity has no durable record.
	ErrNotFound = errors.New("device: not found")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrInvalidIdentity is returned when a device identity is empty.
	ErrInvalidIdentity = errors.New("device: invalid identity")

	// ErrPersistence is returned when a durable write failed after all
	// internal retries. The in-memory cache still reflects the last
	// durably-confirmed state.
	ErrPersistence = errors.New("device: persistence failed")
)
