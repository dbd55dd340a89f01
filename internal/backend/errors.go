package backend

import "errors"

// Sentinel errors for the backend package, checked with errors.Is().
//
//	if errors.Is(err, backend.ErrUnknownDevice) {
//	    // handle unknown device
//	}
var (
	ErrBadName          = errors.New("backend: invalid device name")
	ErrAlreadyRegistered = errors.New("backend: device already registered with different type/direction/owner")
	ErrUnknownDevice    = errors.New("backend: unknown device")
	ErrTypeMismatch     = errors.New("backend: value type does not match declared type")
	ErrReadOnly         = errors.New("backend: device is read-only")
	ErrNonMonotonic     = errors.New("backend: reading timestamp precedes stored last")
	ErrNotAccepted      = errors.New("backend: setting not accepted (inbox full or timeout)")
	ErrBackendUnavailable = errors.New("backend: unavailable")
)
