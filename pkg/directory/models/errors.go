package models

import "errors"

// Domain errors returned by the directory store. Callers match with
// errors.Is and translate them into protocol-level Fail responses.
var (
	// ErrUserNotFound is returned when a username has no directory record.
	ErrUserNotFound = errors.New("user not found")

	// ErrSensorNotFound is returned when a device/channel pair has no
	// managed sensor row.
	ErrSensorNotFound = errors.New("sensor not found")

	// ErrInvalidScope is returned for scope group codes outside P/G/S/D.
	ErrInvalidScope = errors.New("invalid scope group code")
)
