package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSensorNotFound   = errors.New("sensor_not_found")
	ErrDuplicateName    = errors.New("duplicate_name")
	ErrCorruptTelemetry = errors.New("corrupt_telemetry")
	ErrStoreUnavailable = errors.New("store_unavailable")

	// ErrNotFound is returned by IdentityStore.Delete for a missing row.
	ErrNotFound = errors.New("not_found")

	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidLatitude  = errors.New("invalid_latitude")
	ErrInvalidLongitude = errors.New("invalid_longitude")
	ErrInvalidRadius    = errors.New("invalid_radius")
	ErrInvalidLimit     = errors.New("invalid_limit")
	ErrInvalidTelemetry = errors.New("invalid_telemetry")
)

// StoreError reports an infrastructure failure of one collaborator call.
// It matches both ErrStoreUnavailable and the underlying cause.
type StoreError struct {
	Store string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// NewStoreError wraps err unless it is nil or already a StoreError.
func NewStoreError(store, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Store: store, Op: op, Err: err}
}

// CorruptTelemetryError carries the decode failure for a cached payload.
type CorruptTelemetryError struct {
	SensorID int64
	Err      error
}

func (e *CorruptTelemetryError) Error() string {
	return fmt.Sprintf("corrupt telemetry for sensor %d: %v", e.SensorID, e.Err)
}

func (e *CorruptTelemetryError) Unwrap() []error {
	return []error{ErrCorruptTelemetry, e.Err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrSensorNotFound) || errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidLatitude),
		errors.Is(err, ErrInvalidLongitude),
		errors.Is(err, ErrInvalidRadius),
		errors.Is(err, ErrInvalidLimit),
		errors.Is(err, ErrInvalidTelemetry):
		return true
	default:
		return false
	}
}
