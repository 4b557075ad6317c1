package location

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a position could not be obtained.
type FailureKind string

const (
	CapabilityUnavailable FailureKind = "capability_unavailable"
	PermissionDenied      FailureKind = "permission_denied"
	Timeout               FailureKind = "timeout"
	PositionUnavailable   FailureKind = "position_unavailable"
)

// Sentinels for errors.Is matching against a *PositionError.
var (
	ErrCapabilityUnavailable = errors.New("positioning capability unavailable")
	ErrPermissionDenied      = errors.New("location permission denied")
	ErrTimeout               = errors.New("position request timed out")
	ErrPositionUnavailable   = errors.New("position unavailable")
)

// PositionError is the failure returned by every Provider.
type PositionError struct {
	Kind FailureKind
	Err  error
}

func (e *PositionError) Error() string {
	if e.Err == nil {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
}

func (e *PositionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPermissionDenied) and friends match on the kind.
func (e *PositionError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *PositionError) sentinel() error {
	switch e.Kind {
	case CapabilityUnavailable:
		return ErrCapabilityUnavailable
	case PermissionDenied:
		return ErrPermissionDenied
	case Timeout:
		return ErrTimeout
	default:
		return ErrPositionUnavailable
	}
}

// NewPositionError wraps err with the given kind.
func NewPositionError(kind FailureKind, err error) *PositionError {
	return &PositionError{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from err. Context deadline errors map to Timeout and
// anything unrecognised to PositionUnavailable.
func KindOf(err error) FailureKind {
	var pe *PositionError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return PositionUnavailable
}
