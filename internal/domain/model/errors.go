package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks configuration errors found before any remote call.
	ErrInvalidRequest = errors.New("invalid analysis request")
	// ErrUnsupportedCollection is returned for collection ids outside the sensor registry.
	ErrUnsupportedCollection = errors.New("unsupported collection")
	// ErrNoQualifyingImagery means a period's composite has no valid pixel inside the region.
	ErrNoQualifyingImagery = errors.New("no qualifying imagery")
	// ErrExportTooLarge is reported by backends when an export exceeds their pixel limit.
	ErrExportTooLarge = errors.New("export exceeds backend pixel limit")
	// ErrUnknownLayer is returned when a caller names a layer that is not part of a plan.
	ErrUnknownLayer = errors.New("unknown layer")
)

// ValidationError names the request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EmptyCompositeError reports which layer came back entirely without data and how many
// scenes passed the filters for it.
type EmptyCompositeError struct {
	Layer  string
	Scenes int64
}

func (e *EmptyCompositeError) Error() string {
	return fmt.Sprintf("%s: %v, %d scenes matched (widen the date range or relax cloud cover)",
		e.Layer, ErrNoQualifyingImagery, e.Scenes)
}

func (e *EmptyCompositeError) Unwrap() error { return ErrNoQualifyingImagery }

// RemoteError wraps a failed materialization call with enough context to retry it.
type RemoteError struct {
	Layer      string
	Request    string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s request", e.Request)
	if e.Layer != "" {
		msg = fmt.Sprintf("%s %s", e.Layer, msg)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %v", msg, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// WithLayer returns a copy of err tagged with the layer name when err is a RemoteError.
func WithLayer(err error, layer string) error {
	var re *RemoteError
	if errors.As(err, &re) {
		cp := *re
		cp.Layer = layer
		return &cp
	}
	return fmt.Errorf("%s: %w", layer, err)
}
