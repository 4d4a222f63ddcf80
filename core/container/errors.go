package container

import "errors"

var (
	// ErrDuplicateVar is returned when a variable name is requested twice.
	ErrDuplicateVar = errors.New("duplicate variable name")
	// ErrNonUniformGrid is returned for reference axes with irregular spacing.
	ErrNonUniformGrid = errors.New("grid axis is not uniformly spaced")
	// ErrAppendIndexLength is returned when an appended index level does not
	// match the number of target points.
	ErrAppendIndexLength = errors.New("append index length mismatch")
	// ErrMissingAxis is returned when the reference grid lacks a named axis.
	ErrMissingAxis = errors.New("reference grid axis not found")
)
