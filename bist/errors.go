package bist

import "errors"

var (
	// ErrDeviceTimeout reports a generator or checker whose done flag
	// never asserted within the poll window. The run is aborted because
	// all later register state is undefined.
	ErrDeviceTimeout = errors.New("timeout waiting for done")

	// ErrMeasurementInvalid marks a phase whose timer window elapsed zero
	// ticks. The transfer itself completed, so the run continues, but no
	// speed can be derived for the phase.
	ErrMeasurementInvalid = errors.New("zero elapsed ticks, measurement invalid")
)
