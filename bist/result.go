package bist

// Direction identifies which half of the self-test a phase exercised.
type Direction int

const (
	// Write is the generator phase, host memory traffic flowing into DRAM.
	Write Direction = iota

	// Read is the checker phase, DRAM traffic flowing back for comparison.
	Read
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Write:
		return "write"
	case Read:
		return "read"
	}
	panic("bist: unknown direction")
}

// verb is the progressive form used in the firmware-compatible progress
// text.
func (d Direction) verb() string {
	switch d {
	case Write:
		return "writing"
	case Read:
		return "reading"
	}
	panic("bist: unknown direction")
}

// PhaseResult is the measurement of a single transfer phase.
type PhaseResult struct {
	Direction Direction

	// Bytes is the amount of data the phase moved.
	Bytes uint64

	// Ticks is the number of timer ticks the transfer took.
	Ticks uint32

	// Mbps is the derived speed in megabits per second. Zero when the
	// measurement is invalid.
	Mbps uint64

	// Err is nil for a usable measurement, or ErrMeasurementInvalid when
	// the timer window elapsed zero ticks.
	Err error
}

// Valid reports whether the phase produced a usable speed.
func (p PhaseResult) Valid() bool {
	return p.Err == nil
}

// Result is the outcome of a complete self-test run.
type Result struct {
	Write PhaseResult
	Read  PhaseResult

	// Errors is the checker's count of beats that came back corrupted.
	Errors uint32
}

// Passed reports whether both phases measured cleanly and no data
// corruption was detected.
func (r Result) Passed() bool {
	return r.Write.Valid() && r.Read.Valid() && r.Errors == 0
}
