package bist

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultTransferBytes matches the reference diagnostic's 64 MiB
	// transfer per phase.
	DefaultTransferBytes = 64 * 1024 * 1024

	// DefaultClockHz is the Arty reference platform's system clock.
	DefaultClockHz = 100_000_000

	// DefaultBitsPerBeat is the reference DRAM port width. The length
	// register counts transfer beats of this many bits.
	DefaultBitsPerBeat = 128

	// DefaultPollTimeout bounds how long a phase waits for done.
	DefaultPollTimeout = 30 * time.Second

	// DefaultPollInterval spaces the done reads so a slow bus bridge is
	// not saturated by polling.
	DefaultPollInterval = 100 * time.Microsecond
)

// Config carries the per-run parameters of the self-test.
type Config struct {
	// TransferBytes is the amount of data moved per phase.
	TransferBytes uint64

	// ClockHz is the frequency of the clock feeding the hardware timer.
	ClockHz uint64

	// BitsPerBeat is the width of one transfer beat. The value programmed
	// into the length registers is TransferBytes*8/BitsPerBeat.
	BitsPerBeat uint64

	// BaseAddr is the DRAM offset programmed into the base registers.
	BaseAddr uint32

	// PollTimeout aborts a phase whose done flag never asserts.
	PollTimeout time.Duration

	// PollInterval is the pause between two done reads.
	PollInterval time.Duration
}

// DefaultConfig returns the reference platform parameters.
func DefaultConfig() Config {
	return Config{
		TransferBytes: DefaultTransferBytes,
		ClockHz:       DefaultClockHz,
		BitsPerBeat:   DefaultBitsPerBeat,
		PollTimeout:   DefaultPollTimeout,
		PollInterval:  DefaultPollInterval,
	}
}

// Validate reports the first parameter that cannot drive a run.
func (c Config) Validate() error {
	if c.TransferBytes == 0 {
		return fmt.Errorf("transfer size must be positive")
	}
	if c.ClockHz == 0 {
		return fmt.Errorf("clock frequency must be positive")
	}
	if c.BitsPerBeat == 0 {
		return fmt.Errorf("bits per beat must be positive")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if _, err := c.beats(); err != nil {
		return err
	}
	return nil
}

// beats converts the transfer size into the beat count programmed into the
// length registers.
func (c Config) beats() (uint32, error) {
	bits := c.TransferBytes * 8
	if bits%c.BitsPerBeat != 0 {
		return 0, fmt.Errorf(
			"transfer size %d bytes is not a whole number of %d-bit beats",
			c.TransferBytes, c.BitsPerBeat)
	}

	beats := bits / c.BitsPerBeat
	if beats > math.MaxUint32 {
		return 0, fmt.Errorf(
			"transfer size %d bytes needs %d beats, above the 32-bit length register",
			c.TransferBytes, beats)
	}

	return uint32(beats), nil
}
