// Package bist drives the generator/checker self-test of the SoC: one
// fixed-size write transfer, one fixed-size read transfer, throughput
// measured with the SoC's own hardware timer, integrity errors read from
// the checker.
package bist

import (
	"fmt"
	"io"

	"github.com/soclab/membist/csr"
)

// Tester runs the self-test over a register bus. It is single-use safe but
// not goroutine safe: the registers it drives are singleton devices and
// each phase exclusively owns the timer.
type Tester struct {
	bus      csr.Bus
	csrMap   csr.Map
	cfg      Config
	clock    Clock
	progress io.Writer
}

// TesterBuilder assembles a Tester.
type TesterBuilder struct {
	bus      csr.Bus
	csrMap   *csr.Map
	cfg      *Config
	clock    Clock
	progress io.Writer
}

// WithBus sets the register bus to drive. Mandatory.
func (b TesterBuilder) WithBus(bus csr.Bus) TesterBuilder {
	b.bus = bus
	return b
}

// WithMap sets the CSR layout. Defaults to csr.DefaultMap().
func (b TesterBuilder) WithMap(m csr.Map) TesterBuilder {
	b.csrMap = &m
	return b
}

// WithConfig sets the test parameters. Defaults to DefaultConfig().
func (b TesterBuilder) WithConfig(cfg Config) TesterBuilder {
	b.cfg = &cfg
	return b
}

// WithClock sets the clock used to bound the done-polling loop. Defaults
// to the wall clock.
func (b TesterBuilder) WithClock(clock Clock) TesterBuilder {
	b.clock = clock
	return b
}

// WithProgress sets the writer receiving the firmware-compatible progress
// text. Defaults to discarding it.
func (b TesterBuilder) WithProgress(w io.Writer) TesterBuilder {
	b.progress = w
	return b
}

// Build creates the Tester.
func (b TesterBuilder) Build() *Tester {
	if b.bus == nil {
		panic("bist: tester needs a bus")
	}

	t := &Tester{
		bus:      b.bus,
		csrMap:   csr.DefaultMap(),
		cfg:      DefaultConfig(),
		clock:    b.clock,
		progress: b.progress,
	}

	if b.csrMap != nil {
		t.csrMap = *b.csrMap
	}
	if b.cfg != nil {
		t.cfg = *b.cfg
	}
	if t.clock == nil {
		t.clock = WallClock()
	}
	if t.progress == nil {
		t.progress = io.Discard
	}

	return t
}

// Run executes the write phase against the generator, the read phase
// against the checker, and reads the checker's error counter once both
// transfers completed. A device that never signals done or a failing bus
// aborts the run with an error; a zero-tick measurement only invalidates
// the affected phase's speed.
func (t *Tester) Run() (Result, error) {
	var res Result

	if err := t.cfg.Validate(); err != nil {
		return res, err
	}
	if err := t.csrMap.Validate(); err != nil {
		return res, err
	}

	beats, err := t.cfg.beats()
	if err != nil {
		return res, err
	}

	timer := timerDevice{bus: t.bus, blk: t.csrMap.Timer}
	gen := bistDevice{bus: t.bus, blk: t.csrMap.Generator, name: "generator"}
	chk := bistDevice{bus: t.bus, blk: t.csrMap.Checker, name: "checker"}

	res.Write, err = t.runPhase(Write, gen, timer, beats)
	if err != nil {
		return res, err
	}

	res.Read, err = t.runPhase(Read, chk, timer, beats)
	if err != nil {
		return res, err
	}

	// The counter is owned by the checker and is only valid now that done
	// was observed. Read it exactly once.
	res.Errors, err = chk.errorCount()
	if err != nil {
		return res, err
	}
	fmt.Fprintf(t.progress, "errors: %d\n", res.Errors)

	return res, nil
}

// runPhase walks one device through reset, configure, arm, shoot, poll and
// measure. The register order is load-bearing: the hardware latches base
// and length on shoot, and done-dependent state is undefined until done
// reads non-zero.
func (t *Tester) runPhase(
	dir Direction,
	dev bistDevice,
	timer timerDevice,
	beats uint32,
) (PhaseResult, error) {
	pr := PhaseResult{Direction: dir, Bytes: t.cfg.TransferBytes}

	fmt.Fprintf(t.progress, "%s %d Mbytes...",
		dir.verb(), t.cfg.TransferBytes/(1024*1024))

	if err := dev.reset(); err != nil {
		return pr, err
	}
	if err := dev.configure(t.cfg.BaseAddr, beats); err != nil {
		return pr, err
	}
	if err := timer.arm(); err != nil {
		return pr, err
	}
	if err := dev.shoot(); err != nil {
		return pr, err
	}
	if err := t.waitDone(dev); err != nil {
		return pr, err
	}

	ticks, err := timer.elapsedTicks()
	if err != nil {
		return pr, err
	}
	pr.Ticks = ticks

	if ticks == 0 {
		// Transfer finished inside one timer tick, or the timer is
		// misconfigured. Either way the window is unusable.
		pr.Err = ErrMeasurementInvalid
		fmt.Fprintf(t.progress, "/ measurement invalid\n")
		return pr, nil
	}

	pr.Mbps = speedMbps(t.cfg.TransferBytes, t.cfg.ClockHz, ticks)
	fmt.Fprintf(t.progress, "/ %d Mbps\n", pr.Mbps)

	return pr, nil
}

// waitDone polls the device's done flag. The reference firmware spins
// forever here; this loop gives up after PollTimeout.
func (t *Tester) waitDone(dev bistDevice) error {
	deadline := t.clock.Now().Add(t.cfg.PollTimeout)

	for {
		done, err := dev.done()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !t.clock.Now().Before(deadline) {
			return fmt.Errorf("%s: %w after %v",
				dev.name, ErrDeviceTimeout, t.cfg.PollTimeout)
		}
		t.clock.Sleep(t.cfg.PollInterval)
	}
}
