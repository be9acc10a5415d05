package bist

import (
	"fmt"

	"github.com/soclab/membist/csr"
)

// bistDevice drives one traffic block, generator or checker. Both expose
// the same reset/base/length/shoot/done register file; the checker adds
// the error counter on top.
type bistDevice struct {
	bus  csr.Bus
	blk  csr.BISTBlock
	name string
}

func (d bistDevice) reset() error {
	if err := d.bus.Write32(d.blk.Reset, 1); err != nil {
		return fmt.Errorf("%s reset: %w", d.name, err)
	}
	return nil
}

func (d bistDevice) configure(base uint32, beats uint32) error {
	if err := d.bus.Write32(d.blk.Base, base); err != nil {
		return fmt.Errorf("%s base: %w", d.name, err)
	}
	if err := d.bus.Write32(d.blk.Length, beats); err != nil {
		return fmt.Errorf("%s length: %w", d.name, err)
	}
	return nil
}

func (d bistDevice) shoot() error {
	if err := d.bus.Write32(d.blk.Shoot, 1); err != nil {
		return fmt.Errorf("%s shoot: %w", d.name, err)
	}
	return nil
}

func (d bistDevice) done() (bool, error) {
	v, err := d.bus.Read32(d.blk.Done)
	if err != nil {
		return false, fmt.Errorf("%s done: %w", d.name, err)
	}
	return v != 0, nil
}

func (d bistDevice) errorCount() (uint32, error) {
	v, err := d.bus.Read32(d.blk.ErrorCount)
	if err != nil {
		return 0, fmt.Errorf("%s error count: %w", d.name, err)
	}
	return v, nil
}

// timerDevice drives the down-counting hardware timer in one-shot mode.
type timerDevice struct {
	bus csr.Bus
	blk csr.TimerBlock
}

// arm stops the timer, loads the full 32-bit window and restarts it.
// Disabling before loading matters: the load register is only transferred
// into the counter while the timer is off.
func (t timerDevice) arm() error {
	if err := t.bus.Write32(t.blk.En, 0); err != nil {
		return fmt.Errorf("timer disable: %w", err)
	}
	if err := t.bus.Write32(t.blk.Load, timerLoadValue); err != nil {
		return fmt.Errorf("timer load: %w", err)
	}
	if err := t.bus.Write32(t.blk.En, 1); err != nil {
		return fmt.Errorf("timer enable: %w", err)
	}
	return nil
}

// elapsedTicks latches the running counter into the value register, reads
// it back and converts it into elapsed ticks.
func (t timerDevice) elapsedTicks() (uint32, error) {
	if err := t.bus.Write32(t.blk.UpdateValue, 1); err != nil {
		return 0, fmt.Errorf("timer latch: %w", err)
	}
	v, err := t.bus.Read32(t.blk.Value)
	if err != nil {
		return 0, fmt.Errorf("timer value: %w", err)
	}
	return elapsedTicks(v), nil
}
