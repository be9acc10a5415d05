// Package csr defines the register-bus abstraction and the CSR map of the
// SoC under test.
package csr

import (
	"fmt"
	"sort"
)

// Bus provides 32-bit word access to the CSR address space of the SoC.
// Implementations front real hardware (etherbone, mmio) or a simulated SoC
// (socsim). A Bus is driven from a single goroutine; the registers behind
// it are singleton devices.
type Bus interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr uint32, value uint32) error
}

// BISTBlock holds the absolute addresses of one traffic block's registers.
// The generator (write path) and checker (read path) share the same shape;
// only the checker carries an error counter.
type BISTBlock struct {
	// Present reports whether the gateware includes this block. The
	// reference firmware compiles the whole self-test out when the
	// generator block is absent, so absence is a first-class state.
	Present bool

	Reset  uint32 // write 1 to pulse-reset the block
	Shoot  uint32 // write 1 to start the configured transfer
	Done   uint32 // reads non-zero once the transfer completed
	Base   uint32 // transfer start address in DRAM
	Length uint32 // transfer length in beats

	// ErrorCount is the checker's mismatch counter, valid once Done reads
	// non-zero. Zero means the block has no counter (generator side).
	ErrorCount uint32
}

// TimerBlock holds the absolute addresses of the hardware timer registers.
// The timer is a 32-bit down-counter; update_value latches the live count
// into the value register.
type TimerBlock struct {
	Present bool

	Load        uint32
	Reload      uint32
	En          uint32
	UpdateValue uint32
	Value       uint32
}

// Map ties the three blocks the self-test drives into one CSR layout.
type Map struct {
	Generator BISTBlock
	Checker   BISTBlock
	Timer     TimerBlock
}

// Reference Arty bitstream layout: 0x800-byte CSR blocks at 4-byte register
// stride, block IDs from the SoC's csr_map.
const (
	DefaultCSRBase = 0xe0000000

	blockStride = 0x800

	timerBlockID     = 4
	generatorBlockID = 22
	checkerBlockID   = 23
)

// MapAt lays out the three blocks for a bitstream whose CSR decoder sits
// at base with the given block indices. Block stride and register order
// follow the reference gateware; only the indices move between builds.
func MapAt(base uint32, timerBlock, generatorBlock, checkerBlock uint32) Map {
	gen := base + generatorBlock*blockStride
	chk := base + checkerBlock*blockStride
	tim := base + timerBlock*blockStride

	return Map{
		Generator: BISTBlock{
			Present: true,
			Reset:   gen + 0x00,
			Shoot:   gen + 0x04,
			Done:    gen + 0x08,
			Base:    gen + 0x0c,
			Length:  gen + 0x10,
		},
		Checker: BISTBlock{
			Present:    true,
			Reset:      chk + 0x00,
			Shoot:      chk + 0x04,
			Done:       chk + 0x08,
			Base:       chk + 0x0c,
			Length:     chk + 0x10,
			ErrorCount: chk + 0x14,
		},
		Timer: TimerBlock{
			Present:     true,
			Load:        tim + 0x00,
			Reload:      tim + 0x04,
			En:          tim + 0x08,
			UpdateValue: tim + 0x0c,
			Value:       tim + 0x10,
		},
	}
}

// DefaultMap returns the CSR layout of the reference Arty bitstream.
func DefaultMap() Map {
	return MapAt(DefaultCSRBase, timerBlockID, generatorBlockID, checkerBlockID)
}

// A RegisterDef names one CSR location. Used for validation and for probe
// listings.
type RegisterDef struct {
	Name string
	Addr uint32
}

// Registers lists every register of every present block, sorted by address.
func (m Map) Registers() []RegisterDef {
	var regs []RegisterDef

	if m.Generator.Present {
		regs = append(regs,
			RegisterDef{"generator_reset", m.Generator.Reset},
			RegisterDef{"generator_shoot", m.Generator.Shoot},
			RegisterDef{"generator_done", m.Generator.Done},
			RegisterDef{"generator_base", m.Generator.Base},
			RegisterDef{"generator_length", m.Generator.Length},
		)
	}

	if m.Checker.Present {
		regs = append(regs,
			RegisterDef{"checker_reset", m.Checker.Reset},
			RegisterDef{"checker_shoot", m.Checker.Shoot},
			RegisterDef{"checker_done", m.Checker.Done},
			RegisterDef{"checker_base", m.Checker.Base},
			RegisterDef{"checker_length", m.Checker.Length},
			RegisterDef{"checker_error_count", m.Checker.ErrorCount},
		)
	}

	if m.Timer.Present {
		regs = append(regs,
			RegisterDef{"timer0_load", m.Timer.Load},
			RegisterDef{"timer0_reload", m.Timer.Reload},
			RegisterDef{"timer0_en", m.Timer.En},
			RegisterDef{"timer0_update_value", m.Timer.UpdateValue},
			RegisterDef{"timer0_value", m.Timer.Value},
		)
	}

	sort.Slice(regs, func(i, j int) bool { return regs[i].Addr < regs[j].Addr })

	return regs
}

// Validate checks that the map can carry a self-test: all three blocks
// present, every register address set and 4-byte aligned, the checker
// equipped with an error counter, and no two registers sharing an address.
func (m Map) Validate() error {
	if !m.Generator.Present {
		return fmt.Errorf("csr map: generator block absent")
	}
	if !m.Checker.Present {
		return fmt.Errorf("csr map: checker block absent")
	}
	if !m.Timer.Present {
		return fmt.Errorf("csr map: timer block absent")
	}
	if m.Checker.ErrorCount == 0 {
		return fmt.Errorf("csr map: checker has no error_count register")
	}

	seen := make(map[uint32]string)
	for _, reg := range m.Registers() {
		if reg.Addr == 0 {
			return fmt.Errorf("csr map: %s address not set", reg.Name)
		}
		if reg.Addr%4 != 0 {
			return fmt.Errorf("csr map: %s address 0x%08x not 32-bit aligned",
				reg.Name, reg.Addr)
		}
		if other, ok := seen[reg.Addr]; ok {
			return fmt.Errorf("csr map: %s and %s share address 0x%08x",
				other, reg.Name, reg.Addr)
		}
		seen[reg.Addr] = reg.Name
	}

	return nil
}
