package socsim

import (
	"fmt"

	"github.com/soclab/membist/csr"
)

// Bus returns a register-bus view of the SoC. Every write that reaches a
// device settles the simulation before returning, so a subsequent read
// sees the transfer it triggered already finished: simulated time moves
// in bursts between register accesses instead of tracking wall time.
func (s *SoC) Bus() csr.Bus {
	return &busAdapter{soc: s}
}

type busAdapter struct {
	soc *SoC
}

func (a *busAdapter) Write32(addr uint32, value uint32) error {
	s := a.soc
	m := s.csrMap

	switch addr {
	case m.Generator.Reset:
		if value != 0 {
			s.Generator.reset()
		}
	case m.Generator.Shoot:
		if value != 0 {
			s.Generator.shoot()
		}
	case m.Generator.Base:
		s.Generator.setBase(value)
	case m.Generator.Length:
		s.Generator.setLength(value)

	case m.Checker.Reset:
		if value != 0 {
			s.Checker.reset()
		}
	case m.Checker.Shoot:
		if value != 0 {
			s.Checker.shoot()
		}
	case m.Checker.Base:
		s.Checker.setBase(value)
	case m.Checker.Length:
		s.Checker.setLength(value)

	case m.Timer.Load:
		s.Timer.writeLoad(value)
	case m.Timer.Reload:
		s.Timer.writeReload(value)
	case m.Timer.En:
		s.Timer.writeEn(value != 0)
	case m.Timer.UpdateValue:
		if value != 0 {
			s.Timer.latch()
		}

	case m.Generator.Done, m.Checker.Done, m.Checker.ErrorCount,
		m.Timer.Value:
		return fmt.Errorf("socsim: register 0x%08x is read-only", addr)

	default:
		return fmt.Errorf("socsim: write to unmapped address 0x%08x", addr)
	}

	if err := s.settle(); err != nil {
		return fmt.Errorf("socsim: %w", err)
	}

	return nil
}

func (a *busAdapter) Read32(addr uint32) (uint32, error) {
	s := a.soc
	m := s.csrMap

	switch addr {
	// The pulse registers carry no state to read back.
	case m.Generator.Reset, m.Generator.Shoot,
		m.Checker.Reset, m.Checker.Shoot,
		m.Timer.UpdateValue:
		return 0, nil

	case m.Generator.Done:
		return boolToReg(s.Generator.done()), nil
	case m.Generator.Base:
		return s.Generator.base, nil
	case m.Generator.Length:
		return s.Generator.length, nil

	case m.Checker.Done:
		return boolToReg(s.Checker.done()), nil
	case m.Checker.Base:
		return s.Checker.base, nil
	case m.Checker.Length:
		return s.Checker.length, nil
	case m.Checker.ErrorCount:
		return s.Checker.errorCount(), nil

	case m.Timer.Load:
		return s.Timer.load, nil
	case m.Timer.Reload:
		return s.Timer.reload, nil
	case m.Timer.En:
		return boolToReg(s.Timer.en), nil
	case m.Timer.Value:
		return s.Timer.value, nil

	default:
		return 0, fmt.Errorf("socsim: read from unmapped address 0x%08x", addr)
	}
}

func boolToReg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
