// Package socsim models the SoC under test as an akita simulation: the
// generator and checker traffic blocks, the DRAM they exercise and the
// hardware timer, exposed through the same register bus the hardware
// backends implement. It exists so the self-test can run bit-for-bit
// without a board attached.
package socsim

import (
	"github.com/sarchlab/akita/v4/mem/idealmemcontroller"
	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/sim/directconnection"

	"github.com/soclab/membist/csr"
)

const (
	// defaultFreq matches the reference platform's 100 MHz system clock.
	defaultFreq = 100 * sim.MHz

	// defaultMemoryBytes sizes the DRAM model to hold the reference
	// diagnostic's 64 MiB transfer.
	defaultMemoryBytes = 64 * mem.MB

	// dramLatency is the memory model's fixed access latency in cycles.
	dramLatency = 10
)

// SoC is the simulated device. The traffic blocks and the DRAM are public
// so tests can inspect transfer state and corrupt stored data between
// phases.
type SoC struct {
	engine sim.Engine
	csrMap csr.Map

	Generator *Generator
	Checker   *Checker
	Timer     *Timer
	DRAM      *idealmemcontroller.Comp
}

// Builder can build simulated SoCs.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	memoryBytes uint64
	csrMap      *csr.Map
}

// WithEngine sets the engine that drives the simulation. Mandatory.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the system clock. Defaults to 100 MHz.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithMemoryBytes sets the DRAM size. Defaults to 64 MiB.
func (b Builder) WithMemoryBytes(n uint64) Builder {
	b.memoryBytes = n
	return b
}

// WithCSRMap sets the register layout the bus adapter decodes. Defaults
// to csr.DefaultMap().
func (b Builder) WithCSRMap(m csr.Map) Builder {
	b.csrMap = &m
	return b
}

// Build creates the SoC.
func (b Builder) Build(name string) *SoC {
	if b.engine == nil {
		panic("socsim: soc needs an engine")
	}

	freq := b.freq
	if freq == 0 {
		freq = defaultFreq
	}
	memoryBytes := b.memoryBytes
	if memoryBytes == 0 {
		memoryBytes = defaultMemoryBytes
	}
	csrMap := csr.DefaultMap()
	if b.csrMap != nil {
		csrMap = *b.csrMap
	}
	if err := csrMap.Validate(); err != nil {
		panic(err)
	}

	s := &SoC{
		engine: b.engine,
		csrMap: csrMap,
	}

	s.DRAM = idealmemcontroller.MakeBuilder().
		WithEngine(b.engine).
		WithNewStorage(memoryBytes).
		Build(name + ".DRAM")
	s.DRAM.Freq = freq
	s.DRAM.Latency = dramLatency

	dramPort := s.DRAM.GetPortByName("Top")

	s.Generator = GeneratorBuilder{}.
		WithEngine(b.engine).
		WithFreq(freq).
		WithDRAM(dramPort.AsRemote()).
		Build(name + ".Generator")

	s.Checker = CheckerBuilder{}.
		WithEngine(b.engine).
		WithFreq(freq).
		WithDRAM(dramPort.AsRemote()).
		Build(name + ".Checker")

	conn := directconnection.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(freq).
		Build(name + ".Fabric")
	conn.PlugIn(dramPort)
	conn.PlugIn(s.Generator.memPort)
	conn.PlugIn(s.Checker.memPort)

	s.Timer = &Timer{
		now:     b.engine.CurrentTime,
		clockHz: uint64(freq),
	}

	return s
}

// settle runs the simulation until no component has work left, so the
// next register read observes stable device state.
func (s *SoC) settle() error {
	return s.engine.Run()
}
