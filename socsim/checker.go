package socsim

import (
	"bytes"

	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"
)

// Checker models the read-path traffic block. Once shot, it reads the
// transferred region back one beat per cycle, recomputes the expected
// pattern for each beat, and counts the beats that came back damaged.
type Checker struct {
	*sim.TickingComponent

	memPort sim.Port
	dram    sim.RemotePort

	base   uint32
	length uint32

	shot     bool
	sent     uint32
	received uint32
	errors   uint32

	// pending maps an outstanding read request to the beat it covers, so
	// responses can be matched no matter the order they return in.
	pending map[string]uint32
}

// CheckerBuilder can create checkers.
type CheckerBuilder struct {
	engine sim.Engine
	freq   sim.Freq
	dram   sim.RemotePort
}

// WithEngine sets the engine.
func (b CheckerBuilder) WithEngine(engine sim.Engine) CheckerBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the block streams beats at.
func (b CheckerBuilder) WithFreq(freq sim.Freq) CheckerBuilder {
	b.freq = freq
	return b
}

// WithDRAM sets the memory controller port the block reads from.
func (b CheckerBuilder) WithDRAM(dram sim.RemotePort) CheckerBuilder {
	b.dram = dram
	return b
}

// Build creates the checker.
func (b CheckerBuilder) Build(name string) *Checker {
	c := &Checker{
		dram:    b.dram,
		pending: make(map[string]uint32),
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	c.memPort = sim.NewPort(c, 16, 16, name+".Mem")
	c.AddPort("Mem", c.memPort)

	return c
}

// Tick issues the next read and consumes one returned beat.
func (c *Checker) Tick() bool {
	madeProgress := c.doSend()
	madeProgress = c.doRecv() || madeProgress

	return madeProgress
}

func (c *Checker) doSend() bool {
	if !c.shot || c.sent >= c.length {
		return false
	}
	if !c.memPort.CanSend() {
		return false
	}

	beat := c.sent
	req := mem.ReadReqBuilder{}.
		WithSrc(c.memPort.AsRemote()).
		WithDst(c.dram).
		WithAddress(uint64(c.base) + uint64(beat)*beatBytes).
		WithByteSize(beatBytes).
		Build()

	if err := c.memPort.Send(req); err != nil {
		panic("checker: send failed after CanSend")
	}
	c.pending[req.Meta().ID] = beat
	c.sent++

	return true
}

func (c *Checker) doRecv() bool {
	item := c.memPort.PeekIncoming()
	if item == nil {
		return false
	}

	rsp, ok := item.(*mem.DataReadyRsp)
	if !ok {
		panic("checker: unexpected message on mem port")
	}

	beat, ok := c.pending[rsp.RespondTo]
	if !ok {
		panic("checker: response to unknown request")
	}
	delete(c.pending, rsp.RespondTo)

	if !bytes.Equal(rsp.Data, patternBeat(beat)) {
		c.errors++
		Trace("Checker",
			"Behavior", "Mismatch",
			"Time", float64(c.Engine.CurrentTime()*1e9),
			"Beat", beat,
		)
	}
	c.received++

	if c.received == c.length {
		Trace("Checker",
			"Behavior", "Done",
			"Time", float64(c.Engine.CurrentTime()*1e9),
			"Beats", c.length,
			"Errors", c.errors,
		)
	}

	c.memPort.RetrieveIncoming()

	return true
}

func (c *Checker) reset() {
	c.shot = false
	c.sent = 0
	c.received = 0
	c.errors = 0
	c.pending = make(map[string]uint32)
}

func (c *Checker) setBase(v uint32) {
	c.base = v
}

func (c *Checker) setLength(v uint32) {
	c.length = v
}

// shoot starts the configured read-back.
func (c *Checker) shoot() {
	c.shot = true
	c.sent = 0
	c.received = 0
	c.errors = 0
	c.pending = make(map[string]uint32)

	Trace("Checker",
		"Behavior", "Shoot",
		"Time", float64(c.Engine.CurrentTime()*1e9),
		"Base", c.base,
		"Beats", c.length,
	)

	c.TickLater()
}

// done reports whether every beat was read back and compared.
func (c *Checker) done() bool {
	return c.shot && c.received == c.length
}

// errorCount returns the number of damaged beats seen so far.
func (c *Checker) errorCount() uint32 {
	return c.errors
}
