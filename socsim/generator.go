package socsim

import (
	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"
)

// Generator models the write-path traffic block. Once shot, it streams
// the deterministic pattern into DRAM one beat per cycle and asserts done
// when the memory controller has acknowledged every beat.
type Generator struct {
	*sim.TickingComponent

	memPort sim.Port
	dram    sim.RemotePort

	// Configuration registers. A reset pulse does not touch them.
	base   uint32
	length uint32

	shot     bool
	nextBeat func() (uint32, []byte)
	sent     uint32
	acked    uint32
}

// GeneratorBuilder can create generators.
type GeneratorBuilder struct {
	engine sim.Engine
	freq   sim.Freq
	dram   sim.RemotePort
}

// WithEngine sets the engine.
func (b GeneratorBuilder) WithEngine(engine sim.Engine) GeneratorBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency the block streams beats at.
func (b GeneratorBuilder) WithFreq(freq sim.Freq) GeneratorBuilder {
	b.freq = freq
	return b
}

// WithDRAM sets the memory controller port the block writes into.
func (b GeneratorBuilder) WithDRAM(dram sim.RemotePort) GeneratorBuilder {
	b.dram = dram
	return b
}

// Build creates the generator.
func (b GeneratorBuilder) Build(name string) *Generator {
	g := &Generator{dram: b.dram}

	g.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, g)
	g.memPort = sim.NewPort(g, 16, 16, name+".Mem")
	g.AddPort("Mem", g.memPort)

	return g
}

// Tick emits the next pattern beat and consumes one acknowledgement.
func (g *Generator) Tick() bool {
	madeProgress := g.doSend()
	madeProgress = g.doRecv() || madeProgress

	return madeProgress
}

func (g *Generator) doSend() bool {
	if !g.shot || g.sent >= g.length {
		return false
	}
	if !g.memPort.CanSend() {
		return false
	}

	beat, data := g.nextBeat()
	req := mem.WriteReqBuilder{}.
		WithSrc(g.memPort.AsRemote()).
		WithDst(g.dram).
		WithAddress(uint64(g.base) + uint64(beat)*beatBytes).
		WithData(data).
		Build()

	if err := g.memPort.Send(req); err != nil {
		panic("generator: send failed after CanSend")
	}
	g.sent++

	return true
}

func (g *Generator) doRecv() bool {
	item := g.memPort.PeekIncoming()
	if item == nil {
		return false
	}

	if _, ok := item.(*mem.WriteDoneRsp); !ok {
		panic("generator: unexpected message on mem port")
	}
	g.acked++

	if g.acked == g.length {
		Trace("Generator",
			"Behavior", "Done",
			"Time", float64(g.Engine.CurrentTime()*1e9),
			"Beats", g.length,
		)
	}

	g.memPort.RetrieveIncoming()

	return true
}

// reset drops all transfer progress, matching the write-1-to-pulse reset
// register.
func (g *Generator) reset() {
	g.shot = false
	g.nextBeat = nil
	g.sent = 0
	g.acked = 0
}

func (g *Generator) setBase(v uint32) {
	g.base = v
}

func (g *Generator) setLength(v uint32) {
	g.length = v
}

// shoot starts the configured transfer.
func (g *Generator) shoot() {
	g.shot = true
	g.nextBeat = makeBeatGen(0)
	g.sent = 0
	g.acked = 0

	Trace("Generator",
		"Behavior", "Shoot",
		"Time", float64(g.Engine.CurrentTime()*1e9),
		"Base", g.base,
		"Beats", g.length,
	)

	g.TickLater()
}

// done reports whether every beat of the transfer was acknowledged. It
// reads as zero until the block is shot.
func (g *Generator) done() bool {
	return g.shot && g.acked == g.length
}
