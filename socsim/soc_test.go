package socsim

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/soclab/membist/bist"
	"github.com/soclab/membist/csr"
)

var _ = Describe("SoC", func() {
	var (
		engine sim.Engine
		soc    *SoC
		bus    csr.Bus
		m      csr.Map
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		soc = Builder{}.
			WithEngine(engine).
			WithMemoryBytes(1 * mem.MB).
			Build("SoC")
		bus = soc.Bus()
		m = csr.DefaultMap()
	})

	write32 := func(addr, v uint32) {
		ExpectWithOffset(1, bus.Write32(addr, v)).To(Succeed())
	}

	read32 := func(addr uint32) uint32 {
		v, err := bus.Read32(addr)
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		return v
	}

	// runPhase drives one block through the same register sequence the
	// firmware uses and returns the elapsed timer ticks.
	runPhase := func(blk csr.BISTBlock, beats uint32) uint32 {
		write32(blk.Reset, 1)
		write32(blk.Base, 0)
		write32(blk.Length, beats)
		write32(m.Timer.En, 0)
		write32(m.Timer.Load, 0xffffffff)
		write32(m.Timer.En, 1)
		write32(blk.Shoot, 1)
		ExpectWithOffset(1, read32(blk.Done)).To(Equal(uint32(1)))
		write32(m.Timer.UpdateValue, 1)
		return 0xffffffff - read32(m.Timer.Value)
	}

	It("completes a write phase in a plausible number of ticks", func() {
		const beats = 4096

		ticks := runPhase(m.Generator, beats)

		Expect(soc.Generator.done()).To(BeTrue())
		Expect(ticks).To(BeNumerically(">=", beats))
		Expect(ticks).To(BeNumerically("<=", 8*beats))
	})

	It("stores the pattern into DRAM", func() {
		runPhase(m.Generator, 16)

		data, err := soc.DRAM.Storage.Read(0, 16*beatBytes)
		Expect(err).ToNot(HaveOccurred())
		for k := uint32(0); k < 16; k++ {
			Expect(data[k*beatBytes : (k+1)*beatBytes]).
				To(Equal(patternBeat(k)))
		}
	})

	It("reads back clean after a write phase", func() {
		runPhase(m.Generator, 1024)
		runPhase(m.Checker, 1024)

		Expect(read32(m.Checker.ErrorCount)).To(BeZero())
	})

	It("counts exactly the beats corrupted between phases", func() {
		runPhase(m.Generator, 1024)

		for _, beat := range []uint64{3, 500, 1023} {
			err := soc.DRAM.Storage.Write(beat*beatBytes+4, []byte{0xde, 0xad})
			Expect(err).ToNot(HaveOccurred())
		}

		runPhase(m.Checker, 1024)

		Expect(read32(m.Checker.ErrorCount)).To(Equal(uint32(3)))
	})

	It("keeps done low until shoot", func() {
		write32(m.Generator.Reset, 1)
		write32(m.Generator.Base, 0)
		write32(m.Generator.Length, 64)
		Expect(read32(m.Generator.Done)).To(BeZero())

		write32(m.Generator.Shoot, 1)
		Expect(read32(m.Generator.Done)).To(Equal(uint32(1)))
	})

	It("advances simulated time while a transfer runs", func() {
		before := engine.CurrentTime()

		runPhase(m.Generator, 256)

		Expect(float64(engine.CurrentTime())).
			To(BeNumerically(">", float64(before)))
	})

	It("reads configuration registers back", func() {
		write32(m.Checker.Base, 0x200)
		write32(m.Checker.Length, 77)
		write32(m.Timer.Load, 0x1234)

		Expect(read32(m.Checker.Base)).To(Equal(uint32(0x200)))
		Expect(read32(m.Checker.Length)).To(Equal(uint32(77)))
		Expect(read32(m.Timer.Load)).To(Equal(uint32(0x1234)))
	})

	It("rejects unmapped addresses", func() {
		_, err := bus.Read32(0xdead0000)
		Expect(err).To(HaveOccurred())

		Expect(bus.Write32(0xdead0000, 1)).ToNot(Succeed())
	})

	It("rejects writes to read-only registers", func() {
		Expect(bus.Write32(m.Generator.Done, 1)).ToNot(Succeed())
		Expect(bus.Write32(m.Checker.Done, 1)).ToNot(Succeed())
		Expect(bus.Write32(m.Checker.ErrorCount, 0)).ToNot(Succeed())
		Expect(bus.Write32(m.Timer.Value, 0)).ToNot(Succeed())
	})
})

var _ = Describe("SoC driven by the Tester", func() {
	It("passes the full self-test", func() {
		engine := sim.NewSerialEngine()
		soc := Builder{}.
			WithEngine(engine).
			WithMemoryBytes(1 * mem.MB).
			Build("SoC")

		cfg := bist.DefaultConfig()
		cfg.TransferBytes = 1024 * 1024

		var progress bytes.Buffer
		tester := bist.TesterBuilder{}.
			WithBus(soc.Bus()).
			WithConfig(cfg).
			WithProgress(&progress).
			Build()

		res, err := tester.Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(res.Passed()).To(BeTrue())
		Expect(res.Errors).To(BeZero())
		Expect(res.Write.Ticks).ToNot(BeZero())
		Expect(res.Read.Ticks).ToNot(BeZero())
		Expect(progress.String()).To(HavePrefix("writing 1 Mbytes..."))
		Expect(progress.String()).To(HaveSuffix("errors: 0\n"))
	})

	It("supports back-to-back runs against one device", func() {
		engine := sim.NewSerialEngine()
		soc := Builder{}.
			WithEngine(engine).
			WithMemoryBytes(1 * mem.MB).
			Build("SoC")

		cfg := bist.DefaultConfig()
		cfg.TransferBytes = 64 * 1024

		for i := 0; i < 2; i++ {
			tester := bist.TesterBuilder{}.
				WithBus(soc.Bus()).
				WithConfig(cfg).
				Build()

			res, err := tester.Run()

			Expect(err).ToNot(HaveOccurred())
			Expect(res.Passed()).To(BeTrue())
		}
	})
})
