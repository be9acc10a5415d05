package bist

import (
	"bytes"
	"errors"
	"time"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/soclab/membist/csr"
)

// fakeClock only advances when the polling loop sleeps, which makes the
// timeout path instant and deterministic.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
}

// expectPhase queues the exact register traffic of one transfer phase:
// reset, base, length, timer re-arm, shoot, zeroPolls not-done reads, one
// done read and the timer latch. The returned calls are meant for
// gomock.InOrder.
func expectPhase(
	bus *MockBus,
	m csr.Map,
	blk csr.BISTBlock,
	base uint32,
	beats uint32,
	latched uint32,
	zeroPolls int,
) []*gomock.Call {
	calls := []*gomock.Call{
		bus.EXPECT().Write32(blk.Reset, uint32(1)).Return(nil),
		bus.EXPECT().Write32(blk.Base, base).Return(nil),
		bus.EXPECT().Write32(blk.Length, beats).Return(nil),
		bus.EXPECT().Write32(m.Timer.En, uint32(0)).Return(nil),
		bus.EXPECT().Write32(m.Timer.Load, uint32(0xffffffff)).Return(nil),
		bus.EXPECT().Write32(m.Timer.En, uint32(1)).Return(nil),
		bus.EXPECT().Write32(blk.Shoot, uint32(1)).Return(nil),
	}

	for i := 0; i < zeroPolls; i++ {
		calls = append(calls,
			bus.EXPECT().Read32(blk.Done).Return(uint32(0), nil))
	}

	calls = append(calls,
		bus.EXPECT().Read32(blk.Done).Return(uint32(1), nil),
		bus.EXPECT().Write32(m.Timer.UpdateValue, uint32(1)).Return(nil),
		bus.EXPECT().Read32(m.Timer.Value).Return(latched, nil),
	)

	return calls
}

var _ = Describe("Tester", func() {
	// 64 MiB at 128 bits per beat.
	const defaultBeats = uint32(4_194_304)

	// 50M elapsed ticks at 100 MHz, the reference measurement.
	const fullRunLatched = uint32(0xffffffff - 50_000_000)

	var (
		mockCtrl *gomock.Controller
		bus      *MockBus
		m        csr.Map
		cfg      Config
		clock    *fakeClock
		out      *bytes.Buffer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		bus = NewMockBus(mockCtrl)
		m = csr.DefaultMap()
		cfg = DefaultConfig()
		clock = &fakeClock{now: time.Unix(0, 0)}
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newTester := func() *Tester {
		return TesterBuilder{}.
			WithBus(bus).
			WithMap(m).
			WithConfig(cfg).
			WithClock(clock).
			WithProgress(out).
			Build()
	}

	expectRun := func(writeLatched, readLatched, errorCount uint32) {
		var calls []*gomock.Call
		calls = append(calls, expectPhase(
			bus, m, m.Generator, cfg.BaseAddr, defaultBeats,
			writeLatched, 2)...)
		calls = append(calls, expectPhase(
			bus, m, m.Checker, cfg.BaseAddr, defaultBeats,
			readLatched, 0)...)
		calls = append(calls, bus.EXPECT().
			Read32(m.Checker.ErrorCount).
			Return(errorCount, nil))
		gomock.InOrder(calls...)
	}

	It("drives both phases in hardware register order", func() {
		expectRun(fullRunLatched, fullRunLatched, 0)

		res, err := newTester().Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(res.Write.Direction).To(Equal(Write))
		Expect(res.Write.Bytes).To(Equal(uint64(64 * 1024 * 1024)))
		Expect(res.Write.Ticks).To(Equal(uint32(50_000_000)))
		Expect(res.Write.Mbps).To(Equal(uint64(1073)))
		Expect(res.Read.Direction).To(Equal(Read))
		Expect(res.Read.Mbps).To(Equal(uint64(1073)))
		Expect(res.Errors).To(BeZero())
		Expect(res.Passed()).To(BeTrue())
	})

	It("prints the firmware progress text verbatim", func() {
		expectRun(fullRunLatched, fullRunLatched, 0)

		_, err := newTester().Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(out.String()).To(Equal(
			"writing 64 Mbytes.../ 1073 Mbps\n" +
				"reading 64 Mbytes.../ 1073 Mbps\n" +
				"errors: 0\n"))
	})

	It("programs a non-zero DRAM base into both blocks", func() {
		cfg.BaseAddr = 0x0010_0000
		expectRun(fullRunLatched, fullRunLatched, 0)

		_, err := newTester().Run()

		Expect(err).ToNot(HaveOccurred())
	})

	It("reads the error counter once, after the read phase is done", func() {
		// The counter expectation in expectRun defaults to exactly one
		// call, so a second read would fail the controller.
		expectRun(fullRunLatched, fullRunLatched, 3)

		res, err := newTester().Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(res.Errors).To(Equal(uint32(3)))
		Expect(res.Passed()).To(BeFalse())
		Expect(out.String()).To(HaveSuffix("errors: 3\n"))
	})

	It("keeps running when one phase elapses zero ticks", func() {
		expectRun(0xffffffff, fullRunLatched, 0)

		res, err := newTester().Run()

		Expect(err).ToNot(HaveOccurred())
		Expect(res.Write.Valid()).To(BeFalse())
		Expect(errors.Is(res.Write.Err, ErrMeasurementInvalid)).To(BeTrue())
		Expect(res.Write.Ticks).To(BeZero())
		Expect(res.Write.Mbps).To(BeZero())
		Expect(res.Read.Valid()).To(BeTrue())
		Expect(res.Read.Mbps).To(Equal(uint64(1073)))
		Expect(res.Passed()).To(BeFalse())
		Expect(out.String()).To(ContainSubstring(
			"writing 64 Mbytes.../ measurement invalid\n"))
	})

	It("aborts with ErrDeviceTimeout when done never asserts", func() {
		cfg.PollTimeout = 10 * time.Millisecond
		cfg.PollInterval = time.Millisecond

		gomock.InOrder(
			bus.EXPECT().Write32(m.Generator.Reset, uint32(1)).Return(nil),
			bus.EXPECT().Write32(m.Generator.Base, uint32(0)).Return(nil),
			bus.EXPECT().Write32(m.Generator.Length, defaultBeats).Return(nil),
			bus.EXPECT().Write32(m.Timer.En, uint32(0)).Return(nil),
			bus.EXPECT().Write32(m.Timer.Load, uint32(0xffffffff)).Return(nil),
			bus.EXPECT().Write32(m.Timer.En, uint32(1)).Return(nil),
			bus.EXPECT().Write32(m.Generator.Shoot, uint32(1)).Return(nil),
		)
		bus.EXPECT().
			Read32(m.Generator.Done).
			Return(uint32(0), nil).
			AnyTimes()

		_, err := newTester().Run()

		Expect(errors.Is(err, ErrDeviceTimeout)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("generator"))
	})

	It("propagates a bus fault with its register context", func() {
		busErr := errors.New("bridge unreachable")
		bus.EXPECT().
			Write32(m.Generator.Reset, uint32(1)).
			Return(busErr)

		_, err := newTester().Run()

		Expect(err).To(MatchError(busErr))
		Expect(err.Error()).To(ContainSubstring("generator reset"))
	})

	It("rejects a transfer that is not a whole number of beats", func() {
		cfg.TransferBytes = 100

		_, err := newTester().Run()

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("beats"))
	})

	It("rejects a register map with no error counter", func() {
		m.Checker.ErrorCount = 0

		_, err := newTester().Run()

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("TesterBuilder", func() {
	It("panics without a bus", func() {
		Expect(func() {
			TesterBuilder{}.Build()
		}).To(Panic())
	})

	It("falls back to the reference defaults", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		bus := NewMockBus(mockCtrl)

		t := TesterBuilder{}.WithBus(bus).Build()

		Expect(t.cfg).To(Equal(DefaultConfig()))
		Expect(t.csrMap.Validate()).To(Succeed())
		Expect(t.clock).ToNot(BeNil())
		Expect(t.progress).ToNot(BeNil())
	})
})
