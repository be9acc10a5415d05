package socsim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"
)

var _ = Describe("Timer", func() {
	const clockHz = 100_000_000

	var (
		now   sim.VTimeInSec
		timer *Timer
	)

	BeforeEach(func() {
		now = 42
		timer = &Timer{
			now:     func() sim.VTimeInSec { return now },
			clockHz: clockHz,
		}
	})

	cycles := func(n uint64) sim.VTimeInSec {
		return sim.VTimeInSec(float64(n) / clockHz)
	}

	It("tracks the load register while disabled", func() {
		timer.writeLoad(1234)
		timer.latch()

		Expect(timer.value).To(Equal(uint32(1234)))
	})

	It("counts down once enabled", func() {
		timer.writeLoad(1000)
		timer.writeEn(true)

		now += cycles(400)
		timer.latch()

		Expect(timer.value).To(Equal(uint32(600)))
	})

	It("does not reload while running", func() {
		timer.writeLoad(1000)
		timer.writeEn(true)
		timer.writeLoad(5)

		now += cycles(10)
		timer.latch()

		Expect(timer.value).To(Equal(uint32(990)))
		Expect(timer.load).To(Equal(uint32(5)))
	})

	It("freezes the count on disable", func() {
		timer.writeLoad(1000)
		timer.writeEn(true)
		now += cycles(250)

		timer.writeEn(false)
		now += cycles(100_000)
		timer.latch()

		Expect(timer.value).To(Equal(uint32(750)))
	})

	It("treats a redundant enable as a no-op", func() {
		timer.writeLoad(1000)
		timer.writeEn(true)
		now += cycles(100)

		timer.writeEn(true)
		now += cycles(100)
		timer.latch()

		Expect(timer.value).To(Equal(uint32(800)))
	})

	It("saturates at zero instead of wrapping", func() {
		timer.writeLoad(100)
		timer.writeEn(true)

		now += cycles(1_000_000)
		timer.latch()

		Expect(timer.value).To(BeZero())
	})

	It("measures the firmware arm sequence exactly", func() {
		timer.writeEn(false)
		timer.writeLoad(0xffffffff)
		timer.writeEn(true)

		now += cycles(50_000_000)
		timer.latch()

		Expect(uint32(0xffffffff) - timer.value).To(Equal(uint32(50_000_000)))
	})
})
