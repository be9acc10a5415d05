package socsim

import (
	"math"

	"github.com/sarchlab/akita/v4/sim"
)

// Timer models the SoC's 32-bit down-counting timer. It schedules no
// events: the live count is derived from the engine clock whenever the
// software latches or freezes it, so a running timer costs nothing until
// somebody looks at it.
//
// Only one-shot mode is modeled. The reload register is plain storage;
// a counter that reaches zero stays there.
type Timer struct {
	now     func() sim.VTimeInSec
	clockHz uint64

	load   uint32
	reload uint32
	en     bool
	value  uint32

	// count is the counter content at the instant since was captured.
	// While the timer runs, the live count is count minus the cycles
	// elapsed since then.
	count uint32
	since sim.VTimeInSec
}

// writeLoad stores the load value. While the timer is disabled the
// counter tracks the load register, so the transfer happens here.
func (t *Timer) writeLoad(v uint32) {
	t.load = v
	if !t.en {
		t.count = v
	}
}

func (t *Timer) writeReload(v uint32) {
	t.reload = v
}

// writeEn starts or freezes the counter. Enabling an already-running
// timer or disabling a stopped one changes nothing.
func (t *Timer) writeEn(en bool) {
	if en == t.en {
		return
	}

	if en {
		t.since = t.now()
	} else {
		t.count = t.current()
	}
	t.en = en
}

// latch captures the live count into the value register, the
// update_value pulse.
func (t *Timer) latch() {
	t.value = t.current()

	Trace("Timer",
		"Behavior", "Latch",
		"Time", float64(t.now()*1e9),
		"Value", t.value,
	)
}

// current derives the live count from the engine clock, saturating at
// zero once the window is exhausted.
func (t *Timer) current() uint32 {
	if !t.en {
		return t.count
	}

	elapsed := float64(t.now()-t.since) * float64(t.clockHz)
	cycles := uint64(math.Round(elapsed))
	if cycles >= uint64(t.count) {
		return 0
	}

	return t.count - uint32(cycles)
}
