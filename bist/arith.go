package bist

// timerLoadValue is written into the timer's load register before every
// phase. Counting down from the full 32-bit range gives the widest
// measurable window.
const timerLoadValue = 0xffffffff

// elapsedTicks converts a latched down-counter value into the number of
// ticks elapsed since arming.
func elapsedTicks(latched uint32) uint32 {
	return timerLoadValue - latched
}

// speedMbps derives megabits per second from a byte count, the timer's
// tick frequency and an elapsed tick count. The clock is divided by the
// tick count first, truncating, and the result is scaled to bits before
// the megabit division. Reordering any of the truncating steps changes
// the output, so this order is part of the measurement's contract.
// ticks must be non-zero.
func speedMbps(bytes, clockHz uint64, ticks uint32) uint64 {
	perTick := clockHz / uint64(ticks)
	return 8 * (bytes * perTick) / 1_000_000
}
