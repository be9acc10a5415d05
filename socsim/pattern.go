package socsim

import "encoding/binary"

// beatBytes is the width of one DRAM beat, 128 bits like the reference
// gateware. The generator and the checker move data in whole beats, and
// the length registers count them.
const beatBytes = 16

// patternBeat returns the payload of beat k of the deterministic test
// pattern: four little-endian 32-bit words counting up from k*4. The
// checker recomputes the pattern on its own, so a corrupted beat is
// caught no matter where along the path it was damaged.
func patternBeat(k uint32) []byte {
	buf := make([]byte, beatBytes)
	for w := uint32(0); w < beatBytes/4; w++ {
		binary.LittleEndian.PutUint32(buf[w*4:], k*4+w)
	}
	return buf
}

// makeBeatGen returns a closure yielding consecutive pattern beats
// starting at beat start, the order the generator streams them out in.
func makeBeatGen(start uint32) func() (uint32, []byte) {
	next := start
	return func() (uint32, []byte) {
		k := next
		next++
		return k, patternBeat(k)
	}
}
