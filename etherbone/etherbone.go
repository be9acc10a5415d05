// Package etherbone speaks the Etherbone remote-bus protocol over UDP, as
// exposed by the LiteEth bridge on the SoC. It implements the small subset
// the register bus needs: probing the bridge and single 32-bit reads and
// writes.
package etherbone

import (
	"encoding/binary"
	"fmt"
)

const (
	magicHi = 0x4e
	magicLo = 0x6f

	protocolVersion = 1

	// Flag bits of header byte 2, low nibble.
	flagProbe      = 0x01
	flagProbeReply = 0x02
	flagNoReads    = 0x04

	// Header byte 3 advertises 32-bit address and port widths.
	widthField = 0x44

	byteEnableAll = 0x0f

	headerLen       = 8
	recordHeaderLen = 4
	wordLen         = 4
)

// putHeader fills the 8-byte packet header. Bytes 4 to 7 are padding.
func putHeader(p []byte, flags byte) {
	p[0] = magicHi
	p[1] = magicLo
	p[2] = protocolVersion<<4 | flags
	p[3] = widthField
}

// probePacket is a bare header with the probe flag set. The bridge answers
// with the same header carrying the probe-reply flag.
func probePacket() []byte {
	p := make([]byte, headerLen)
	putHeader(p, flagProbe)
	return p
}

// isProbeReply reports whether p acknowledges a probe.
func isProbeReply(p []byte) bool {
	return len(p) >= headerLen &&
		p[0] == magicHi && p[1] == magicLo &&
		p[2]>>4 == protocolVersion &&
		p[2]&flagProbeReply != 0
}

// readPacket requests one 32-bit word. The record carries rcount=1, a
// return address the bridge echoes back (unused here, left zero) and the
// target address, all big endian.
func readPacket(addr uint32) []byte {
	p := make([]byte, headerLen+recordHeaderLen+2*wordLen)
	putHeader(p, 0)

	rec := p[headerLen:]
	rec[1] = byteEnableAll
	rec[3] = 1 // rcount
	binary.BigEndian.PutUint32(rec[recordHeaderLen+wordLen:], addr)

	return p
}

// writePacket posts one 32-bit word. The record carries wcount=1, the
// target address and the value. Writes are not acknowledged.
func writePacket(addr uint32, value uint32) []byte {
	p := make([]byte, headerLen+recordHeaderLen+2*wordLen)
	putHeader(p, 0)

	rec := p[headerLen:]
	rec[1] = byteEnableAll
	rec[2] = 1 // wcount
	binary.BigEndian.PutUint32(rec[recordHeaderLen:], addr)
	binary.BigEndian.PutUint32(rec[recordHeaderLen+wordLen:], value)

	return p
}

// parseReadReply extracts the single word of a read response. The bridge
// models read data as a write back to the requester, so the reply record
// carries wcount=1, a base address and the value.
func parseReadReply(p []byte) (uint32, error) {
	if len(p) < headerLen+recordHeaderLen+2*wordLen {
		return 0, fmt.Errorf("short reply: %d bytes", len(p))
	}
	if p[0] != magicHi || p[1] != magicLo {
		return 0, fmt.Errorf("bad magic %#02x%02x", p[0], p[1])
	}
	if v := p[2] >> 4; v != protocolVersion {
		return 0, fmt.Errorf("unsupported protocol version %d", v)
	}

	rec := p[headerLen:]
	if wcount := rec[2]; wcount != 1 {
		return 0, fmt.Errorf("reply carries %d values, want 1", wcount)
	}

	return binary.BigEndian.Uint32(rec[recordHeaderLen+wordLen:]), nil
}
