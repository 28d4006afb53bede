package protocol

import "math/bits"

// parity returns the even parity bit for v with bit 0 excluded.
func parity(v uint) uint {
	return uint(bits.OnesCount(v>>1) & 1)
}
