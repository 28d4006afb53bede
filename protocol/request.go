package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// RequestSize is the length of a request frame in bytes
	RequestSize = 2

	// MaxVolume is the largest volume the request frame can carry, in ml
	MaxVolume = 1<<volumeBits - 1

	volumeBits  = 9
	flavorBits  = 5
	volumeShift = 1
	flavorShift = volumeShift + volumeBits

	volumeMask = 1<<volumeBits - 1
	flavorMask = 1<<flavorBits - 1
)

// BrewRequest asks for one cup of Flavor holding VolumeML milliliters.
type BrewRequest struct {
	Flavor   Flavor
	VolumeML uint16
}

func (r BrewRequest) String() string {
	return fmt.Sprintf("%dml %s", r.VolumeML, r.Flavor)
}

// EncodeRequest packs a request into its wire form.
func EncodeRequest(req BrewRequest) ([RequestSize]byte, error) {
	var frame [RequestSize]byte

	if !req.Flavor.Valid() {
		return frame, fmt.Errorf("Failed to encode %s: %w", req, ErrUnknownFlavor)
	}

	if req.VolumeML > MaxVolume {
		return frame, fmt.Errorf("Failed to encode %s: %w", req, ErrVolumeTooLarge)
	}

	v := uint(req.Flavor)<<flavorShift | uint(req.VolumeML)<<volumeShift
	v |= parity(v)

	binary.LittleEndian.PutUint16(frame[:], uint16(v))
	return frame, nil
}

// DecodeRequest unpacks a request frame.
//
// A frame that fails its parity check returns ErrParityFault. A frame with
// a good parity bit but an undefined flavor index returns ErrUnknownFlavor;
// the volume is still reported in that case.
func DecodeRequest(frame [RequestSize]byte) (BrewRequest, error) {
	v := uint(binary.LittleEndian.Uint16(frame[:]))

	if parity(v) != v&1 {
		return BrewRequest{}, ErrParityFault
	}

	req := BrewRequest{
		VolumeML: uint16(v >> volumeShift & volumeMask),
		Flavor:   Flavor(v >> flavorShift & flavorMask),
	}

	if !req.Flavor.Valid() {
		return req, fmt.Errorf("Flavor index %d: %w", uint8(req.Flavor), ErrUnknownFlavor)
	}

	return req, nil
}
