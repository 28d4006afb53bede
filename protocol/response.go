package protocol

import (
	"fmt"
)

const (
	// MaxWaitSeconds is the largest wait the response frame can carry. On
	// the wire it means "this long or longer".
	MaxWaitSeconds = 1<<6 - 1

	flagRejected = 1 << 1
	payloadShift = 2
	reasonMask   = 0x3
	reservedMask = 0xf0
)

// RejectReason says why an order could not be made. The ordinal is the code
// carried on the wire.
type RejectReason uint8

const (
	ParityFault RejectReason = iota
	InsufficientWater
	NoCupCapacity
	InsufficientWaterAndNoCupCapacity
)

var reasonNames = [...]string{
	ParityFault:                       "server_parity_bit_error",
	InsufficientWater:                 "no_water",
	NoCupCapacity:                     "full_bin",
	InsufficientWaterAndNoCupCapacity: "no_water_and_full_bin",
}

func (r RejectReason) String() string {
	if int(r) >= len(reasonNames) {
		return fmt.Sprintf("RejectReason(%d)", uint8(r))
	}

	return reasonNames[r]
}

// Code returns the wire code of the reason.
func (r RejectReason) Code() uint8 {
	return uint8(r)
}

// BrewOutcome is the server's answer to a BrewRequest. When Rejected is false
// the cup is ready in WaitSeconds; Saturated means the real wait is longer
// than the frame can say and WaitSeconds was clamped to MaxWaitSeconds.
type BrewOutcome struct {
	Rejected bool
	Reason   RejectReason

	WaitSeconds uint8
	Saturated   bool
}

// Accepted builds an accepted outcome from the full wait in seconds.
func Accepted(waitSeconds uint32) BrewOutcome {
	if waitSeconds > MaxWaitSeconds {
		return BrewOutcome{WaitSeconds: MaxWaitSeconds, Saturated: true}
	}

	return BrewOutcome{WaitSeconds: uint8(waitSeconds)}
}

// Rejected builds a rejected outcome.
func Rejected(reason RejectReason) BrewOutcome {
	return BrewOutcome{Rejected: true, Reason: reason}
}

func (o BrewOutcome) String() string {
	switch {
	case o.Rejected:
		return fmt.Sprintf("Error %d - %s", o.Reason.Code(), o.Reason)
	case o.Saturated:
		return fmt.Sprintf("Coffee ready in %d seconds or more.", o.WaitSeconds)
	default:
		return fmt.Sprintf("Coffee ready in %ds.", o.WaitSeconds)
	}
}

// EncodeResponse packs an outcome into its wire form. Waits above
// MaxWaitSeconds are clamped.
func EncodeResponse(outcome BrewOutcome) (byte, error) {
	var v uint

	if outcome.Rejected {
		if outcome.Reason > InsufficientWaterAndNoCupCapacity {
			return 0, fmt.Errorf("Failed to encode %s: %w", outcome.Reason, ErrUnknownReason)
		}

		v = uint(outcome.Reason)<<payloadShift | flagRejected
	} else {
		wait := uint(outcome.WaitSeconds)
		if wait > MaxWaitSeconds {
			wait = MaxWaitSeconds
		}

		v = wait << payloadShift
	}

	v |= parity(v)
	return byte(v), nil
}

// DecodeResponse unpacks a response frame. An accepted response carrying
// MaxWaitSeconds decodes as Saturated since the sender may have clamped it.
func DecodeResponse(frame byte) (BrewOutcome, error) {
	v := uint(frame)

	if parity(v) != v&1 {
		return BrewOutcome{}, ErrParityFault
	}

	if v&flagRejected == 0 {
		wait := uint8(v >> payloadShift)
		return BrewOutcome{
			WaitSeconds: wait,
			Saturated:   wait == MaxWaitSeconds,
		}, nil
	}

	if v&reservedMask != 0 {
		return BrewOutcome{}, fmt.Errorf("Failed to decode response %08b: %w", frame, ErrResponseReservedBits)
	}

	return Rejected(RejectReason(v >> payloadShift & reasonMask)), nil
}
