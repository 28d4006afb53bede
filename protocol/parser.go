package protocol

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrParityFault          = errors.New("Frame is corrupted, its parity bit does not match")
	ErrUnknownFlavor        = errors.New("Flavor is not one the machine knows")
	ErrVolumeTooLarge       = errors.New("Volume does not fit in a request frame")
	ErrUnknownReason        = errors.New("Reject reason has no wire code")
	ErrResponseReservedBits = errors.New("Response is malformed, reserved bits are set")
	ErrShortFrame           = errors.New("Frame is truncated, the peer closed before sending all of it")
)

// ReadRequest reads exactly one request frame from r and decodes it.
//
// Transport failures are returned as is (or as ErrShortFrame when the peer
// hung up mid frame). Decode failures are returned alongside whatever could
// be decoded, so callers can tell them apart with errors.Is.
func ReadRequest(r io.Reader) (BrewRequest, error) {
	var frame [RequestSize]byte

	if err := readFull(r, frame[:]); err != nil {
		return BrewRequest{}, err
	}

	return DecodeRequest(frame)
}

// ReadResponse reads exactly one response frame from r and decodes it.
func ReadResponse(r io.Reader) (BrewOutcome, error) {
	var frame [1]byte

	if err := readFull(r, frame[:]); err != nil {
		return BrewOutcome{}, err
	}

	return DecodeResponse(frame[0])
}

// IsTransportError reports whether err came from the byte stream rather than
// from decoding a frame.
func IsTransportError(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrParityFault) &&
		!errors.Is(err, ErrUnknownFlavor) &&
		!errors.Is(err, ErrResponseReservedBits)
}

func readFull(r io.Reader, buf []byte) error {
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("Read %d of %d bytes: %w", n, len(buf), ErrShortFrame)
		}

		return err
	}

	return nil
}
