package protocol

import (
	"io"
)

// WriteRequest encodes req and writes the whole frame to w.
func WriteRequest(w io.Writer, req BrewRequest) error {
	frame, err := EncodeRequest(req)
	if err != nil {
		return err
	}

	return writeAll(w, frame[:])
}

// WriteResponse encodes outcome and writes the whole frame to w.
func WriteResponse(w io.Writer, outcome BrewOutcome) error {
	frame, err := EncodeResponse(outcome)
	if err != nil {
		return err
	}

	return writeAll(w, []byte{frame})
}

// writeAll keeps writing until data is gone or w fails.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}

		if n == 0 {
			return io.ErrShortWrite
		}

		data = data[n:]
	}

	return nil
}
