package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"testing/iotest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/brewd/protocol"
)

var _ = Describe("Parsing", func() {
	Describe("ReadRequest()", func() {
		It("returns io.EOF if the peer sent nothing", func() {
			_, err := protocol.ReadRequest(bytes.NewReader(nil))
			Expect(err).To(MatchError(io.EOF))
			Expect(protocol.IsTransportError(err)).To(BeTrue())
		})

		It("returns an error if the peer hung up mid frame", func() {
			_, err := protocol.ReadRequest(bytes.NewReader([]byte{0x01}))
			Expect(errors.Is(err, protocol.ErrShortFrame)).To(BeTrue())
			Expect(protocol.IsTransportError(err)).To(BeTrue())
		})

		It("reads a frame that arrives one byte at a time", func() {
			frame, err := protocol.EncodeRequest(protocol.BrewRequest{Flavor: protocol.Cosi, VolumeML: 40})
			Expect(err).To(Succeed())

			req, err := protocol.ReadRequest(iotest.OneByteReader(bytes.NewReader(frame[:])))
			Expect(err).To(Succeed())
			Expect(req).To(Equal(protocol.BrewRequest{Flavor: protocol.Cosi, VolumeML: 40}))
		})

		It("only consumes a single frame", func() {
			frame, err := protocol.EncodeRequest(protocol.BrewRequest{Flavor: protocol.Dharkan, VolumeML: 90})
			Expect(err).To(Succeed())

			r := bytes.NewReader(append(frame[:], 0xff))
			_, err = protocol.ReadRequest(r)
			Expect(err).To(Succeed())
			Expect(r.Len()).To(Equal(1))
		})

		It("surfaces parity faults as decode errors", func() {
			frame, err := protocol.EncodeRequest(protocol.BrewRequest{Flavor: protocol.Dharkan, VolumeML: 90})
			Expect(err).To(Succeed())
			frame[1] ^= 0x04

			_, err = protocol.ReadRequest(bytes.NewReader(frame[:]))
			Expect(err).To(MatchError(protocol.ErrParityFault))
			Expect(protocol.IsTransportError(err)).To(BeFalse())
		})
	})

	Describe("ReadResponse()", func() {
		It("returns io.EOF if the server sent nothing", func() {
			_, err := protocol.ReadResponse(bytes.NewReader(nil))
			Expect(err).To(MatchError(io.EOF))
		})

		It("parses an accepted response", func() {
			frame, err := protocol.EncodeResponse(protocol.Accepted(12))
			Expect(err).To(Succeed())

			outcome, err := protocol.ReadResponse(bytes.NewReader([]byte{frame}))
			Expect(err).To(Succeed())
			Expect(outcome).To(Equal(protocol.Accepted(12)))
		})
	})

	Describe("Flavors", func() {
		It("parses every display name back to its flavor", func() {
			for _, flavor := range protocol.Flavors() {
				parsed, err := protocol.ParseFlavor(flavor.String())
				Expect(err).To(Succeed())
				Expect(parsed).To(Equal(flavor))
			}
		})

		It("is case sensitive", func() {
			_, err := protocol.ParseFlavor("roma")
			Expect(errors.Is(err, protocol.ErrUnknownFlavor)).To(BeTrue())
		})

		It("has eleven flavors in wire order", func() {
			Expect(protocol.Flavors()).To(HaveLen(11))
			Expect(protocol.Kazaar.String()).To(Equal("Kazaar"))
			Expect(protocol.Ciocattino).To(Equal(protocol.Flavor(10)))
		})

		It("names undefined indices without aliasing them", func() {
			Expect(protocol.Flavor(11).Valid()).To(BeFalse())
			Expect(protocol.Flavor(11).String()).To(Equal("Flavor(11)"))
		})
	})
})
