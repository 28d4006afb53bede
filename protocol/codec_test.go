package protocol_test

import (
	"encoding/binary"
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/brewd/protocol"
)

var _ = Describe("Codec", func() {
	Describe("EncodeRequest() / DecodeRequest()", func() {
		It("round trips every flavor and volume", func() {
			for _, flavor := range protocol.Flavors() {
				for volume := uint16(0); volume <= protocol.MaxVolume; volume++ {
					req := protocol.BrewRequest{Flavor: flavor, VolumeML: volume}

					frame, err := protocol.EncodeRequest(req)
					Expect(err).To(Succeed())

					decoded, err := protocol.DecodeRequest(frame)
					Expect(err).To(Succeed())
					Expect(decoded).To(Equal(req))
				}
			}
		})

		It("lays the fields out low byte first", func() {
			frame, err := protocol.EncodeRequest(protocol.BrewRequest{Flavor: protocol.Roma, VolumeML: 250})
			Expect(err).To(Succeed())

			v := binary.LittleEndian.Uint16(frame[:])
			Expect(v >> 10 & 0x1f).To(Equal(uint16(protocol.Roma)))
			Expect(v >> 1 & 0x1ff).To(Equal(uint16(250)))
			Expect(v >> 15).To(BeZero())
			Expect(frame[0]).To(Equal(byte(v)))
			Expect(frame[1]).To(Equal(byte(v >> 8)))
		})

		It("sets the parity bit so the frame has an even number of ones", func() {
			for _, req := range []protocol.BrewRequest{
				{Flavor: protocol.Kazaar, VolumeML: 0},
				{Flavor: protocol.Kazaar, VolumeML: 1},
				{Flavor: protocol.Ciocattino, VolumeML: 330},
				{Flavor: protocol.Vanilio, VolumeML: 511},
			} {
				frame, err := protocol.EncodeRequest(req)
				Expect(err).To(Succeed())

				v := binary.LittleEndian.Uint16(frame[:])
				ones := 0
				for ; v != 0; v >>= 1 {
					ones += int(v & 1)
				}
				Expect(ones % 2).To(BeZero())
			}
		})

		It("refuses to encode an undefined flavor", func() {
			_, err := protocol.EncodeRequest(protocol.BrewRequest{Flavor: 11, VolumeML: 10})
			Expect(errors.Is(err, protocol.ErrUnknownFlavor)).To(BeTrue())
		})

		It("refuses to encode a volume wider than 9 bits", func() {
			_, err := protocol.EncodeRequest(protocol.BrewRequest{Flavor: protocol.Roma, VolumeML: 512})
			Expect(errors.Is(err, protocol.ErrVolumeTooLarge)).To(BeTrue())
		})

		It("detects any single flipped bit", func() {
			frame, err := protocol.EncodeRequest(protocol.BrewRequest{Flavor: protocol.Livanto, VolumeML: 123})
			Expect(err).To(Succeed())

			for bit := 0; bit < 16; bit++ {
				corrupted := frame
				corrupted[bit/8] ^= 1 << (bit % 8)

				_, err := protocol.DecodeRequest(corrupted)
				Expect(err).To(MatchError(protocol.ErrParityFault), "bit %d", bit)
			}
		})

		It("reports an undefined flavor index as its own error", func() {
			// flavor 31, volume 7, parity computed over bits 1-15
			v := uint16(31)<<10 | uint16(7)<<1
			ones := 0
			for x := v >> 1; x != 0; x >>= 1 {
				ones += int(x & 1)
			}
			v |= uint16(ones & 1)

			var frame [protocol.RequestSize]byte
			binary.LittleEndian.PutUint16(frame[:], v)

			req, err := protocol.DecodeRequest(frame)
			Expect(errors.Is(err, protocol.ErrUnknownFlavor)).To(BeTrue())
			Expect(errors.Is(err, protocol.ErrParityFault)).To(BeFalse())
			Expect(req.VolumeML).To(Equal(uint16(7)))
		})

		// Parity covers bits 1-15 on both ends. Frames built with the
		// one-bit-off ranges of older clients are rejected, never misread.
		It("uses the same parity range on encode and decode", func() {
			for _, flavor := range protocol.Flavors() {
				frame, err := protocol.EncodeRequest(protocol.BrewRequest{Flavor: flavor, VolumeML: 300})
				Expect(err).To(Succeed())

				_, err = protocol.DecodeRequest(frame)
				Expect(err).To(Succeed())
			}
		})
	})

	Describe("EncodeResponse() / DecodeResponse()", func() {
		It("round trips accepted outcomes below the clamp", func() {
			for wait := uint32(0); wait < protocol.MaxWaitSeconds; wait++ {
				frame, err := protocol.EncodeResponse(protocol.Accepted(wait))
				Expect(err).To(Succeed())

				outcome, err := protocol.DecodeResponse(frame)
				Expect(err).To(Succeed())
				Expect(outcome).To(Equal(protocol.BrewOutcome{WaitSeconds: uint8(wait)}))
			}
		})

		It("round trips every reject reason", func() {
			for _, reason := range []protocol.RejectReason{
				protocol.ParityFault,
				protocol.InsufficientWater,
				protocol.NoCupCapacity,
				protocol.InsufficientWaterAndNoCupCapacity,
			} {
				frame, err := protocol.EncodeResponse(protocol.Rejected(reason))
				Expect(err).To(Succeed())
				Expect(frame & 0xf0).To(BeZero())
				Expect(frame & 0x2).To(Equal(byte(0x2)))

				outcome, err := protocol.DecodeResponse(frame)
				Expect(err).To(Succeed())
				Expect(outcome).To(Equal(protocol.Rejected(reason)))
			}
		})

		It("clamps a 70 second wait to 63 and marks it saturated", func() {
			outcome := protocol.Accepted(70)
			Expect(outcome.WaitSeconds).To(Equal(uint8(63)))
			Expect(outcome.Saturated).To(BeTrue())

			frame, err := protocol.EncodeResponse(outcome)
			Expect(err).To(Succeed())
			Expect(frame >> 2).To(Equal(byte(63)))
			Expect(frame & 0x2).To(BeZero())

			decoded, err := protocol.DecodeResponse(frame)
			Expect(err).To(Succeed())
			Expect(decoded.WaitSeconds).To(Equal(uint8(63)))
			Expect(decoded.Saturated).To(BeTrue())
			Expect(decoded.String()).To(Equal("Coffee ready in 63 seconds or more."))
		})

		It("keeps an exact 63 second wait unsaturated until it hits the wire", func() {
			outcome := protocol.Accepted(63)
			Expect(outcome.Saturated).To(BeFalse())

			frame, err := protocol.EncodeResponse(outcome)
			Expect(err).To(Succeed())

			decoded, err := protocol.DecodeResponse(frame)
			Expect(err).To(Succeed())
			Expect(decoded.Saturated).To(BeTrue())
		})

		It("detects any single flipped bit", func() {
			for _, outcome := range []protocol.BrewOutcome{
				protocol.Accepted(25),
				protocol.Rejected(protocol.NoCupCapacity),
			} {
				frame, err := protocol.EncodeResponse(outcome)
				Expect(err).To(Succeed())

				for bit := 0; bit < 8; bit++ {
					_, err := protocol.DecodeResponse(frame ^ 1<<bit)
					Expect(err).To(HaveOccurred(), "bit %d", bit)
				}
			}
		})

		It("rejects a rejection with reserved bits set", func() {
			// reason 0, rejected, bit 4 set, parity over bits 1-7 is even
			frame := byte(0x10 | 0x2)
			_, err := protocol.DecodeResponse(frame)
			Expect(errors.Is(err, protocol.ErrResponseReservedBits)).To(BeTrue())
		})

		It("refuses to encode an unknown reason", func() {
			_, err := protocol.EncodeResponse(protocol.Rejected(4))
			Expect(errors.Is(err, protocol.ErrUnknownReason)).To(BeTrue())
		})
	})

	Describe("BrewOutcome.String()", func() {
		It("describes accepted orders", func() {
			Expect(protocol.Accepted(25).String()).To(Equal("Coffee ready in 25s."))
		})

		It("describes rejected orders with their wire code", func() {
			Expect(protocol.Rejected(protocol.InsufficientWaterAndNoCupCapacity).String()).
				To(Equal("Error 3 - no_water_and_full_bin"))
		})
	})
})
