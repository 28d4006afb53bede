package journal_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/brewd/journal"
	"github.com/luma/brewd/ledger"
	"github.com/luma/brewd/protocol"
)

var _ = Describe("journal", func() {
	var (
		j   *journal.Journal
		dir string
		now = time.Date(2017, 4, 1, 12, 0, 0, 0, time.UTC)
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "brewd-journal")
		Expect(err).To(Succeed())

		j, err = journal.Open(filepath.Join(dir, "brews.db"))
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		Expect(j.Close()).To(Succeed())
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Describe("NewEntry()", func() {
		It("records the wait of an accepted order", func() {
			entry := journal.NewEntry("abc", now,
				protocol.BrewRequest{Flavor: protocol.Roma, VolumeML: 250},
				protocol.Accepted(25),
				ledger.MachineState{WaterML: 750, CupSlots: 9})

			Expect(entry.Accepted).To(BeTrue())
			Expect(entry.Flavor).To(Equal("Roma"))
			Expect(entry.WaitSeconds).To(Equal(25))
			Expect(entry.Reason).To(BeEmpty())
			Expect(entry.WaterML).To(Equal(750))
		})

		It("records the reason of a rejected order", func() {
			entry := journal.NewEntry("abc", now,
				protocol.BrewRequest{Flavor: protocol.Kazaar, VolumeML: 100},
				protocol.Rejected(protocol.InsufficientWater),
				ledger.MachineState{WaterML: 5, CupSlots: 10})

			Expect(entry.Accepted).To(BeFalse())
			Expect(entry.Reason).To(Equal("no_water"))
			Expect(entry.WaitSeconds).To(BeZero())
		})
	})

	Describe("NewUndecodedEntry()", func() {
		It("records no flavor or volume for a frame that failed to decode", func() {
			entry := journal.NewUndecodedEntry("abc", now,
				protocol.ErrParityFault,
				protocol.Rejected(protocol.ParityFault),
				ledger.MachineState{WaterML: 1000, CupSlots: 10})

			Expect(entry.Accepted).To(BeFalse())
			Expect(entry.Flavor).To(Equal(journal.UndecodedFlavor))
			Expect(entry.VolumeML).To(BeZero())
			Expect(entry.Reason).To(Equal("server_parity_bit_error"))
			Expect(entry.DecodeError).To(Equal(protocol.ErrParityFault.Error()))
			Expect(j.Record(context.Background(), entry)).To(Succeed())

			entries, err := j.Recent(context.Background(), 1)
			Expect(err).To(Succeed())
			Expect(entries[0].Flavor).To(Equal(journal.UndecodedFlavor))
		})
	})

	Describe("Record() / Recent()", func() {
		It("returns the newest entries first", func() {
			ctx := context.Background()

			for i, volume := range []uint16{100, 200, 300} {
				entry := journal.NewEntry("session", now.Add(time.Duration(i)*time.Second),
					protocol.BrewRequest{Flavor: protocol.Cosi, VolumeML: volume},
					protocol.Accepted(uint32(volume/10)),
					ledger.MachineState{})
				Expect(j.Record(ctx, entry)).To(Succeed())
			}

			entries, err := j.Recent(ctx, 2)
			Expect(err).To(Succeed())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].VolumeML).To(Equal(300))
			Expect(entries[1].VolumeML).To(Equal(200))
			Expect(entries[0].DecidedAt.Equal(now.Add(2 * time.Second))).To(BeTrue())
		})

		It("returns nothing from an empty journal", func() {
			entries, err := j.Recent(context.Background(), 10)
			Expect(err).To(Succeed())
			Expect(entries).To(BeEmpty())
		})
	})
})
