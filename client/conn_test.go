package client_test

import (
	"context"
	"errors"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/brewd/client"
	"github.com/luma/brewd/ledger"
	"github.com/luma/brewd/protocol"
	"github.com/luma/brewd/transport"
)

var _ = Describe("client", func() {
	Describe("ValidateOrder()", func() {
		It("accepts the whole client range", func() {
			req, err := client.ValidateOrder(0, "Kazaar")
			Expect(err).To(Succeed())
			Expect(req).To(Equal(protocol.BrewRequest{Flavor: protocol.Kazaar, VolumeML: 0}))

			req, err = client.ValidateOrder(330, "Ciocattino")
			Expect(err).To(Succeed())
			Expect(req).To(Equal(protocol.BrewRequest{Flavor: protocol.Ciocattino, VolumeML: 330}))
		})

		It("is stricter than the wire", func() {
			_, err := client.ValidateOrder(331, "Roma")
			Expect(errors.Is(err, client.ErrVolumeOutOfRange)).To(BeTrue())

			_, err = client.ValidateOrder(-1, "Roma")
			Expect(errors.Is(err, client.ErrVolumeOutOfRange)).To(BeTrue())
		})

		It("needs an exact flavor name", func() {
			_, err := client.ValidateOrder(100, "ROMA")
			Expect(errors.Is(err, client.ErrUnknownFlavorName)).To(BeTrue())
		})
	})

	Describe("Conn", func() {
		var (
			tcp *transport.TCP
			now = time.Unix(1490000000, 0)
		)

		BeforeEach(func() {
			tcp = transport.NewTCP(transport.Options{
				Host:   "127.0.0.1",
				Ledger: ledger.New(ledger.NewMachineState(1, 1, now)),
				Clock:  func() time.Time { return now },
				Log:    zap.NewNop(),
			})
			Expect(tcp.Start(context.Background())).To(Succeed())
		})

		AfterEach(func() {
			Expect(tcp.Close()).To(Succeed())
		})

		order := func(req protocol.BrewRequest) (protocol.BrewOutcome, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn := client.New(zap.NewNop())
			Expect(conn.Connect(ctx, tcp.Addr().String())).To(Succeed())
			defer conn.Disconnect()

			return conn.Order(ctx, req)
		}

		It("orders a coffee", func() {
			outcome, err := order(protocol.BrewRequest{Flavor: protocol.Caramelito, VolumeML: 120})
			Expect(err).To(Succeed())
			Expect(outcome).To(Equal(protocol.Accepted(12)))
			Expect(outcome.String()).To(Equal("Coffee ready in 12s."))
		})

		It("reports a full bin", func() {
			_, err := order(protocol.BrewRequest{Flavor: protocol.Caramelito, VolumeML: 120})
			Expect(err).To(Succeed())

			outcome, err := order(protocol.BrewRequest{Flavor: protocol.Caramelito, VolumeML: 120})
			Expect(err).To(Succeed())
			Expect(outcome.String()).To(Equal("Error 2 - full_bin"))
		})

		It("needs a connection before ordering", func() {
			_, err := client.New(zap.NewNop()).Order(context.Background(), protocol.BrewRequest{})
			Expect(err).To(MatchError(client.ErrNotConnected))
		})
	})

	Describe("Conn against a silent server", func() {
		It("gives up when the context expires", func() {
			listener, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).To(Succeed())
			defer listener.Close()

			go func() {
				conn, err := listener.Accept()
				if err == nil {
					defer conn.Close()
					time.Sleep(time.Second)
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			conn := client.New(zap.NewNop())
			Expect(conn.Connect(ctx, listener.Addr().String())).To(Succeed())
			defer conn.Disconnect()

			_, err = conn.Order(ctx, protocol.BrewRequest{Flavor: protocol.Roma, VolumeML: 10})
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})
})
