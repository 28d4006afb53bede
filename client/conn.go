package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/luma/brewd/protocol"
)

const (
	// MaxOrderVolume is the largest cup the client will ask for, in ml. The
	// wire allows more, the client does not.
	MaxOrderVolume = 330
)

var (
	ErrVolumeOutOfRange  = fmt.Errorf("Volume must be between 0 and %d ml (inclusive)", MaxOrderVolume)
	ErrUnknownFlavorName = errors.New("No known flavor")
	ErrNotConnected      = errors.New("Not connected to a server")
)

// ValidateOrder applies the client's policy to raw user input and builds the
// request to send.
func ValidateOrder(volumeML int, flavorName string) (protocol.BrewRequest, error) {
	if volumeML < 0 || volumeML > MaxOrderVolume {
		return protocol.BrewRequest{}, fmt.Errorf("%d ml: %w", volumeML, ErrVolumeOutOfRange)
	}

	flavor, err := protocol.ParseFlavor(flavorName)
	if err != nil {
		return protocol.BrewRequest{}, fmt.Errorf("'%s': %w", flavorName, ErrUnknownFlavorName)
	}

	return protocol.BrewRequest{Flavor: flavor, VolumeML: uint16(volumeML)}, nil
}

type Conn struct {
	conn net.Conn

	log *zap.Logger
}

func New(log *zap.Logger) *Conn {
	return &Conn{
		log: log,
	}
}

func (c *Conn) Connect(ctx context.Context, addr string) error {
	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	c.conn = conn

	return nil
}

func (c *Conn) Disconnect() error {
	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Order sends req and waits for the server's verdict. The server closes the
// connection after answering, so a Conn carries a single order.
func (c *Conn) Order(ctx context.Context, req protocol.BrewRequest) (protocol.BrewOutcome, error) {
	if c.conn == nil {
		return protocol.BrewOutcome{}, ErrNotConnected
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return protocol.BrewOutcome{}, err
		}
	}

	stop := context.AfterFunc(ctx, func() {
		c.conn.Close()
	})
	defer stop()

	c.log.Info("Requesting coffee",
		zap.Uint16("volume", req.VolumeML),
		zap.Stringer("flavor", req.Flavor),
		zap.Uint8("id", uint8(req.Flavor)))

	if err := protocol.WriteRequest(c.conn, req); err != nil {
		return protocol.BrewOutcome{}, c.ctxErr(ctx, fmt.Errorf("Failed to send order: %w", err))
	}

	outcome, err := protocol.ReadResponse(c.conn)
	if err != nil {
		return protocol.BrewOutcome{}, c.ctxErr(ctx, fmt.Errorf("Failed to read response: %w", err))
	}

	return outcome, nil
}

// ctxErr prefers the context's error when it is the reason the exchange
// failed.
func (c *Conn) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	// The socket deadline can fire a hair before the context's own timer.
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}

	return err
}
