package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/brewd/client"
	"github.com/luma/brewd/internal/env"
)

var (
	orderHost    string
	orderPort    int
	orderTimeout time.Duration
)

// ErrOrderRejected is returned when the server turned the order down so the
// process exits non-zero.
var ErrOrderRejected = errors.New("order rejected")

func init() {
	flags := OrderCmd.Flags()

	flags.StringVarP(&orderHost, "host", "H", "localhost", "The server to order from")
	flags.IntVarP(&orderPort, "port", "p", env.DefaultPort, "The port the server listens on")
	flags.DurationVar(&orderTimeout, "timeout", 10*time.Second, "How long to wait for the server's answer")
}

var OrderCmd = &cobra.Command{
	Use:   "order size flavor",
	Short: "Order a cup of coffee",
	Long: `Order a cup of coffee

size is in ml, between 0 and 330. flavor is one of
Kazaar, Dharkan, Roma, Livanto, Volluto, Cosi, Cappricio,
Appregio, Caramelito, Vanilio, Ciocattino.

Usage
	brewd order [-H host] [-p port] size flavor

`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("no valid int as size: %w", err)
		}

		req, err := client.ValidateOrder(size, args[1])
		if err != nil {
			return err
		}

		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		ctx, cancel := context.WithTimeout(ctx, orderTimeout)
		defer cancel()

		log, err := env.MakeLogger("warn")
		if err != nil {
			return err
		}
		defer log.Sync() // nolint:errcheck

		conn := client.New(log.Named("client"))

		addr := net.JoinHostPort(orderHost, strconv.Itoa(orderPort))
		if err := conn.Connect(ctx, addr); err != nil {
			return fmt.Errorf("connect to %s: %w", addr, err)
		}

		defer func() {
			if err := conn.Disconnect(); err != nil {
				log.Debug("Disconnect failed", zap.Error(err))
			}
		}()

		fmt.Fprintf(cmd.OutOrStdout(), "Requesting a %dml cup of coffee of flavour '%s' (id=%d)\n",
			req.VolumeML, req.Flavor, uint8(req.Flavor))

		outcome, err := conn.Order(ctx, req)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), outcome)

		if outcome.Rejected {
			return ErrOrderRejected
		}

		return nil
	},
}
