package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luma/brewd/internal/env"
	"github.com/luma/brewd/journal"
	"github.com/luma/brewd/ledger"
	"github.com/luma/brewd/status"
	"github.com/luma/brewd/storage"
	"github.com/luma/brewd/transport"
)

var (
	// The host to listen on
	host string

	// The port to listen for http requests on
	httpPort string

	// The port to listen for orders on
	port int

	liters      int
	cups        int
	journalPath string
)

func init() {
	flags := StartCmd.PersistentFlags()

	flags.IntVarP(&port, "port", "p", env.DefaultPort, "The port to listen for orders on")
	flags.StringVar(&httpPort, "http-port", env.DefaultHTTPPort, `The port to serve the status API on, "0" disables it`)
	flags.StringVarP(&host, "host", "a", env.DefaultHost, "The host to listen on")
	flags.IntVarP(&liters, "liters", "l", env.DefaultLiters, "Liters of water in the machine at start")
	flags.IntVarP(&cups, "cups", "c", env.DefaultCups, "Cups the bin can hold at start")
	flags.StringVar(&journalPath, "journal", "", "SQLite file to record every order in")
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start up the coffee machine",
	Long: `Start up the coffee machine

Usage
	brewd start [-p port] [-l liters] [-c cups]

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		applyFlags(cmd, conf)

		if err := conf.Validate(); err != nil {
			return err
		}

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync() // nolint:errcheck

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Debug("Set file limit", zap.Uint64("fileLimit", fileLimit))

		machine := ledger.New(ledger.NewMachineState(conf.Liters, conf.Cups, time.Now()))
		initial := machine.Snapshot()

		store := storage.NewInmemoryStore()
		defer store.Close()

		if err := store.Publish(ctx, initial); err != nil {
			return err
		}

		options := transport.Options{
			Host:         conf.Host,
			Port:         conf.Port,
			Reuseport:    true,
			NumListeners: conf.Listeners,
			ReadTimeout:  conf.ReadTimeout,
			AcceptRate:   rate.Limit(conf.AcceptRate),
			AcceptBurst:  conf.AcceptBurst,
			Ledger:       machine,
			Store:        store,
			Log:          log.Named("transport"),
		}

		statusOptions := status.Options{
			Ledger: machine,
			Store:  store,
			Debug:  conf.DebugHTTP,
			Log:    log.Named("http"),
		}

		if conf.Journal != "" {
			j, err := journal.Open(conf.Journal)
			if err != nil {
				return err
			}
			defer j.Close()

			options.Journal = j
			statusOptions.Journal = j
		}

		var s *http.Server
		if conf.HTTPEnabled() {
			s = &http.Server{
				Addr:    net.JoinHostPort(conf.Host, conf.HTTPPort),
				Handler: status.NewRouter(statusOptions),
			}

			// Initializing the server in a goroutine so that
			// it won't block the graceful shutdown handling below
			go func() {
				if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Http server errored", zap.Error(err))
				}
			}()
		}

		tcp := transport.NewTCP(options)

		if err := tcp.Start(ctx); err != nil {
			return err
		}

		log.Info("Initial status",
			zap.Int("water", initial.WaterML),
			zap.Int("cups", initial.CupSlots))

		log.Info("Waiting for clients",
			zap.String("host", conf.Host),
			zap.Int("port", conf.Port),
			zap.String("httpPort", conf.HTTPPort),
			zap.String("journal", conf.Journal))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		if err := tcp.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		if s != nil {
			// The context is used to inform the server it has 5 seconds to finish
			// the request it is currently handling
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			s.SetKeepAlivesEnabled(false)

			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Error("Http server forced to shutdown", zap.Error(err))
			}
		}

		final := machine.Snapshot()
		log.Info("Exiting",
			zap.Int("water", final.WaterML),
			zap.Int("cups", final.CupSlots))

		return nil
	},
}

// applyFlags lets flags given on the command line win over the environment.
func applyFlags(cmd *cobra.Command, conf *env.Config) {
	flags := cmd.Flags()

	if flags.Changed("port") {
		conf.Port = port
	}

	if flags.Changed("http-port") {
		conf.HTTPPort = httpPort
	}

	if flags.Changed("host") {
		conf.Host = host
	}

	if flags.Changed("liters") {
		conf.Liters = liters
	}

	if flags.Changed("cups") {
		conf.Cups = cups
	}

	if flags.Changed("journal") {
		conf.Journal = journalPath
	}
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
