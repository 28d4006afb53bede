package transport

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luma/brewd/journal"
	"github.com/luma/brewd/ledger"
	"github.com/luma/brewd/storage"
)

// Recorder persists decided orders. *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on, 0 picks a free port
	Port int

	// Reuseport controls setting SO_REUSEPORT. Without it only a single
	// listener is started.
	Reuseport bool

	NumListeners int

	// ReadTimeout bounds a whole session, 0 means no deadline
	ReadTimeout time.Duration

	// AcceptRate throttles new connections per listener, 0 means unlimited
	AcceptRate  rate.Limit
	AcceptBurst int

	Ledger *ledger.Ledger

	Store storage.Store

	// Journal is optional
	Journal Recorder

	// Clock defaults to time.Now
	Clock func() time.Time

	Log *zap.Logger
}
