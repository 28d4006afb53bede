package storage

import (
	"context"

	"github.com/luma/brewd/ledger"
)

// Update notifies listeners that Key now holds the raw JSON Value.
type Update struct {
	Key   string
	Value []byte
}

// Store holds the machine status document that the status API serves.
type Store interface {
	Set(ctx context.Context, key string, value interface{}) error
	Get(ctx context.Context, key string) ([]byte, error)
	Incr(ctx context.Context, key string) (int64, error)

	// Publish writes a machine state under the "machine" key.
	Publish(ctx context.Context, state ledger.MachineState) error

	Restore(values []byte) error
	Backup() ([]byte, error)

	// ListenToUpdates returns a feed of updates that is closed when ctx is
	// done or the store is closed.
	ListenToUpdates(ctx context.Context) <-chan *Update

	Close() error
}
