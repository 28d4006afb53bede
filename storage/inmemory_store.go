package storage

import (
	"context"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/luma/brewd/ledger"
)

const (
	UpdateBufferSize = 255

	KeyWater         = "machine.water_ml"
	KeyCups          = "machine.cup_slots"
	KeyNextAvailable = "machine.next_available"
)

type InmemoryStore struct {
	mu     sync.Mutex
	values []byte

	updateChans map[chan *Update]struct{}

	// stop will be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values:      []byte("{}"),
		stop:        make(chan struct{}),
		updateChans: make(map[chan *Update]struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return nil
	}

	close(i.stop)

	for updateChan := range i.updateChans {
		close(updateChan)
		delete(i.updateChans, updateChan)
	}

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key string, value interface{}) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.set(key, value)
}

func (i *InmemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	result := gjson.GetBytes(i.values, key)
	if !result.Exists() {
		return nil, nil
	}

	return []byte(result.Raw), nil
}

// Incr adds one to the integer at key, treating a missing key as zero.
func (i *InmemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	n := gjson.GetBytes(i.values, key).Int() + 1
	if err := i.set(key, n); err != nil {
		return 0, err
	}

	return n, nil
}

// Publish mirrors state into the machine keys. A state older than the one
// already published is dropped, so the document never moves backwards when
// decisions arrive out of order.
func (i *InmemoryStore) Publish(ctx context.Context, state ledger.MachineState) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.olderThanPublished(state) {
		return nil
	}

	if err := i.set(KeyWater, state.WaterML); err != nil {
		return err
	}

	if err := i.set(KeyCups, state.CupSlots); err != nil {
		return err
	}

	return i.set(KeyNextAvailable, state.NextAvailable.UTC().Format(time.RFC3339))
}

func (i *InmemoryStore) ListenToUpdates(ctx context.Context) <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, UpdateBufferSize)

	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans[updateChan] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-i.stop:
			return
		}

		i.mu.Lock()
		defer i.mu.Unlock()

		if _, ok := i.updateChans[updateChan]; ok {
			close(updateChan)
			delete(i.updateChans, updateChan)
		}
	}()

	return updateChan
}

func (i *InmemoryStore) Restore(values []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !gjson.ValidBytes(values) {
		return ErrInvalidDocument
	}

	i.values = append([]byte(nil), values...)
	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]byte(nil), i.values...), nil
}

// olderThanPublished must be called with mu held. Water and cups only go
// down and the queue only moves forward, so any of them going the other way
// marks a stale state.
func (i *InmemoryStore) olderThanPublished(state ledger.MachineState) bool {
	water := gjson.GetBytes(i.values, KeyWater)
	if water.Exists() && int64(state.WaterML) > water.Int() {
		return true
	}

	cups := gjson.GetBytes(i.values, KeyCups)
	if cups.Exists() && int64(state.CupSlots) > cups.Int() {
		return true
	}

	next := gjson.GetBytes(i.values, KeyNextAvailable)
	if !next.Exists() {
		return false
	}

	published, err := time.Parse(time.RFC3339, next.String())
	if err != nil {
		return false
	}

	return state.NextAvailable.Truncate(time.Second).Before(published)
}

// set must be called with mu held.
func (i *InmemoryStore) set(key string, value interface{}) (err error) {
	i.values, err = sjson.SetBytes(i.values, key, value)
	if err != nil {
		return err
	}

	if !i.isRunning() {
		return nil
	}

	update := &Update{
		Key:   key,
		Value: []byte(gjson.GetBytes(i.values, key).Raw),
	}

	for updateChan := range i.updateChans {
		select {
		case updateChan <- update:
		default:
			// slow listener, it will catch up from the next update
		}
	}

	return nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
