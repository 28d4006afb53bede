// Package journal keeps a durable record of every order the machine decided.
package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/luma/brewd/ledger"
	"github.com/luma/brewd/protocol"
)

// Entry is one decided order.
type Entry struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"size:36;index"`
	DecidedAt time.Time `gorm:"index;not null"`

	Flavor   string `gorm:"size:32;not null"`
	VolumeML int    `gorm:"not null"`

	Accepted    bool
	Reason      string `gorm:"size:32"`
	WaitSeconds int
	Saturated   bool

	// DecodeError is set when the request frame could not be decoded. Flavor
	// is then UndecodedFlavor and VolumeML is zero.
	DecodeError string `gorm:"size:128"`

	// Machine state after the decision
	WaterML  int
	CupSlots int
}

const UndecodedFlavor = "undecoded"

// NewEntry describes the decision outcome for req, leaving the machine in
// state.
func NewEntry(
	sessionID string,
	decidedAt time.Time,
	req protocol.BrewRequest,
	outcome protocol.BrewOutcome,
	state ledger.MachineState,
) Entry {
	entry := Entry{
		SessionID: sessionID,
		DecidedAt: decidedAt,
		Flavor:    req.Flavor.String(),
		VolumeML:  int(req.VolumeML),
		Accepted:  !outcome.Rejected,
		WaterML:   state.WaterML,
		CupSlots:  state.CupSlots,
	}

	if outcome.Rejected {
		entry.Reason = outcome.Reason.String()
	} else {
		entry.WaitSeconds = int(outcome.WaitSeconds)
		entry.Saturated = outcome.Saturated
	}

	return entry
}

// NewUndecodedEntry describes the rejection of a frame that failed to
// decode with decodeErr. No flavor or volume is recorded for it.
func NewUndecodedEntry(
	sessionID string,
	decidedAt time.Time,
	decodeErr error,
	outcome protocol.BrewOutcome,
	state ledger.MachineState,
) Entry {
	return Entry{
		SessionID:   sessionID,
		DecidedAt:   decidedAt,
		Flavor:      UndecodedFlavor,
		Reason:      outcome.Reason.String(),
		DecodeError: decodeErr.Error(),
		WaterML:     state.WaterML,
		CupSlots:    state.CupSlots,
	}
}

type Journal struct {
	db *gorm.DB
}

// Open opens, or creates, the SQLite journal at path and migrates it.
func Open(path string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Record(ctx context.Context, entry Entry) error {
	if err := j.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record session %s: %w", entry.SessionID, err)
	}

	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry

	err := j.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent entries: %w", err)
	}

	return entries, nil
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
