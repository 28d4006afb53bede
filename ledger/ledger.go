// Package ledger tracks what is left in the machine and decides whether an
// order can be brewed.
package ledger

import (
	"sync"
	"time"

	"github.com/luma/brewd/protocol"
)

const (
	// MLPerSecond is how much the heating element brews per second.
	MLPerSecond = 10
)

// MachineState is the water, cup room and brew queue of one machine.
type MachineState struct {
	WaterML       int
	CupSlots      int
	NextAvailable time.Time
}

// NewMachineState returns a full machine that is idle at now.
func NewMachineState(liters, cups int, now time.Time) MachineState {
	return MachineState{
		WaterML:       liters * 1000,
		CupSlots:      cups,
		NextAvailable: now,
	}
}

// BrewSeconds is the time the machine needs for volumeML, rounding partial
// 10ml units up.
func BrewSeconds(volumeML uint16) uint32 {
	return (uint32(volumeML) + MLPerSecond - 1) / MLPerSecond
}

// Decide evaluates req against s at now without modifying s. It returns the
// outcome and the state the machine would be in if the outcome is committed.
// A rejection always returns s unchanged.
func (s MachineState) Decide(req protocol.BrewRequest, now time.Time) (protocol.BrewOutcome, MachineState) {
	noWater := s.WaterML-int(req.VolumeML) < 0
	noCups := s.CupSlots-1 < 0

	switch {
	case noWater && noCups:
		return protocol.Rejected(protocol.InsufficientWaterAndNoCupCapacity), s
	case noWater:
		return protocol.Rejected(protocol.InsufficientWater), s
	case noCups:
		return protocol.Rejected(protocol.NoCupCapacity), s
	}

	wait := BrewSeconds(req.VolumeML) + leftover(s.NextAvailable, now)

	next := MachineState{
		WaterML:       s.WaterML - int(req.VolumeML),
		CupSlots:      s.CupSlots - 1,
		NextAvailable: now.Add(time.Duration(wait) * time.Second),
	}

	return protocol.Accepted(wait), next
}

// leftover is the whole seconds still owed to brews queued before now.
func leftover(nextAvailable, now time.Time) uint32 {
	owed := nextAvailable.Sub(now)
	if owed <= 0 {
		return 0
	}

	return uint32((owed + time.Second - 1) / time.Second)
}

// Ledger owns a MachineState and serialises every admission against it.
type Ledger struct {
	mu    sync.Mutex
	state MachineState
}

func New(state MachineState) *Ledger {
	return &Ledger{state: state}
}

// Admit decides req at now and commits the new state if the order was
// accepted. It returns the outcome together with the state after the
// decision, read under the same lock.
func (l *Ledger) Admit(req protocol.BrewRequest, now time.Time) (protocol.BrewOutcome, MachineState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	outcome, next := l.state.Decide(req, now)
	if !outcome.Rejected {
		l.state = next
	}

	return outcome, l.state
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() MachineState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}
