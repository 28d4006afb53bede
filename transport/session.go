package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luma/brewd/journal"
	"github.com/luma/brewd/ledger"
	"github.com/luma/brewd/protocol"
)

type SessionState int

const (
	AwaitingRequest SessionState = iota
	Deciding
	RespondingSuccess
	RespondingFailure
	Closed
)

func (s SessionState) String() string {
	switch s {
	case AwaitingRequest:
		return "awaiting_request"
	case Deciding:
		return "deciding"
	case RespondingSuccess:
		return "responding_success"
	case RespondingFailure:
		return "responding_failure"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Session serves one connection: one request frame in, one response frame
// out, then the connection is closed.
type Session struct {
	ID uuid.UUID

	conn    net.Conn
	options Options
	clock   func() time.Time

	mu    sync.Mutex
	state SessionState

	closeOnce sync.Once
	closeErr  error

	log *zap.Logger
}

func NewSession(conn net.Conn, options Options, log *zap.Logger) *Session {
	id := uuid.New()

	clock := options.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Session{
		ID:      id,
		conn:    conn,
		options: options,
		clock:   clock,
		state:   AwaitingRequest,
		log: log.Named("session").With(
			zap.String("session", id.String()),
			zap.String("remote", conn.RemoteAddr().String())),
	}
}

// State returns where the session is in its exchange.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Serve runs the exchange. The returned error is a transport failure; the
// ledger is never touched by one.
func (s *Session) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.Close()
	})

	defer func() {
		stop()
		s.Close()
	}()

	s.log.Debug("Client connected")

	if s.options.ReadTimeout > 0 {
		if err := s.conn.SetDeadline(time.Now().Add(s.options.ReadTimeout)); err != nil {
			return err
		}
	}

	req, err := protocol.ReadRequest(s.conn)
	if protocol.IsTransportError(err) {
		return fmt.Errorf("Failed to read request: %w", err)
	}

	s.transition(Deciding)

	outcome := s.decide(ctx, req, err)

	if outcome.Rejected {
		s.transition(RespondingFailure)
	} else {
		s.transition(RespondingSuccess)
	}

	if err := protocol.WriteResponse(s.conn, outcome); err != nil {
		return fmt.Errorf("Failed to write response: %w", err)
	}

	return nil
}

// decide turns a decoded request, or the reason it could not be decoded,
// into an outcome.
func (s *Session) decide(ctx context.Context, req protocol.BrewRequest, decodeErr error) protocol.BrewOutcome {
	if decodeErr != nil {
		// The reject codes have no slot for an unknown flavor, so every
		// undecodable frame is answered as a parity fault.
		s.log.Warn("Rejecting undecodable request", zap.Error(decodeErr))

		outcome := protocol.Rejected(protocol.ParityFault)
		state := s.options.Ledger.Snapshot()
		s.record(ctx, outcome, state, journal.NewUndecodedEntry(s.ID.String(), s.clock(), decodeErr, outcome, state))
		return outcome
	}

	now := s.clock()
	outcome, state := s.options.Ledger.Admit(req, now)

	if outcome.Rejected {
		s.log.Info("Rejected order",
			zap.Stringer("flavor", req.Flavor),
			zap.Uint16("volume", req.VolumeML),
			zap.Stringer("reason", outcome.Reason))
	} else {
		s.log.Info("Start coffee",
			zap.Stringer("flavor", req.Flavor),
			zap.Uint16("volume", req.VolumeML),
			zap.Duration("finishIn", state.NextAvailable.Sub(now)),
			zap.Bool("saturated", outcome.Saturated),
			zap.Int("water", state.WaterML),
			zap.Int("cups", state.CupSlots))
	}

	s.record(ctx, outcome, state, journal.NewEntry(s.ID.String(), now, req, outcome, state))
	return outcome
}

// record mirrors a decision into the status store and the journal. Failures
// are logged and do not change the answer sent to the client.
func (s *Session) record(ctx context.Context, outcome protocol.BrewOutcome, state ledger.MachineState, entry journal.Entry) {
	if store := s.options.Store; store != nil {
		counter := "orders.accepted"
		if outcome.Rejected {
			counter = "orders.rejected." + outcome.Reason.String()
		}

		if _, err := store.Incr(ctx, counter); err != nil {
			s.log.Warn("Failed to count order", zap.String("counter", counter), zap.Error(err))
		}

		if !outcome.Rejected {
			if err := store.Publish(ctx, state); err != nil {
				s.log.Warn("Failed to publish machine state", zap.Error(err))
			}
		}
	}

	if s.options.Journal != nil {
		if err := s.options.Journal.Record(ctx, entry); err != nil {
			s.log.Warn("Failed to journal order", zap.Error(err))
		}
	}
}

// Close closes the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		s.transition(Closed)
	})

	return s.closeErr
}

// transition moves to next unless the session is already closed.
func (s *Session) transition(next SessionState) {
	s.mu.Lock()
	prev := s.state
	if prev == Closed {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	s.log.Debug("Session state changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", next))
}
