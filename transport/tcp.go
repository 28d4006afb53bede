package transport

import (
	"context"
	"errors"
	"net"
	"runtime"
	"strconv"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr string

	numListeners int
	listeners    []*TCPListener

	options Options

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	if !options.Reuseport {
		numListeners = 1
	}

	if options.AcceptRate == 0 {
		options.AcceptRate = rate.Inf
	}

	if options.AcceptBurst < 1 {
		options.AcceptBurst = 1
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		options:      options,
		log:          options.Log,
	}
}

// Start binds every listener and then serves them in the background. An
// error binding any listener closes the ones already bound.
func (w *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel

	w.log.Info("Starting tcp listeners", zap.Int("count", w.numListeners))

	for i := 0; i < w.numListeners; i++ {
		if err := w.startListener(ctx); err != nil {
			cancel()
			return multierr.Append(err, w.closeListeners())
		}
	}

	return nil
}

// Addr returns the address the first listener is bound to.
func (w *TCP) Addr() net.Addr {
	if len(w.listeners) == 0 {
		return nil
	}

	return w.listeners[0].Addr()
}

func (w *TCP) startListener(ctx context.Context) error {
	listener, err := NewTCPListener(
		ctx,
		w.addr,
		w.options,
		w.log.Named("listener").With(zap.Int("listener", len(w.listeners))),
	)
	if err != nil {
		return err
	}

	w.listeners = append(w.listeners, listener)

	w.stopWaiter.Add(1)
	go func() {
		defer w.stopWaiter.Done()

		if err := listener.Listen(); err != nil {
			// TODO(rolly) a listener that dies here is not restarted, so we can end
			//             up serving on fewer than numListeners sockets
			w.log.Error("Failed to listen", zap.Error(err))
		}
	}()

	return nil
}

// Close stops accepting, drops any session still in flight and waits for
// every listener to exit.
func (w *TCP) Close() error {
	w.log.Info("Stopping TCP server")
	if w.cancel != nil {
		w.cancel()
	}

	err := w.closeListeners()

	w.log.Debug("Waiting for listeners")
	w.stopWaiter.Wait()
	w.log.Info("Listeners stopped")

	return err
}

func (w *TCP) closeListeners() (err error) {
	for _, listener := range w.listeners {
		err = multierr.Append(err, listener.Close())
	}

	return err
}

type TCPListener struct {
	ctx context.Context

	listener net.Listener
	limiter  *rate.Limiter

	options Options
	log     *zap.Logger

	mu          sync.Mutex
	activeConns map[*Session]struct{}
	closeOnce   sync.Once
}

func NewTCPListener(
	ctx context.Context,
	addr string,
	options Options,
	log *zap.Logger,
) (*TCPListener, error) {
	var (
		listener net.Listener
		err      error
	)

	if options.Reuseport {
		listener, err = reuseport.Listen("tcp", addr)
	} else {
		listener, err = net.Listen("tcp", addr)
	}

	if err != nil {
		return nil, err
	}

	return &TCPListener{
		ctx:         ctx,
		listener:    listener,
		limiter:     rate.NewLimiter(options.AcceptRate, options.AcceptBurst),
		options:     options,
		log:         log,
		activeConns: make(map[*Session]struct{}),
	}, nil
}

func (t *TCPListener) Addr() net.Addr {
	return t.listener.Addr()
}

// Close stops the listener and drops every session it is serving.
func (t *TCPListener) Close() (err error) {
	t.closeOnce.Do(func() {
		if cerr := t.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	for conn := range t.activeConns {
		err = multierr.Append(err, conn.Close())
	}

	return err
}

func (t *TCPListener) Listen() error {
	var (
		loopWaiter sync.WaitGroup
	)

	go func() {
		<-t.ctx.Done()

		t.log.Info("Closing listener")
		if err := t.Close(); err != nil {
			t.log.Warn("TCP Listener did not close cleanly", zap.Error(err))
		}
	}()

	defer func() {
		t.log.Info("Waiting for sessions to stop")
		loopWaiter.Wait()
		t.log.Info("Listener stopped")
	}()

	for {
		if err := t.limiter.Wait(t.ctx); err != nil {
			t.log.Info("Stopped accepting new connections")
			return nil
		}

		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				t.log.Info("Stopped accepting new connections")
				return nil
			}

			return err
		}

		session := NewSession(conn, t.options, t.log)
		t.addConn(session)

		loopWaiter.Add(1)
		go func() {
			defer loopWaiter.Done()
			defer t.removeConn(session)

			if err := session.Serve(t.ctx); err != nil {
				session.log.Warn("Session failed", zap.Error(err))
			}
		}()
	}
}

func (t *TCPListener) addConn(conn *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeConns[conn] = struct{}{}
}

func (t *TCPListener) removeConn(conn *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}
