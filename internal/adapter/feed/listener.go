// Package feed keeps reconnecting WebSocket connections to the scheduler's
// assignment feed and the emergency status feed.
//
// A Listener runs one loop: dial, then send the current next-batch
// descriptor concurrently with receiving, then tear down and wait ReconnectDelay before
// dialing again. The loop has no terminal failure; it ends only when its
// context does.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"roundsbot/internal/app/ports"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"
)

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Handler consumes one inbound message. Errors wrapping ports.ErrInvalidPayload
// or ports.ErrMissingField drop the message and keep the connection.
type Handler func(ctx context.Context, msg []byte) error

type Config struct {
	Name           string        `yaml:"-"`
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	ReadLimit      int64         `yaml:"read_limit"`
	// InitialRequest is written on connect until the sequencer asks for
	// something newer. Nil leaves the feed push-only until RequestNext.
	InitialRequest *ports.NextRequest `yaml:"initial_request"`
}

func DefaultConfig() Config {
	return Config{
		ReconnectDelay: 3 * time.Second,
		DialTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   20 * time.Second,
		PingTimeout:    30 * time.Second,
		ReadLimit:      1 << 20,
	}
}

type Listener struct {
	cfg     Config
	handle  Handler
	metrics ports.FeedMetrics
	logger  *slog.Logger
	after   func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	state   ConnState
	current *outbound
	wake    chan struct{}
}

type outbound struct {
	payload []byte
}

func New(cfg Config, handle Handler, metrics ports.FeedMetrics, logger *slog.Logger) *Listener {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = "feed"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Listener{
		cfg:     cfg,
		handle:  handle,
		metrics: metrics,
		logger:  logger.With("feed", cfg.Name),
		after:   time.After,
		state:   StateDisconnected,
		wake:    make(chan struct{}, 1),
	}
	if cfg.InitialRequest != nil {
		l.RequestNext(*cfg.InitialRequest)
	}
	return l
}

func (l *Listener) State() ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s ConnState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// RequestNext sets the next-batch descriptor. It is written on the live
// connection if there is one and again after every reconnect, until a newer
// request replaces it.
func (l *Listener) RequestNext(req ports.NextRequest) {
	payload, err := json.Marshal(req)
	if err != nil {
		l.logger.Error("encode next request", "error", err)
		return
	}
	l.mu.Lock()
	l.current = &outbound{payload: payload}
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Listener) Run(ctx context.Context) error {
	if l.cfg.URL == "" {
		return fmt.Errorf("%s: url is required", l.cfg.Name)
	}
	for {
		l.setState(StateConnecting)
		err := l.session(ctx)
		l.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("feed disconnected", "error", err, "retry_in", l.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-l.after(l.cfg.ReconnectDelay):
		}
	}
}

func (l *Listener) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, l.cfg.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, l.cfg.URL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(l.cfg.ReadLimit)

	l.setState(StateConnected)
	l.logger.Info("feed connected", "url", l.cfg.URL)
	if l.metrics != nil {
		l.metrics.RecordFeedConnect()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.receive(gctx, conn) })
	g.Go(func() error { return l.send(gctx, conn) })
	if l.cfg.PingInterval > 0 {
		g.Go(func() error { return l.keepalive(gctx, conn) })
	}
	err = g.Wait()
	if ctx.Err() != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	return err
}

func (l *Listener) receive(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				return fmt.Errorf("closed by peer: %d", status)
			}
			return err
		}
		if err := l.handle(ctx, data); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ports.ErrInvalidPayload) || errors.Is(err, ports.ErrMissingField) {
				if l.metrics != nil {
					l.metrics.RecordFeedDecodeError()
				}
			}
			l.logger.Warn("feed message dropped", "error", err)
			continue
		}
		if l.metrics != nil {
			l.metrics.RecordFeedMessage(l.cfg.Name)
		}
	}
}

// send writes the current descriptor once per connection, and again whenever
// RequestNext replaces it.
func (l *Listener) send(ctx context.Context, conn *websocket.Conn) error {
	var written *outbound
	for {
		l.mu.Lock()
		out := l.current
		l.mu.Unlock()

		if out != nil && out != written {
			wctx, cancel := context.WithTimeout(ctx, l.cfg.WriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, out.payload)
			cancel()
			if err != nil {
				return fmt.Errorf("send next request: %w", err)
			}
			written = out
			l.logger.Info("next request sent", "payload", string(out.payload))
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}

func (l *Listener) keepalive(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, l.cfg.PingTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return fmt.Errorf("keepalive: %w", err)
			}
		}
	}
}
