package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/observability"
)

// SourceWebSocket is the metrics label for WSSource.
const SourceWebSocket = "websocket"

// WSConfig configures WebSocket source behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages. Extended on every pong.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
	// Buffer is the capacity of the events channel.
	Buffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		Buffer:            1000,
	}
}

// WSSource reads JSON retention events, one per text frame, from a WebSocket endpoint.
// Reconnects with exponential backoff until the context is cancelled.
type WSSource struct {
	endpoint string
	config   WSConfig
	log      *logger.Logger
}

// NewWSSource creates a WebSocket event source. A nil config uses DefaultWSConfig.
func NewWSSource(endpoint string, config *WSConfig, log *logger.Logger) *WSSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1000
	}
	return &WSSource{
		endpoint: endpoint,
		config:   cfg,
		log:      logger.OrNop(log).With("source", SourceWebSocket),
	}
}

// Name implements Source.
func (s *WSSource) Name() string { return SourceWebSocket }

// Subscribe connects and starts streaming. The first dial must succeed;
// later connection losses are retried in the background.
func (s *WSSource) Subscribe(ctx context.Context) (<-chan domain.RetentionEvent, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("subscribed", "endpoint", s.endpoint)

	out := make(chan domain.RetentionEvent, s.config.Buffer)
	go s.run(ctx, conn, out)
	return out, nil
}

func (s *WSSource) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// run owns the connection and reconnects until ctx is done.
func (s *WSSource) run(ctx context.Context, conn *websocket.Conn, out chan<- domain.RetentionEvent) {
	defer close(out)

	for {
		err := s.consume(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("connection lost", "error", err)

		conn = s.reconnect(ctx)
		if conn == nil {
			return
		}
	}
}

// reconnect dials with exponential backoff. Returns nil when ctx is done.
func (s *WSSource) reconnect(ctx context.Context) *websocket.Conn {
	delay := s.config.ReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		observability.RecordReconnect(SourceWebSocket)
		conn, err := s.dial(ctx)
		if err == nil {
			s.log.Info("reconnected", "endpoint", s.endpoint)
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn("reconnect failed", "error", err, "retry_in", delay)

		delay *= 2
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}
}

// consume reads frames until the connection fails or ctx is done.
func (s *WSSource) consume(ctx context.Context, conn *websocket.Conn, out chan<- domain.RetentionEvent) error {
	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(ctx, conn, done)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		observability.RecordEventReceived(SourceWebSocket)

		ev, err := DecodeEvent(message)
		if err != nil {
			observability.RecordEventDecodeError(SourceWebSocket)
			s.log.Warn("dropping malformed event", "error", err)
			continue
		}

		// Block until we can send - never drop events
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// keepAlive sends ping frames and closes the connection when ctx is cancelled
// so a blocked ReadMessage returns.
func (s *WSSource) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.config.WriteTimeout))
			conn.Close()
			return
		case <-ticker.C:
			// Failures surface on the reader side.
			conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout))
		}
	}
}
