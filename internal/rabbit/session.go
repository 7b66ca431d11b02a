// Package rabbit owns RabbitMQ connections for the coin service: it dials,
// lets the caller declare its topology and consumers on the fresh
// connection, and redials with backoff when the broker drops it.
package rabbit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coin-service/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	reconnectDelay       = 2 * time.Second
	maxReconnectAttempts = 10
)

// Setup prepares a freshly opened connection. It runs on the first dial and
// after every reconnect; an error discards the connection.
type Setup func(ctx context.Context, conn *amqp.Connection) error

// Session is one supervised broker connection.
type Session struct {
	name  string
	cfg   config.RabbitConfig
	log   *logrus.Entry
	setup Setup
	dial  func(url string) (*amqp.Connection, error)

	mu          sync.Mutex
	conn        *amqp.Connection
	onReconnect func()

	ctx    context.Context
	cancel context.CancelFunc
}

// Open dials the broker and runs setup. name tags the session's log lines.
func Open(name string, cfg config.RabbitConfig, log *logrus.Logger, setup Setup) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		name:   name,
		cfg:    cfg,
		log:    log.WithField("session", name),
		setup:  setup,
		dial:   amqp.Dial,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := s.connect(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// Context ends when the session is closed.
func (s *Session) Context() context.Context { return s.ctx }

// OnReconnect registers fn to run after setup succeeded on a replacement
// connection.
func (s *Session) OnReconnect(fn func()) {
	s.mu.Lock()
	s.onReconnect = fn
	s.mu.Unlock()
}

func (s *Session) connect() error {
	conn, err := s.dial(URL(s.cfg))
	if err != nil {
		return fmt.Errorf("%s: dial RabbitMQ: %w", s.name, err)
	}
	if err := s.setup(s.ctx, conn); err != nil {
		conn.Close()
		return fmt.Errorf("%s: %w", s.name, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.log.WithField("host", s.cfg.Host).Info("connected to RabbitMQ")
	go s.supervise(conn)
	return nil
}

func (s *Session) supervise(conn *amqp.Connection) {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case <-s.ctx.Done():
		return
	case err := <-closed:
		if err == nil {
			return
		}
		s.log.WithError(err).Error("RabbitMQ connection lost")
	}

	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		delay := reconnectDelay * time.Duration(attempt)
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return
		}

		err := s.connect()
		if err == nil {
			s.mu.Lock()
			fn := s.onReconnect
			s.mu.Unlock()
			if fn != nil {
				fn()
			}
			return
		}
		s.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("reconnect failed")
	}

	s.log.Error("giving up on RabbitMQ after repeated reconnect failures")
}

// Close ends the session and its connection. Consumers started in setup see
// their delivery channels close.
func (s *Session) Close() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// URL builds the AMQP URL for cfg.
func URL(cfg config.RabbitConfig) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VHost)
}
