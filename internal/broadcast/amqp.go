package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"coin-service/internal/config"
	"coin-service/internal/rabbit"
	"coin-service/internal/store"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AMQP broadcasts changes through a RabbitMQ fanout exchange. Every instance
// binds its own exclusive queue, so each change reaches all of them.
type AMQP struct {
	exchange string
	log      *logrus.Logger
	session  *rabbit.Session

	changes chan store.Change

	mu    sync.RWMutex
	pubCh *amqp.Channel

	wg sync.WaitGroup
}

func NewAMQP(cfg config.RabbitConfig, log *logrus.Logger) (*AMQP, error) {
	a := &AMQP{
		exchange: cfg.Exchange,
		log:      log,
		changes:  make(chan store.Change, 64),
	}

	session, err := rabbit.Open("changes", cfg, log, a.setup)
	if err != nil {
		return nil, err
	}
	a.session = session
	return a, nil
}

// Changes delivers changes published by any instance, this one included.
func (a *AMQP) Changes() <-chan store.Change {
	return a.changes
}

// OnReconnect registers fn to run after a dropped connection is restored.
// Changes sent while disconnected are lost, so callers re-render from the
// store there.
func (a *AMQP) OnReconnect(fn func()) {
	a.session.OnReconnect(fn)
}

// setup declares the exchange, binds a private queue to it and starts
// forwarding its deliveries.
func (a *AMQP) setup(ctx context.Context, conn *amqp.Connection) error {
	pubCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open publish channel: %w", err)
	}
	if err := pubCh.ExchangeDeclare(a.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", a.exchange, err)
	}

	subCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open subscribe channel: %w", err)
	}
	// server-named, exclusive, removed with the connection
	q, err := subCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare change queue: %w", err)
	}
	if err := subCh.QueueBind(q.Name, "", a.exchange, false, nil); err != nil {
		return fmt.Errorf("bind change queue: %w", err)
	}
	msgs, err := subCh.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume change queue: %w", err)
	}

	a.mu.Lock()
	a.pubCh = pubCh
	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{
		"exchange": a.exchange,
		"queue":    q.Name,
	}).Debug("change queue bound")

	a.wg.Add(1)
	go a.forward(ctx, msgs)
	return nil
}

func (a *AMQP) forward(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer a.wg.Done()

	for msg := range msgs {
		change, err := DecodeChange(msg.Body)
		if err != nil {
			a.log.WithFields(logrus.Fields{
				"error": err,
				"body":  string(msg.Body),
			}).Warn("dropping malformed change notification")
			continue
		}

		select {
		case a.changes <- change:
		case <-ctx.Done():
			return
		}
	}
}

// Publish sends c to every bound instance.
func (a *AMQP) Publish(ctx context.Context, c store.Change) error {
	a.mu.RLock()
	ch := a.pubCh
	a.mu.RUnlock()
	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("publish %s: %w", c.Key, store.ErrUnavailable)
	}

	body, err := EncodeChange(c)
	if err != nil {
		return err
	}

	// routing key is ignored by fanout exchanges
	return ch.PublishWithContext(ctx, a.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   c.At,
		AppId:       c.Origin,
		Body:        body,
	})
}

func (a *AMQP) Close() {
	a.session.Close()
	a.wg.Wait()
	a.log.Info("change broadcaster closed")
}

func EncodeChange(c store.Change) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode change: %w", err)
	}
	return body, nil
}

func DecodeChange(body []byte) (store.Change, error) {
	var c store.Change
	if err := json.Unmarshal(body, &c); err != nil {
		return store.Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.Key == "" {
		return store.Change{}, fmt.Errorf("decode change: missing key")
	}
	return c, nil
}
