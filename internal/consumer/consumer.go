// Package consumer feeds balance commands from the durable command queue to
// the processor.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"coin-service/internal/config"
	"coin-service/internal/processor"
	"coin-service/internal/rabbit"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Consumer reads the command queue with a single reader per connection so
// commands reach the processor in queue order; set, add and spend do not
// commute.
type Consumer struct {
	queue    string
	prefetch int
	log      *logrus.Logger
	commands chan<- processor.IncomingCommand

	session *rabbit.Session
	wg      sync.WaitGroup
}

// New connects and starts delivering commands until Close.
func New(cfg config.RabbitConfig, log *logrus.Logger, commands chan<- processor.IncomingCommand) (*Consumer, error) {
	c := &Consumer{
		queue:    cfg.Queue,
		prefetch: cfg.Prefetch,
		log:      log,
		commands: commands,
	}

	session, err := rabbit.Open("commands", cfg, log, c.setup)
	if err != nil {
		return nil, err
	}
	c.session = session
	return c, nil
}

func (c *Consumer) setup(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	// durable, shared by every instance of the deployment
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.drain(ctx, msgs)
	}()
	return nil
}

// drain hands deliveries to the processor one at a time, in arrival order,
// until msgs closes or ctx ends.
func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.log.Debug("command delivery channel closed")
				return
			}
			if !c.deliver(ctx, msg) {
				return
			}
		}
	}
}

// deliver forwards one delivery. It reports false when ctx ended first; the
// message then goes back to the queue for the next reader.
func (c *Consumer) deliver(ctx context.Context, msg amqp.Delivery) bool {
	cmd, err := decodeCommand(msg.Body)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"error": err,
			"tag":   msg.DeliveryTag,
			"body":  string(msg.Body),
		}).Warn("rejecting malformed command")
		_ = msg.Nack(false, false)
		return true
	}

	select {
	case c.commands <- processor.IncomingCommand{Payload: cmd, Delivery: msg}:
		return true
	case <-ctx.Done():
		_ = msg.Nack(false, true)
		return false
	}
}

func decodeCommand(body []byte) (processor.CommandMessage, error) {
	var cmd processor.CommandMessage
	if err := json.Unmarshal(body, &cmd); err != nil {
		return cmd, fmt.Errorf("decode command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return cmd, err
	}
	return cmd, nil
}

func (c *Consumer) Close() {
	c.session.Close()
	c.wg.Wait()
	c.log.Info("command consumer closed")
}
