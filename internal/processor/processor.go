package processor

import (
	"context"
	"fmt"
	"math"
	"time"

	"coin-service/internal/metrics"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	// recentEventIDs bounds the window used to drop redelivered commands.
	recentEventIDs = 4096
)

// Operation names accepted on the command queue.
const (
	OpAdd      = "add"
	OpSubtract = "subtract"
	OpSet      = "set"
	// OpSpend is an alias of OpSubtract.
	OpSpend = "spend"
	// OpTrySpend deducts only when the balance covers the amount.
	OpTrySpend = "try-spend"
)

// CommandMessage is a balance operation issued by game code over RabbitMQ.
type CommandMessage struct {
	Op      string  `json:"op"`
	Amount  float64 `json:"amount"`
	EventID string  `json:"event_id"`
}

// Validate rejects commands that can never be applied.
func (m *CommandMessage) Validate() error {
	switch m.Op {
	case OpAdd, OpSubtract, OpSet, OpSpend, OpTrySpend:
	default:
		return fmt.Errorf("unknown op %q", m.Op)
	}
	if math.IsNaN(m.Amount) || math.IsInf(m.Amount, 0) {
		return fmt.Errorf("amount is not finite")
	}
	return nil
}

type IncomingCommand struct {
	Payload  CommandMessage
	Delivery amqp091.Delivery
}

// Ledger is the part of a coin instance commands operate on.
type Ledger interface {
	Add(amount float64)
	Subtract(amount float64)
	SetBalance(n float64)
	TrySpend(amount float64) bool
}

// ProcessBatches accumulates incoming commands and applies them to the
// ledger in arrival order, one batch at a time.
func ProcessBatches(
	ctx context.Context,
	ledger Ledger,
	commands <-chan IncomingCommand,
	batchSize int,
	flushInterval time.Duration,
	log *logrus.Logger,
) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]IncomingCommand, 0, batchSize)
	seen := newRecentSet(recentEventIDs)

	flush := func() {
		if len(batch) == 0 {
			return
		}

		local := batch
		batch = make([]IncomingCommand, 0, batchSize)

		log.WithField("batch_size", len(local)).Debug("processing batch")
		applied := handleBatch(ledger, seen, local, log)

		log.WithFields(logrus.Fields{
			"total":   len(local),
			"applied": applied,
		}).Debug("batch processed")
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case cmd, ok := <-commands:
			if !ok {
				flush()
				return
			}

			batch = append(batch, cmd)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// handleBatch applies each command, acking applied, rejected and duplicate
// commands and nacking invalid ones without requeue. It returns how many
// commands changed or attempted to change the balance.
func handleBatch(ledger Ledger, seen *recentSet, commands []IncomingCommand, log *logrus.Logger) int {
	applied := 0

	for _, cmd := range commands {
		payload := cmd.Payload

		if err := payload.Validate(); err != nil {
			log.WithFields(logrus.Fields{
				"error":   err,
				"payload": payload,
			}).Warn("invalid command, skipping")
			metrics.Commands.WithLabelValues(payload.Op, "invalid").Inc()
			_ = cmd.Delivery.Nack(false, false) // Don't requeue invalid messages
			continue
		}

		if payload.EventID != "" {
			if seen.Contains(payload.EventID) {
				log.WithField("event_id", payload.EventID).Debug("duplicate event_id, skipping")
				metrics.Commands.WithLabelValues(payload.Op, "duplicate").Inc()
				ack(cmd.Delivery, log)
				continue
			}
			seen.Add(payload.EventID)
		}

		result := apply(ledger, payload)
		metrics.Commands.WithLabelValues(payload.Op, result).Inc()
		applied++

		log.WithFields(logrus.Fields{
			"op":       payload.Op,
			"amount":   payload.Amount,
			"event_id": payload.EventID,
			"result":   result,
		}).Debug("command applied")

		ack(cmd.Delivery, log)
	}

	return applied
}

func apply(ledger Ledger, m CommandMessage) string {
	switch m.Op {
	case OpAdd:
		ledger.Add(m.Amount)
	case OpSubtract, OpSpend:
		ledger.Subtract(m.Amount)
	case OpSet:
		ledger.SetBalance(m.Amount)
	case OpTrySpend:
		if !ledger.TrySpend(m.Amount) {
			return "rejected"
		}
	}
	return "ok"
}

func ack(d amqp091.Delivery, log *logrus.Logger) {
	if err := d.Ack(false); err != nil {
		log.WithError(err).Warn("failed to ack message")
	}
}

// recentSet remembers the last n event ids in insertion order.
type recentSet struct {
	ids   map[string]struct{}
	order []string
	next  int
}

func newRecentSet(n int) *recentSet {
	return &recentSet{ids: make(map[string]struct{}, n), order: make([]string, n)}
}

func (s *recentSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *recentSet) Add(id string) {
	if old := s.order[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.order[s.next] = id
	s.ids[id] = struct{}{}
	s.next = (s.next + 1) % len(s.order)
}
