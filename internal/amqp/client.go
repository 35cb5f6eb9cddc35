package amqp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Queue names double as routing keys on the direct exchange, mirroring the
// topics the upstream services publish on.
const (
	ExpenseQueue    = "expense.events"
	SettlementQueue = "settlement.events"
)

// Handler processes decoded events. Returned errors cause a redelivery
// (nack+requeue); validation failures never reach the handler.
type Handler interface {
	HandleExpenseCreated(ctx context.Context, msg *ExpenseCreatedMessage) error
	HandleSettlementRecorded(ctx context.Context, msg *SettlementRecordedMessage) error
}

// Client owns the broker connection and the two durable event queues.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
}

// NewClient dials the broker and declares the exchange and queues.
func NewClient(url, exchangeName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{ExpenseQueue, SettlementQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		err = c.channel.QueueBind(
			queue,          // queue name
			queue,          // routing key (same as queue name for direct exchange)
			c.exchangeName, // exchange
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// Consume runs both event loops until ctx is cancelled. Messages are acked
// only after the handler succeeds; handler errors requeue the delivery,
// undecodable or invalid payloads are rejected for good.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.consumeQueue(ctx, ExpenseQueue, func(ctx context.Context, body []byte) error {
			msg, err := ExpenseCreatedFromJSON(body)
			if err != nil {
				return rejectf("decode expense event: %w", err)
			}
			if err := msg.Validate(); err != nil {
				return rejectf("invalid expense event: %w", err)
			}
			return handler.HandleExpenseCreated(ctx, msg)
		})
	})

	g.Go(func() error {
		return c.consumeQueue(ctx, SettlementQueue, func(ctx context.Context, body []byte) error {
			msg, err := SettlementRecordedFromJSON(body)
			if err != nil {
				return rejectf("decode settlement event: %w", err)
			}
			if err := msg.Validate(); err != nil {
				return rejectf("invalid settlement event: %w", err)
			}
			return handler.HandleSettlementRecorded(ctx, msg)
		})
	})

	return g.Wait()
}

func (c *Client) consumeQueue(ctx context.Context, queue string, process func(context.Context, []byte) error) error {
	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", queue, err)
	}

	slog.Info("Consuming events", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel for %s closed", queue)
			}
			err := process(ctx, delivery.Body)
			switch {
			case err == nil:
				if err := delivery.Ack(false); err != nil {
					slog.Error("Failed to ack message", "queue", queue, "error", err)
				}
			case isReject(err):
				slog.Warn("Rejecting unprocessable message", "queue", queue, "error", err)
				if err := delivery.Nack(false, false); err != nil {
					slog.Error("Failed to reject message", "queue", queue, "error", err)
				}
			default:
				slog.Warn("Requeueing message after failure", "queue", queue, "error", err)
				if err := delivery.Nack(false, true); err != nil {
					slog.Error("Failed to requeue message", "queue", queue, "error", err)
				}
			}
		}
	}
}

// Close releases the channel and connection.
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// rejectError marks messages that can never succeed and must not requeue.
type rejectError struct{ err error }

func (r rejectError) Error() string { return r.err.Error() }
func (r rejectError) Unwrap() error { return r.err }

func rejectf(format string, args ...interface{}) error {
	return rejectError{err: fmt.Errorf(format, args...)}
}

func isReject(err error) bool {
	_, ok := err.(rejectError)
	return ok
}
