// Package amqp carries backup-sync messages between the API server and the
// sheets worker over RabbitMQ.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Message type tags carried in the AMQP Type header.
const (
	TypeTransactionSync   = "transaction.sync"
	TypeTransactionDelete = "transaction.delete"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
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
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
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

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishTransactionSync publishes a sync request for one transaction.
func (c *Client) PublishTransactionSync(ctx context.Context, id, userID string) error {
	msg := NewTransactionSyncMessage(id, userID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeTransactionSync, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction sync message",
		"transaction_id", id,
		"user_id", userID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishTransactionDelete publishes a backup-row removal request.
func (c *Client) PublishTransactionDelete(ctx context.Context, msg *TransactionDeleteMessage) error {
	msg.Timestamp = time.Now()
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeTransactionDelete, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction delete message",
		"transaction_id", msg.ID,
		"user_id", msg.UserID)
	return nil
}

func (c *Client) publish(ctx context.Context, msgType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Type:         msgType,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Handler receives decoded backup messages. Exactly one of the two arguments
// is non-nil per call.
type Handler interface {
	HandleSync(ctx context.Context, msg *TransactionSyncMessage) error
	HandleDelete(ctx context.Context, msg *TransactionDeleteMessage) error
}

// Consume reads backup messages until the context ends. Messages are acked
// only after the handler succeeds; handler failures requeue, decode failures
// drop the message.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming backup messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			handle, err := decode(delivery)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message",
					"error", err,
					"type", delivery.Type)
				delivery.Nack(false, false) // malformed, don't requeue
				continue
			}

			if err := handle(ctx, handler); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"type", delivery.Type)
				delivery.Nack(false, true) // reject and requeue
				continue
			}
			delivery.Ack(false)
		}
	}
}

// decode turns a delivery into a deferred handler call so the consume loop
// settles each message exactly once.
func decode(delivery amqp091.Delivery) (func(context.Context, Handler) error, error) {
	switch delivery.Type {
	case TypeTransactionSync:
		msg, err := TransactionSyncMessageFromJSON(delivery.Body)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, h Handler) error {
			return h.HandleSync(ctx, msg)
		}, nil
	case TypeTransactionDelete:
		msg, err := TransactionDeleteMessageFromJSON(delivery.Body)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, h Handler) error {
			return h.HandleDelete(ctx, msg)
		}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", delivery.Type)
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
