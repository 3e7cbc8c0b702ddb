package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dlxExchangeName = "dissolution.dlx"
	dialTimeout     = 15 * time.Second
	connectionName  = "involuntary-dissolution"
)

var errChannelClosed = errors.New("rabbitmq channel is closed")

// RabbitMQ holds one connection and one confirm-mode channel for the length
// of a job run. There is no reconnect: a publish on a dropped channel fails
// and the caller parks the notice for the next run.
type RabbitMQ struct {
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitMQ(ctx context.Context, url string, queue string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if strings.TrimSpace(queue) == "" {
		queue = DefaultNoticeQueue
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial:       amqp.DefaultDial(timeout),
		Heartbeat:  10 * time.Second,
		Locale:     "en_US",
		Properties: amqp.Table{"connection_name": connectionName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := openChannel(conn, queue)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQ{queue: queue, conn: conn, ch: ch}, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil && !r.ch.IsClosed() {
		_ = r.ch.Close()
	}
	r.ch = nil

	conn := r.conn
	r.conn = nil
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// publish sends to the notice queue through the default exchange and waits
// for the broker ack. A nack is an error.
func (r *RabbitMQ) publish(ctx context.Context, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch == nil || r.ch.IsClosed() {
		return errChannelClosed
	}

	confirm, err := r.ch.PublishWithDeferredConfirmWithContext(ctx, "", r.queue, false, false, msg)
	if err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", r.queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for confirm of message %s: %w", msg.MessageId, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected message %s on queue %q", msg.MessageId, r.queue)
	}
	return nil
}

func openChannel(conn *amqp.Connection, queue string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return ch, nil
}

// declareTopology declares the notice queue dead-lettering into
// dlq.<queue> through the dissolution.dlx exchange.
func declareTopology(ch *amqp.Channel, queue string) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	dlq := DLQName(queue)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlq %q: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, queue, dlxExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind dlq %q: %w", dlq, err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, deadLetterArgs(queue)); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}
	return nil
}

func deadLetterArgs(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": queue,
	}
}
