package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evotar/apiserver/config"
	"github.com/evotar/apiserver/internal/ids"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes and consumes jobs over one AMQP channel. Every
// work queue gets a companion dead-letter queue that collects jobs which
// failed twice.
type RabbitMQClient struct {
	conn *amqp.Connection

	mu       sync.Mutex
	ch       *amqp.Channel
	declared map[string]bool

	durable    bool
	autoDelete bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err == nil && cfg.PrefetchCount > 0 {
		err = ch.Qos(cfg.PrefetchCount, 0, false)
	}
	if err == nil {
		err = ch.Confirm(false)
	}
	if err != nil {
		if ch != nil {
			_ = ch.Close()
		}
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQClient{
		conn:       conn,
		ch:         ch,
		declared:   map[string]bool{},
		durable:    cfg.QueueDurable,
		autoDelete: cfg.QueueAutoDelete,
	}, nil
}

// Publish enqueues data and waits for the broker to confirm it.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}
	mode := amqp.Transient
	if r.durable {
		mode = amqp.Persistent
	}
	id := ids.New()

	r.mu.Lock()
	if err := r.declare(channel); err != nil {
		r.mu.Unlock()
		return "", err
	}
	confirm, err := r.ch.PublishWithDeferredConfirmWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    id,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         data,
	})
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return "", err
	}
	if !acked {
		return "", fmt.Errorf("rabbitmq rejected message %s", id)
	}
	return id, nil
}

// Subscribe consumes channel until ctx ends or the broker closes the
// delivery stream.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	tag := "evotar-" + ids.New()
	r.mu.Lock()
	err := r.declare(channel)
	var deliveries <-chan amqp.Delivery
	if err == nil {
		deliveries, err = r.ch.Consume(channel, tag, false, false, false, false, nil)
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	defer func() {
		r.mu.Lock()
		_ = r.ch.Cancel(tag, false)
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			err := handler(ctx, Message{
				ID:         d.MessageId,
				Data:       d.Body,
				Attributes: attributes(d.Headers),
			})
			_ = settle(d, d.Redelivered, err)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// declare creates the queue and its dead-letter queue once per client.
// Callers hold r.mu.
func (r *RabbitMQClient) declare(name string) error {
	if r.declared[name] {
		return nil
	}
	dead := DeadLetter(name)
	if _, err := r.ch.QueueDeclare(dead, r.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dead, err)
	}
	_, err := r.ch.QueueDeclare(name, r.durable, r.autoDelete, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dead,
	})
	if err != nil {
		return fmt.Errorf("declare %s: %w", name, err)
	}
	r.declared[name] = true
	return nil
}

func attributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	return attrs
}

// settle acks handled and permanently failed deliveries. Other failures are
// requeued once; a redelivered message that fails again is dead-lettered.
func settle(d acknowledger, redelivered bool, err error) error {
	switch {
	case err == nil, IsPermanent(err):
		return d.Ack(false)
	case redelivered:
		return d.Nack(false, false)
	}
	return d.Nack(false, true)
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}
