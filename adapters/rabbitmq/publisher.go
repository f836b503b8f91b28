package rabbitmq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
)

// publisher owns one AMQP connection, dialed lazily and redialed after it closes.
type publisher struct {
	url    string
	logger provisioner.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

func newPublisher(url string, logger provisioner.Logger) *publisher {
	return &publisher{url: url, logger: logger}
}

// connection returns an open connection, dialing if needed. Caller holds mu.
func (p *publisher) connection() (*amqp.Connection, error) {
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	if p.url == "" {
		return nil, provisioner.NewError(provisioner.ErrCodeConfiguration, "AMQP URL is not configured")
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, provisioner.NewErrorWithCause(provisioner.ErrCodeBroker, "failed to connect to broker", err)
	}
	p.logger.Info("AMQP connection established")
	p.conn = conn
	return conn, nil
}

// publish sends payload as one persistent JSON message on a short-lived channel.
func (p *publisher) publish(ctx context.Context, exchange, routingKey string, payload []byte) error {
	p.mu.Lock()
	conn, err := p.connection()
	p.mu.Unlock()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return provisioner.NewErrorWithCause(provisioner.ErrCodeBroker, "failed to open channel", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return provisioner.NewErrorWithCause(provisioner.ErrCodeBroker, "failed to publish", err)
	}
	return nil
}

func (p *publisher) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
