package events

import (
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"tasktracker/internal/model"
)

const (
	ExchangeName = "tasks"

	RouteCreated       = "task.created"
	RouteStatusChanged = "task.status.changed"
	RouteDeleted       = "task.deleted"
)

// Publisher emits task lifecycle events to a topic exchange. It is optional:
// a nil Publisher drops everything, and publish failures are logged, never
// surfaced to the request that triggered them.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *zap.Logger
}

func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to mq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, logger: logger}, nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

type TaskEvent struct {
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
	DueAt  string `json:"dueAt,omitempty"`
}

func (p *Publisher) TaskCreated(t model.Task) {
	p.publish(RouteCreated, TaskEvent{ID: t.ID, Title: t.Title, Status: t.Status, DueAt: t.DueAt})
}

func (p *Publisher) StatusChanged(t model.Task) {
	p.publish(RouteStatusChanged, TaskEvent{ID: t.ID, Status: t.Status})
}

func (p *Publisher) TaskDeleted(id string) {
	p.publish(RouteDeleted, TaskEvent{ID: id})
}

func (p *Publisher) publish(routingKey string, payload any) {
	if p == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshal event", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}

	err = p.channel.Publish(ExchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		p.logger.Error("publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
