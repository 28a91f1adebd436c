package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Integrator/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunTrigger  MessageType = "run.trigger"
	MessageTypeRunFinished MessageType = "run.finished"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// RunTriggerPayload — запрос на запуск procedure по расписанию.
type RunTriggerPayload struct {
	Input     domain.Input `json:"input"`
	TriggerBy string       `json:"trigger_by"`
}

// RunFinishedPayload — событие о завершении run.
type RunFinishedPayload struct {
	RunID       uuid.UUID          `json:"run_id"`
	Status      domain.RunStatus   `json:"status"`
	TriggerType domain.TriggerType `json:"trigger_type"`
	TriggerBy   string             `json:"trigger_by"`
	ProcedureID string             `json:"procedure_id"`
	Product     string             `json:"product"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// NewMessage собирает сообщение с новым id.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Sender отправляет сообщение в exchange.
type Sender interface {
	Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRunTrigger публикует запрос на запуск procedure.
// Потребитель: integrator-api.
func PublishRunTrigger(ctx context.Context, s Sender, payload RunTriggerPayload) error {
	msg, err := NewMessage(MessageTypeRunTrigger, payload)
	if err != nil {
		return err
	}
	return s.Publish(ctx, ExchangeRuns, RoutingKeyTrigger, msg)
}

// PublishRunFinished публикует событие о завершении run.
func PublishRunFinished(ctx context.Context, s Sender, run *domain.RunRecord) error {
	msg, err := NewMessage(MessageTypeRunFinished, RunFinishedPayload{
		RunID:       run.ID,
		Status:      run.Status,
		TriggerType: run.TriggerType,
		TriggerBy:   run.TriggerBy,
		ProcedureID: run.Input.ProcedureID(),
		Product:     run.Input.Product(),
		FinishedAt:  run.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return s.Publish(ctx, ExchangeRuns, RoutingKeyFinished, msg)
}

// TriggerPublisher — Trigger планировщика, публикующий в runs.trigger.
type TriggerPublisher struct {
	sender Sender
}

// NewTriggerPublisher создаёт TriggerPublisher.
func NewTriggerPublisher(s Sender) *TriggerPublisher {
	return &TriggerPublisher{sender: s}
}

// AutomaticTrigger публикует запрос на запуск.
func (t *TriggerPublisher) AutomaticTrigger(ctx context.Context, input domain.Input, triggerBy string) error {
	return PublishRunTrigger(ctx, t.sender, RunTriggerPayload{Input: input, TriggerBy: triggerBy})
}

// RunNotifier — Notifier RunManager'а, публикующий в runs.finished.
type RunNotifier struct {
	sender Sender
}

// NewRunNotifier создаёт RunNotifier.
func NewRunNotifier(s Sender) *RunNotifier {
	return &RunNotifier{sender: s}
}

// RunFinished публикует событие о завершении run.
func (n *RunNotifier) RunFinished(ctx context.Context, run *domain.RunRecord) error {
	return PublishRunFinished(ctx, n.sender, run)
}
