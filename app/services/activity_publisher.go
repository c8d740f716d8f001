package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/outreach-orchestrator/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ActivityMessage is the wire form of a terminal dispatch outcome
type ActivityMessage struct {
	EventID        uint                   `json:"event_id"`
	ApprovalItemID uint                   `json:"approval_item_id"`
	CampaignID     uint                   `json:"campaign_id"`
	CampaignLeadID uint                   `json:"campaign_lead_id"`
	StepPosition   int                    `json:"step_position"`
	Channel        models.Channel         `json:"channel"`
	Outcome        models.DispatchOutcome `json:"outcome"`
	ContainerID    *string                `json:"container_id,omitempty"`
	ErrorCode      *string                `json:"error_code,omitempty"`
	Error          *string                `json:"error,omitempty"`
	Attempts       int                    `json:"attempts"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// NewActivityMessage converts a dispatch event
func NewActivityMessage(e *models.DispatchEvent) ActivityMessage {
	return ActivityMessage{
		EventID:        e.ID,
		ApprovalItemID: e.ApprovalItemID,
		CampaignID:     e.CampaignID,
		CampaignLeadID: e.CampaignLeadID,
		StepPosition:   e.StepPosition,
		Channel:        e.Channel,
		Outcome:        e.Outcome,
		ContainerID:    e.ContainerID,
		ErrorCode:      e.ErrorCode,
		Error:          e.Error,
		Attempts:       e.Attempts,
		OccurredAt:     e.OccurredAt,
	}
}

// ActivityPublisher fans terminal dispatch outcomes out to other systems
type ActivityPublisher interface {
	Publish(ctx context.Context, event *models.DispatchEvent) error
	Close() error
}

// RabbitMQPublisher publishes activity to a durable queue
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewRabbitMQPublisher connects and declares the activity queue
func NewRabbitMQPublisher(url, queue string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &RabbitMQPublisher{conn: conn, channel: channel, queue: queue}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event *models.DispatchEvent) error {
	body, err := json.Marshal(NewActivityMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    event.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NoopPublisher drops activity
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *models.DispatchEvent) error { return nil }
func (NoopPublisher) Close() error                                        { return nil }
