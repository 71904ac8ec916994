package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/metrics"
	"github.com/repurpose-hub/checkout-service/internal/middleware"
	"github.com/repurpose-hub/checkout-service/internal/models"
)

// EventType represents the type of checkout event.
type EventType string

const (
	EventTypeCheckoutInitiated EventType = "checkout.initiated"
	EventTypeCheckoutCompleted EventType = "checkout.completed"
	EventTypePaymentVerified   EventType = "payment.verified"
)

// CheckoutEvent is the envelope written to the checkout topic.
type CheckoutEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	CheckoutID    string            `json:"checkout_id,omitempty"`
	UserID        string            `json:"user_id"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes checkout events to Kafka.
type KafkaPublisher struct {
	writer  MessageWriter
	metrics *metrics.Metrics
	logger  *logging.LoggerV2
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, m *metrics.Metrics, logger *logging.LoggerV2) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.CheckoutTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewPublisher(writer, m, logger)
}

// NewPublisher wraps an existing writer.
func NewPublisher(writer MessageWriter, m *metrics.Metrics, logger *logging.LoggerV2) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		metrics: m,
		logger:  logger,
	}
}

// PublishCheckoutInitiated publishes a checkout initiated event.
func (p *KafkaPublisher) PublishCheckoutInitiated(ctx context.Context, record *models.CheckoutRecord) error {
	payload := struct {
		TotalPrice float64 `json:"total_price"`
		ItemCount  int     `json:"item_count"`
		Status     string  `json:"status"`
	}{
		TotalPrice: record.TotalPrice,
		ItemCount:  record.ItemCount(),
		Status:     record.Status.String(),
	}
	return p.emit(ctx, EventTypeCheckoutInitiated, record.ID, record.UserID, payload)
}

// PublishCheckoutCompleted publishes a checkout completed event.
func (p *KafkaPublisher) PublishCheckoutCompleted(ctx context.Context, record *models.CheckoutRecord) error {
	payload := struct {
		TotalPrice        float64 `json:"total_price"`
		ItemCount         int     `json:"item_count"`
		RazorpayOrderID   string  `json:"razorpay_order_id"`
		RazorpayPaymentID string  `json:"razorpay_payment_id"`
	}{
		TotalPrice:        record.TotalPrice,
		ItemCount:         record.ItemCount(),
		RazorpayOrderID:   record.RazorpayOrderID,
		RazorpayPaymentID: record.RazorpayPaymentID,
	}
	return p.emit(ctx, EventTypeCheckoutCompleted, record.ID, record.UserID, payload)
}

// PublishPaymentVerified publishes a payment verified event.
func (p *KafkaPublisher) PublishPaymentVerified(ctx context.Context, order *models.GatewayOrder) error {
	payload := struct {
		RazorpayOrderID   string  `json:"razorpay_order_id"`
		RazorpayPaymentID string  `json:"razorpay_payment_id"`
		Amount            float64 `json:"amount"`
		Currency          string  `json:"currency"`
	}{
		RazorpayOrderID:   order.RazorpayOrderID,
		RazorpayPaymentID: order.RazorpayPaymentID,
		Amount:            order.Amount,
		Currency:          order.Currency,
	}
	return p.emit(ctx, EventTypePaymentVerified, order.CheckoutID, order.UserID, payload)
}

func (p *KafkaPublisher) emit(ctx context.Context, eventType EventType, checkoutID, userID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &CheckoutEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		CheckoutID:    checkoutID,
		UserID:        userID,
		Data:          data,
		Metadata:      map[string]string{"source": "checkout-service"},
		Timestamp:     time.Now().UTC(),
		CorrelationID: middleware.RequestIDFromContext(ctx),
	}
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) publish(ctx context.Context, event *CheckoutEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.EventPublishError()
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":    event.ID,
			"event_type":  event.Type,
			"checkout_id": event.CheckoutID,
			"error":       err.Error(),
		})
		return err
	}

	p.logger.Info("Event published", logging.Fields{
		"event_id":    event.ID,
		"event_type":  event.Type,
		"checkout_id": event.CheckoutID,
	})
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

// NoopPublisher drops every event. Used when checkout events are disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishCheckoutInitiated(context.Context, *models.CheckoutRecord) error {
	return nil
}

func (NoopPublisher) PublishCheckoutCompleted(context.Context, *models.CheckoutRecord) error {
	return nil
}

func (NoopPublisher) PublishPaymentVerified(context.Context, *models.GatewayOrder) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
