package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/service"
)

const eventTypeHeader = "event_type"

// orderEventMessage is the JSON published on the order events topic.
type orderEventMessage struct {
	EventID        string `json:"eventId"`
	EventType      string `json:"eventType"`
	OrderID        string `json:"orderId"`
	CustomerID     string `json:"customerId,omitempty"`
	RestaurantID   string `json:"restaurantId,omitempty"`
	Status         string `json:"status,omitempty"`
	PreviousStatus string `json:"previousStatus,omitempty"`
	NewStatus      string `json:"newStatus,omitempty"`
	Total          string `json:"total,omitempty"`
	Discount       string `json:"discount,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Idempotent = true
	config.Producer.Retry.Max = 5
	config.Net.MaxOpenRequests = 1
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka producer")
	}
	return producer, nil
}

var _ service.EventDispatcher = &EventDispatcher{}

// EventDispatcher publishes order lifecycle events keyed by order id, so
// events of one order stay ordered within a partition.
type EventDispatcher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewEventDispatcher(producer sarama.SyncProducer, topic string) *EventDispatcher {
	return &EventDispatcher{
		producer: producer,
		topic:    topic,
	}
}

func (d *EventDispatcher) Dispatch(_ context.Context, event service.Event) error {
	message, err := toOrderEventMessage(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", event.Type())
	}

	_, _, err = d.producer.SendMessage(&sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(message.OrderID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(eventTypeHeader), Value: []byte(event.Type())},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to publish %s of order %s", event.Type(), message.OrderID)
	}
	return nil
}

func toOrderEventMessage(event service.Event) (orderEventMessage, error) {
	message := orderEventMessage{
		EventID:   uuid.NewString(),
		EventType: event.Type(),
	}

	var occurredAt time.Time
	switch e := event.(type) {
	case model.OrderCreated:
		message.OrderID = e.OrderID.String()
		message.CustomerID = e.CustomerID.String()
		message.RestaurantID = e.RestaurantID.String()
		message.Status = string(e.Status)
		message.Total = e.Total.StringFixed(2)
		occurredAt = e.OccurredAt
	case model.OrderStatusChanged:
		message.OrderID = e.OrderID.String()
		message.CustomerID = e.CustomerID.String()
		message.RestaurantID = e.RestaurantID.String()
		message.PreviousStatus = string(e.PreviousStatus)
		message.NewStatus = string(e.NewStatus)
		occurredAt = e.OccurredAt
	case model.OrderCancelled:
		message.OrderID = e.OrderID.String()
		message.CustomerID = e.CustomerID.String()
		message.RestaurantID = e.RestaurantID.String()
		message.PreviousStatus = string(e.PreviousStatus)
		message.NewStatus = string(model.Cancelled)
		message.Reason = e.Reason
		occurredAt = e.OccurredAt
	case model.OrderDiscountApplied:
		message.OrderID = e.OrderID.String()
		message.Discount = e.Discount.StringFixed(2)
		message.Total = e.Total.StringFixed(2)
		occurredAt = e.OccurredAt
	default:
		return orderEventMessage{}, errors.Errorf("unsupported event %s", event.Type())
	}

	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	message.Timestamp = occurredAt.UnixMilli()
	return message, nil
}
