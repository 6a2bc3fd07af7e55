package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/service"
)

const consumeRetryDelay = 5 * time.Second

// restaurantEventMessage is the JSON the restaurant service publishes.
type restaurantEventMessage struct {
	EventID           string    `json:"eventId"`
	EventType         string    `json:"eventType"`
	RestaurantID      string    `json:"restaurantId"`
	Status            string    `json:"status"`
	IsOpen            *bool     `json:"isOpen"`
	IsAcceptingOrders *bool     `json:"isAcceptingOrders"`
	Timestamp         eventTime `json:"timestamp"`
}

// eventTime accepts RFC 3339 strings, zone-less local date-times (read as
// UTC), epoch milliseconds and [year, month, day, hour, minute, second, nanos]
// arrays.
type eventTime struct {
	time.Time
}

var localDateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *eventTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		for _, layout := range localDateTimeLayouts {
			if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				t.Time = parsed.UTC()
				return nil
			}
		}
		return errors.Errorf("unsupported timestamp %q", s)
	case len(data) > 0 && data[0] == '[':
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if len(parts) < 3 {
			return errors.Errorf("unsupported timestamp %s", data)
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
		return nil
	default:
		var millis int64
		if err := json.Unmarshal(data, &millis); err != nil {
			return errors.Wrapf(err, "unsupported timestamp %s", data)
		}
		t.Time = time.UnixMilli(millis).UTC()
		return nil
	}
}

// DecodeRestaurantEvent parses a restaurant event. Malformed events are
// reported as model.ErrInvalidArgument.
func DecodeRestaurantEvent(data []byte) (model.RestaurantEvent, error) {
	var message restaurantEventMessage
	if err := json.Unmarshal(data, &message); err != nil {
		return model.RestaurantEvent{}, errors.Wrapf(model.ErrInvalidArgument, "malformed restaurant event: %s", err)
	}

	restaurantID, err := uuid.Parse(message.RestaurantID)
	if err != nil {
		return model.RestaurantEvent{}, errors.Wrapf(model.ErrInvalidArgument, "malformed restaurant id %q", message.RestaurantID)
	}
	var eventID uuid.UUID
	if message.EventID != "" {
		eventID, err = uuid.Parse(message.EventID)
		if err != nil {
			return model.RestaurantEvent{}, errors.Wrapf(model.ErrInvalidArgument, "malformed event id %q", message.EventID)
		}
	}

	return model.RestaurantEvent{
		EventID:           eventID,
		Type:              model.RestaurantEventType(strings.ToUpper(strings.TrimSpace(message.EventType))),
		RestaurantID:      restaurantID,
		Status:            model.RestaurantStatus(strings.ToUpper(strings.TrimSpace(message.Status))),
		IsOpen:            message.IsOpen,
		IsAcceptingOrders: message.IsAcceptingOrders,
		Timestamp:         message.Timestamp.Time,
	}, nil
}

func NewConsumerGroup(brokers []string, groupID string) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Offsets.AutoCommit.Enable = true
	config.Consumer.Return.Errors = true
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.BalanceStrategySticky}

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka consumer group")
	}
	return group, nil
}

// RestaurantEventConsumer feeds restaurant events to the reconciler. A
// message is marked only after the reconciler handled it, so failures are
// redelivered.
type RestaurantEventConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler *restaurantEventHandler
	logger  logrus.FieldLogger
}

func NewRestaurantEventConsumer(
	group sarama.ConsumerGroup,
	topic string,
	reconciler service.RestaurantAvailabilityReconciler,
	logger logrus.FieldLogger,
) *RestaurantEventConsumer {
	return &RestaurantEventConsumer{
		group: group,
		topic: topic,
		handler: &restaurantEventHandler{
			reconciler: reconciler,
			logger:     logger,
		},
		logger: logger,
	}
}

// Run consumes until ctx is done.
func (c *RestaurantEventConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("kafka consumer error")
		}
	}()

	for {
		err := c.group.Consume(ctx, []string{c.topic}, c.handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			c.logger.WithError(err).Error("restaurant event consumption failed, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(consumeRetryDelay):
			}
		}
	}
}

func (c *RestaurantEventConsumer) Close() error {
	return c.group.Close()
}

type restaurantEventHandler struct {
	reconciler service.RestaurantAvailabilityReconciler
	logger     logrus.FieldLogger
}

func (h *restaurantEventHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *restaurantEventHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *restaurantEventHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handle(session.Context(), message); err != nil {
				return err
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *restaurantEventHandler) handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	logger := h.logger.WithFields(logrus.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
	})

	event, err := DecodeRestaurantEvent(message.Value)
	if err != nil {
		logger.WithError(err).Error("skipping malformed restaurant event")
		return nil
	}

	result, err := h.reconciler.Handle(ctx, event)
	if errors.Is(err, model.ErrInvalidArgument) {
		logger.WithError(err).Error("skipping invalid restaurant event")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to handle restaurant event %s", event.EventID)
	}

	logger.WithFields(logrus.Fields{
		"event_type":    event.Type,
		"restaurant_id": event.RestaurantID,
		"candidates":    result.Candidates,
		"cancelled":     result.Cancelled,
		"failed":        result.Failed,
		"duplicate":     result.Duplicate,
	}).Info("restaurant event handled")
	return nil
}
