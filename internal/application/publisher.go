package application

import (
	"context"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/events"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/kafka"
	"go.uber.org/zap"
)

const eventSource = "service-mileage"

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event kafka.CloudEvent) error
}

// publishEvent wraps data in a CloudEvent and publishes it. Failures are logged and never returned.
func publishEvent(ctx context.Context, publisher EventPublisher, logger *zap.Logger, eventType, key string, data interface{}) {
	if publisher == nil {
		return
	}

	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := publisher.PublishEvent(ctx, events.TopicMileageEvents, key, cloudEvent); err != nil {
		logger.Error("failed to publish event",
			zap.String("topic", events.TopicMileageEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
