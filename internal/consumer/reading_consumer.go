package consumer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wisefido-medbox/internal/models"
	mqttcommon "wisefido-medbox/owl-common/mqtt"

	"go.uber.org/zap"
)

// ReadingWriter appends readings to the document store
type ReadingWriter interface {
	Insert(ctx context.Context, reading models.SensorReading) error
}

// EventPublisher publishes ingestion events (Redis Streams in production)
type EventPublisher interface {
	PublishJSON(ctx context.Context, stream string, data interface{}) (string, error)
}

// Subscriber the subset of the MQTT client the consumer needs
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Config ingestion settings
type Config struct {
	Topic        string // e.g. "medbox/+/sensor"
	QoS          byte
	Stream       string // e.g. "medbox:reading:stream"
	WriteTimeout time.Duration
}

// ReadingConsumer stores every device payload as a new reading stamped with
// the local receive time, then announces it on the readings stream.
type ReadingConsumer struct {
	config    Config
	writer    ReadingWriter
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewReadingConsumer creates the consumer; publisher may be nil
func NewReadingConsumer(cfg Config, writer ReadingWriter, publisher EventPublisher, logger *zap.Logger) *ReadingConsumer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &ReadingConsumer{
		config:    cfg,
		writer:    writer,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Start subscribes to the configured topic
func (c *ReadingConsumer) Start(sub Subscriber) error {
	if err := sub.Subscribe(c.config.Topic, c.config.QoS, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to start reading consumer: %w", err)
	}
	c.logger.Info("Reading consumer started",
		zap.String("topic", c.config.Topic),
		zap.Uint8("qos", c.config.QoS),
	)
	return nil
}

// Stop unsubscribes
func (c *ReadingConsumer) Stop(sub Subscriber) error {
	return sub.Unsubscribe(c.config.Topic)
}

// HandleMessage parses, stores and announces one payload
func (c *ReadingConsumer) HandleMessage(topic string, payload []byte) error {
	p, err := models.ParseReadingPayload(payload)
	if err != nil {
		return fmt.Errorf("failed to parse payload on %s: %w", topic, err)
	}

	deviceID := DeviceIDFromTopic(topic)
	if deviceID == "" {
		deviceID = p.DeviceID
	}

	receivedAt := c.now().UTC()
	reading := p.Reading(receivedAt)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.WriteTimeout)
	defer cancel()

	if err := c.writer.Insert(ctx, reading); err != nil {
		return fmt.Errorf("failed to store reading from %s: %w", deviceID, err)
	}

	if c.publisher != nil && c.config.Stream != "" {
		event := models.ReadingIngestedEvent{
			DeviceID:  deviceID,
			Timestamp: receivedAt.Unix(),
			LDRValue:  reading.LDRValue,
		}
		if _, err := c.publisher.PublishJSON(ctx, c.config.Stream, event); err != nil {
			c.logger.Warn("Failed to publish reading event", zap.String("stream", c.config.Stream), zap.Error(err))
		}
	}

	c.logger.Debug("Stored sensor reading",
		zap.String("device_id", deviceID),
		zap.Time("received_at", receivedAt),
	)
	return nil
}

// DeviceIDFromTopic medbox/<device_id>/sensor -> device_id
func DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
