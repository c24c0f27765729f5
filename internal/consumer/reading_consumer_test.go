package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wisefido-medbox/internal/models"
	mqttcommon "wisefido-medbox/owl-common/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	inserted []models.SensorReading
	err      error
}

func (f *fakeWriter) Insert(ctx context.Context, r models.SensorReading) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, r)
	return nil
}

type fakePublisher struct {
	stream string
	events []interface{}
	err    error
}

func (f *fakePublisher) PublishJSON(ctx context.Context, stream string, data interface{}) (string, error) {
	f.stream = stream
	f.events = append(f.events, data)
	return "1-0", f.err
}

type fakeSubscriber struct {
	topic   string
	qos     byte
	handler mqttcommon.MessageHandler
	unsub   []string
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.topic, f.qos, f.handler = topic, qos, handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.unsub = append(f.unsub, topics...)
	return nil
}

var received = time.Date(2024, 1, 1, 1, 2, 3, 0, time.UTC)

func newTestConsumer(w ReadingWriter, p EventPublisher) *ReadingConsumer {
	c := NewReadingConsumer(Config{
		Topic:  "medbox/+/sensor",
		QoS:    1,
		Stream: "medbox:reading:stream",
	}, w, p, zap.NewNop())
	c.now = func() time.Time { return received }
	return c
}

func TestHandleMessage_StoresAndPublishes(t *testing.T) {
	w := &fakeWriter{}
	p := &fakePublisher{}
	c := newTestConsumer(w, p)

	err := c.HandleMessage("medbox/box-7/sensor", []byte(`{"temperature":28.1,"humidity":70,"ldr_value":1024}`))

	require.NoError(t, err)
	require.Len(t, w.inserted, 1)
	r := w.inserted[0]
	assert.Equal(t, 28.1, *r.Temperature)
	assert.Equal(t, 70.0, *r.Humidity)
	assert.Equal(t, 1024.0, *r.LDRValue)
	assert.Equal(t, received, *r.Timestamp)

	assert.Equal(t, "medbox:reading:stream", p.stream)
	require.Len(t, p.events, 1)
	event := p.events[0].(models.ReadingIngestedEvent)
	assert.Equal(t, "box-7", event.DeviceID)
	assert.Equal(t, received.Unix(), event.Timestamp)
}

func TestHandleMessage_PartialPayload(t *testing.T) {
	w := &fakeWriter{}
	c := newTestConsumer(w, nil)

	require.NoError(t, c.HandleMessage("medbox/box-7/sensor", []byte(`{"ldr_value":300}`)))

	require.Len(t, w.inserted, 1)
	assert.Nil(t, w.inserted[0].Temperature)
	assert.Equal(t, 300.0, *w.inserted[0].LDRValue)
}

func TestHandleMessage_InvalidPayload(t *testing.T) {
	w := &fakeWriter{}
	c := newTestConsumer(w, &fakePublisher{})

	for _, payload := range []string{`not json`, `{}`, `{"device_id":"x"}`, `[1,2]`} {
		err := c.HandleMessage("medbox/box-7/sensor", []byte(payload))
		assert.ErrorIs(t, err, models.ErrInvalidPayload, payload)
	}
	assert.Empty(t, w.inserted)
}

func TestHandleMessage_WriterFailureSkipsPublish(t *testing.T) {
	p := &fakePublisher{}
	c := newTestConsumer(&fakeWriter{err: errors.New("mongo down")}, p)

	err := c.HandleMessage("medbox/box-7/sensor", []byte(`{"ldr_value":1}`))

	require.Error(t, err)
	assert.Empty(t, p.events)
}

func TestHandleMessage_PublishFailureIsNotFatal(t *testing.T) {
	w := &fakeWriter{}
	c := newTestConsumer(w, &fakePublisher{err: errors.New("redis down")})

	assert.NoError(t, c.HandleMessage("medbox/box-7/sensor", []byte(`{"ldr_value":1}`)))
	assert.Len(t, w.inserted, 1)
}

func TestHandleMessage_DeviceIDFallsBackToPayload(t *testing.T) {
	p := &fakePublisher{}
	c := newTestConsumer(&fakeWriter{}, p)

	require.NoError(t, c.HandleMessage("medbox", []byte(`{"device_id":"box-9","ldr_value":1}`)))

	raw, err := json.Marshal(p.events[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"device_id":"box-9"`)
}

func TestStartStop_Subscribes(t *testing.T) {
	sub := &fakeSubscriber{}
	w := &fakeWriter{}
	c := newTestConsumer(w, nil)

	require.NoError(t, c.Start(sub))
	assert.Equal(t, "medbox/+/sensor", sub.topic)
	assert.Equal(t, byte(1), sub.qos)

	require.NoError(t, sub.handler("medbox/a/sensor", []byte(`{"humidity":50}`)))
	assert.Len(t, w.inserted, 1)

	require.NoError(t, c.Stop(sub))
	assert.Equal(t, []string{"medbox/+/sensor"}, sub.unsub)
}

func TestDeviceIDFromTopic(t *testing.T) {
	assert.Equal(t, "box-1", DeviceIDFromTopic("medbox/box-1/sensor"))
	assert.Equal(t, "", DeviceIDFromTopic("medbox/box-1"))
	assert.Equal(t, "", DeviceIDFromTopic(""))
}
