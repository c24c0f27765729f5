package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher appends JSON events to Redis Streams
type StreamPublisher struct {
	client *redis.Client
}

// NewStreamPublisher creates a publisher on top of an existing client
func NewStreamPublisher(client *redis.Client) *StreamPublisher {
	return &StreamPublisher{client: client}
}

// PublishJSON XADDs {data: <json>, timestamp: <unix>} to stream and returns the entry id
func (p *StreamPublisher) PublishJSON(ctx context.Context, stream string, data interface{}) (string, error) {
	values, err := JSONStreamValues(data, time.Now())
	if err != nil {
		return "", err
	}
	return PublishToStream(ctx, p.client, stream, values)
}

// PublishToStream XADDs values to stream, flattening every value to a string
func PublishToStream(ctx context.Context, client *redis.Client, stream string, values map[string]interface{}) (string, error) {
	streamValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		s, err := streamValue(v)
		if err != nil {
			return "", err
		}
		streamValues[k] = s
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: streamValues,
	}).Result()
}

// JSONStreamValues wraps data as the {data, timestamp} envelope used on every stream
func JSONStreamValues(data interface{}, now time.Time) (map[string]interface{}, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"data":      string(jsonBytes),
		"timestamp": now.Unix(),
	}, nil
}

func streamValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(jsonBytes), nil
	}
}
