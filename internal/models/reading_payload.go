package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReadingPayload JSON body published by the device on medbox/<device_id>/sensor
type ReadingPayload struct {
	DeviceID    string   `json:"device_id,omitempty"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	LDRValue    *float64 `json:"ldr_value"`
}

// ReadingIngestedEvent published on the readings stream after a successful insert
type ReadingIngestedEvent struct {
	DeviceID  string   `json:"device_id"`
	Timestamp int64    `json:"timestamp"`
	LDRValue  *float64 `json:"ldr_value"`
}

// ErrInvalidPayload payload is not a JSON object or carries no sensor value
var ErrInvalidPayload = &DataFormatError{Message: "invalid sensor payload"}

// DataFormatError payload format error
type DataFormatError struct {
	Message string
}

func (e *DataFormatError) Error() string {
	return e.Message
}

// ParseReadingPayload decodes a device payload
func ParseReadingPayload(payload []byte) (*ReadingPayload, error) {
	var p ReadingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Temperature == nil && p.Humidity == nil && p.LDRValue == nil {
		return nil, ErrInvalidPayload
	}
	return &p, nil
}

// Reading converts the payload into a stored reading stamped with ts
func (p *ReadingPayload) Reading(ts time.Time) SensorReading {
	return SensorReading{
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
		LDRValue:    p.LDRValue,
		Timestamp:   &ts,
	}
}
