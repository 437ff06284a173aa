package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

// passingByValue is the only value door nodes send for a detection.
const passingByValue = 1.0

// passingBy is a decoded passingByDetection payload.
type passingBy struct {
	Type      string   `json:"type"`
	Value     *float64 `json:"value"`
	Timestamp string   `json:"timestamp"`
}

// powerStatus is a decoded powerStatus payload.
type powerStatus struct {
	Data *bool `json:"data"`
}

// setting is the payload of every published device setting.
type setting struct {
	Setting   bool   `json:"setting"`
	Timestamp string `json:"timestamp"`
}

func decodePassingBy(payload []byte) (passingBy, error) {
	var p passingBy
	if err := json.Unmarshal(payload, &p); err != nil {
		return passingBy{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if p.Type != entity.MeasurementEntry && p.Type != entity.MeasurementExit {
		return passingBy{}, fmt.Errorf("%w: type %q", ErrMalformedPayload, p.Type)
	}
	if p.Value == nil || *p.Value != passingByValue {
		return passingBy{}, fmt.Errorf("%w: value must be %v", ErrMalformedPayload, passingByValue)
	}
	if p.Timestamp == "" {
		return passingBy{}, fmt.Errorf("%w: missing timestamp", ErrMalformedPayload)
	}
	return p, nil
}

func decodePowerStatus(payload []byte) (bool, error) {
	var p powerStatus
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if p.Data == nil {
		return false, fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}
	return *p.Data, nil
}

func encodeSetting(value bool, at time.Time) ([]byte, error) {
	return json.Marshal(setting{Setting: value, Timestamp: at.UTC().Format(time.RFC3339)})
}
