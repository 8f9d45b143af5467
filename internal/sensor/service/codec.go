package service

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
)

var errNotObject = errors.New("payload is not a JSON object")

func encodeTelemetry(sample domain.TelemetrySample) ([]byte, error) {
	return json.Marshal(sample)
}

// decodeTelemetry parses a cached payload. Unknown keys are ignored and
// missing keys keep their zero value; anything else is corrupt.
func decodeTelemetry(sensorID int64, payload []byte) (domain.TelemetrySample, error) {
	var sample domain.TelemetrySample

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return sample, &domain.CorruptTelemetryError{SensorID: sensorID, Err: errNotObject}
	}
	if err := json.Unmarshal(trimmed, &sample); err != nil {
		return domain.TelemetrySample{}, &domain.CorruptTelemetryError{SensorID: sensorID, Err: err}
	}
	return sample, nil
}
