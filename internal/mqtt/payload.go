package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"semsview/internal/model"
)

// ErrMalformedPayload is returned when a payload is neither valid
// JSON nor a bare numeric value.
var ErrMalformedPayload = errors.New("malformed payload")

// SensorPayload is the decoded body of a sensor reading message.
// TS keeps the device timestamp verbatim: firmware sends either a
// composite YYYYMMDD_HHMMSS string or a numeric epoch, and some
// devices send nothing. Empty means untimestamped.
type SensorPayload struct {
	Value float64
	TS    string
}

type sensorEnvelope struct {
	Value float64         `json:"value"`
	TS    json.RawMessage `json:"ts,omitempty"`
}

// ParseSensorPayload decodes a sensor message. Firmware normally
// publishes JSON {value, ts?}; a bare numeric string is accepted as a
// fallback so a half-configured device still charts.
func ParseSensorPayload(raw []byte) (SensorPayload, error) {
	var env sensorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		return SensorPayload{Value: env.Value, TS: rawTimestamp(env.TS)}, nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return SensorPayload{}, fmt.Errorf("%w: %q", ErrMalformedPayload, raw)
	}
	return SensorPayload{Value: v}, nil
}

// rawTimestamp flattens the ts field to a string whatever its JSON
// type was.
func rawTimestamp(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// ParseReported decodes a device acknowledgment message.
func ParseReported(raw []byte) (model.Reported, error) {
	var rep model.Reported
	if err := json.Unmarshal(raw, &rep); err != nil {
		return model.Reported{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return rep, nil
}

// ParseAutoMode decodes the global mode message into a boolean
// auto flag.
func ParseAutoMode(raw []byte) (bool, error) {
	var cmd model.ModeCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return cmd.State == model.StateOn, nil
}
