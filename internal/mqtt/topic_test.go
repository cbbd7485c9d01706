package mqtt

import (
	"errors"
	"testing"

	"semsview/internal/model"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Topic
	}{
		{
			name:     "sensor reading",
			input:    "smarthome/bedroom/sensors/temp",
			expected: Topic{Room: "bedroom", Category: CategorySensors, Name: "temp"},
		},
		{
			name:     "actuator command",
			input:    "smarthome/kitchen/actuators/fan",
			expected: Topic{Room: "kitchen", Category: CategoryActuators, Name: "fan"},
		},
		{
			name:     "actuator ack",
			input:    "smarthome/livingroom/actuators/led/reported",
			expected: Topic{Room: "livingroom", Category: CategoryActuators, Name: "led", Reported: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTopic(tt.input)
			if err != nil {
				t.Fatalf("ParseTopic(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseTopic(%q) = %+v, expected %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseTopicMalformed(t *testing.T) {
	inputs := []string{
		"",
		"smarthome",
		"smarthome/bedroom",
		"smarthome/bedroom/sensors",
		"otherhome/bedroom/sensors/temp",
		"smarthome/bedroom/lights/led",
		"smarthome/bedroom/sensors/temp/reported",
		"smarthome/bedroom/actuators/fan/ack",
		"smarthome/bedroom/actuators/fan/reported/extra",
		"smarthome//sensors/temp",
		"smarthome/bedroom/sensors/",
	}

	for _, input := range inputs {
		if _, err := ParseTopic(input); !errors.Is(err, ErrMalformedTopic) {
			t.Errorf("ParseTopic(%q) = %v, expected ErrMalformedTopic", input, err)
		}
	}
}

func TestTopicBuilders(t *testing.T) {
	if got := SensorTopic("bedroom", model.SensorCO2); got != "smarthome/bedroom/sensors/co2" {
		t.Errorf("SensorTopic = %q", got)
	}
	if got := ActuatorTopic("kitchen", model.DeviceFan); got != "smarthome/kitchen/actuators/fan" {
		t.Errorf("ActuatorTopic = %q", got)
	}

	// Built topics must round-trip through the parser.
	topic, err := ParseTopic(ActuatorTopic("kitchen", model.DeviceBuzzer))
	if err != nil {
		t.Fatalf("built topic failed to parse: %v", err)
	}
	if topic.Room != "kitchen" || topic.Name != "buzzer" {
		t.Errorf("round-trip mismatch: %+v", topic)
	}
}

func TestParseSensorPayload(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{name: "json payload", input: `{"value": 24.5}`, expected: 24.5},
		{name: "json with timestamp", input: `{"value": 412, "ts": 1705329022000}`, expected: 412},
		{name: "bare numeric fallback", input: "61.2", expected: 61.2},
		{name: "bare numeric with whitespace", input: " 19 \n", expected: 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSensorPayload([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseSensorPayload(%q) error: %v", tt.input, err)
			}
			if got.Value != tt.expected {
				t.Errorf("value = %v, expected %v", got.Value, tt.expected)
			}
		})
	}

	if _, err := ParseSensorPayload([]byte("not a number")); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload for garbage payload, got %v", err)
	}
}

func TestParseReported(t *testing.T) {
	rep, err := ParseReported([]byte(`{"state": "ON", "level": 70, "success": true}`))
	if err != nil {
		t.Fatalf("ParseReported error: %v", err)
	}
	if rep.State != model.StateOn || rep.Level != 70 || rep.Rejected() {
		t.Errorf("unexpected ack %+v", rep)
	}

	rejected, err := ParseReported([]byte(`{"state": "OFF", "level": 0, "success": false}`))
	if err != nil {
		t.Fatalf("ParseReported error: %v", err)
	}
	if !rejected.Rejected() {
		t.Error("success:false should report as rejected")
	}

	// Missing success field is not a rejection.
	plain, err := ParseReported([]byte(`{"state": "ON", "level": 30}`))
	if err != nil {
		t.Fatalf("ParseReported error: %v", err)
	}
	if plain.Rejected() {
		t.Error("absent success field must not count as rejection")
	}
}

func TestParseAutoMode(t *testing.T) {
	auto, err := ParseAutoMode([]byte(`{"state": "ON"}`))
	if err != nil || !auto {
		t.Errorf("ParseAutoMode ON = (%v, %v)", auto, err)
	}
	manual, err := ParseAutoMode([]byte(`{"state": "OFF"}`))
	if err != nil || manual {
		t.Errorf("ParseAutoMode OFF = (%v, %v)", manual, err)
	}
	if _, err := ParseAutoMode([]byte("garbage")); err == nil {
		t.Error("expected error for malformed mode payload")
	}
}
