// Package model defines the shared domain types of the dashboard:
// rooms, sensor kinds, devices and actuator state records.
package model

// SensorKind identifies one of the monitored environment quantities.
// The constant values are the wire names used in MQTT topics and
// store paths.
type SensorKind string

const (
	SensorTemperature SensorKind = "temp"
	SensorHumidity    SensorKind = "humi"
	SensorCO2         SensorKind = "co2"
)

// SensorKinds returns all known sensor kinds in display order.
func SensorKinds() []SensorKind {
	return []SensorKind{SensorTemperature, SensorHumidity, SensorCO2}
}

// KnownSensor reports whether k is one of the supported sensor kinds.
func KnownSensor(k SensorKind) bool {
	switch k {
	case SensorTemperature, SensorHumidity, SensorCO2:
		return true
	}
	return false
}

// Device identifies a controllable output in a room.
type Device string

const (
	DeviceFan    Device = "fan"
	DeviceLED    Device = "led"
	DeviceBuzzer Device = "buzzer"
)

// Devices returns all known devices in display order.
func Devices() []Device {
	return []Device{DeviceFan, DeviceLED, DeviceBuzzer}
}

// KnownDevice reports whether d is one of the supported devices.
func KnownDevice(d Device) bool {
	switch d {
	case DeviceFan, DeviceLED, DeviceBuzzer:
		return true
	}
	return false
}

// Device on/off states as they appear on the wire.
const (
	StateOn  = "ON"
	StateOff = "OFF"
)

// Reading is a single immutable sensor sample. Timestamp is a
// millisecond Unix epoch assigned on arrival.
type Reading struct {
	Room      string     `json:"room"`
	Sensor    SensorKind `json:"sensor"`
	Timestamp int64      `json:"timestamp"`
	Value     float64    `json:"value"`
}

// ActuatorState is the current (state, level) record of one device.
// OFF implies level 0; the command pipeline enforces that convention,
// the store does not.
type ActuatorState struct {
	State string `json:"state"`
	Level int    `json:"level"`
}

// On reports whether the actuator is switched on.
func (s ActuatorState) On() bool {
	return s.State == StateOn
}

// Command is the payload published to a device's actuator topic.
// ID is a correlation id attached to UI-originated commands.
type Command struct {
	State string `json:"state"`
	Level int    `json:"level"`
	ID    string `json:"id,omitempty"`
}

// Reported is the payload of a device acknowledgment. Success is nil
// when the device did not include the field; only an explicit false
// signals a hardware-level rejection.
type Reported struct {
	State   string `json:"state"`
	Level   int    `json:"level"`
	Success *bool  `json:"success,omitempty"`
}

// Rejected reports whether the acknowledgment carries an explicit
// command failure.
func (r Reported) Rejected() bool {
	return r.Success != nil && !*r.Success
}

// ModeCommand is the payload of the global auto-mode topic.
type ModeCommand struct {
	State string `json:"state"`
}
