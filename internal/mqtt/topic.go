package mqtt

import (
	"errors"
	"fmt"
	"strings"

	"semsview/internal/model"
)

// Topic namespace and the fixed subscription set. Rooms are filtered
// in the inbound handler, not at the broker, so the subscriptions use
// a single-segment wildcard for the room.
const (
	TopicPrefix = "smarthome"

	// TopicAutoMode is the global auto/manual mode topic. It carries
	// no room segment and bypasses the room filter.
	TopicAutoMode = "smarthome/auto"

	// The actuator filter matches exactly one level so that acks on
	// the /reported suffix are delivered by SubscribeReported alone.
	// paho runs the callback once per matching subscription, so any
	// overlap between filters would hand the same message to the
	// handler twice.
	SubscribeSensors   = "smarthome/+/sensors/#"
	SubscribeActuators = "smarthome/+/actuators/+"
	SubscribeReported  = "smarthome/+/actuators/+/reported"
)

const reportedSuffix = "reported"

// ErrMalformedTopic is returned for topics that do not match the
// smarthome grammar.
var ErrMalformedTopic = errors.New("malformed topic")

// Category is the third topic segment.
type Category string

const (
	CategorySensors   Category = "sensors"
	CategoryActuators Category = "actuators"
)

// Topic is a parsed, validated smarthome topic:
// smarthome/{room}/{category}/{name}[/reported].
type Topic struct {
	Room     string
	Category Category
	Name     string
	Reported bool
}

// ParseTopic parses a slash-delimited topic string into a typed
// Topic. The global mode topic does not match this grammar; callers
// check for it before parsing. Malformed topics are a handled parse
// failure, never an out-of-range access.
func ParseTopic(raw string) (Topic, error) {
	parts := strings.Split(raw, "/")
	if len(parts) < 4 || len(parts) > 5 {
		return Topic{}, fmt.Errorf("%w: %q has %d segments", ErrMalformedTopic, raw, len(parts))
	}
	if parts[0] != TopicPrefix {
		return Topic{}, fmt.Errorf("%w: %q outside %s namespace", ErrMalformedTopic, raw, TopicPrefix)
	}

	t := Topic{
		Room:     parts[1],
		Category: Category(parts[2]),
		Name:     parts[3],
	}
	if t.Room == "" || t.Name == "" {
		return Topic{}, fmt.Errorf("%w: %q has an empty segment", ErrMalformedTopic, raw)
	}
	if t.Category != CategorySensors && t.Category != CategoryActuators {
		return Topic{}, fmt.Errorf("%w: unknown category %q in %q", ErrMalformedTopic, parts[2], raw)
	}

	if len(parts) == 5 {
		if t.Category != CategoryActuators || parts[4] != reportedSuffix {
			return Topic{}, fmt.Errorf("%w: unexpected suffix %q in %q", ErrMalformedTopic, parts[4], raw)
		}
		t.Reported = true
	}
	return t, nil
}

// SensorTopic builds the topic a room's sensor publishes on.
func SensorTopic(room string, sensor model.SensorKind) string {
	return TopicPrefix + "/" + room + "/sensors/" + string(sensor)
}

// ActuatorTopic builds the command topic for a room's device.
func ActuatorTopic(room string, device model.Device) string {
	return TopicPrefix + "/" + room + "/actuators/" + string(device)
}
