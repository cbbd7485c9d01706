// Package storage persists the dashboard's state tree: append-only
// sensor time series, per-device actuator records and the auto-mode
// flag, mirroring the cloud database layout
// smarthome/{room}/sensors/{kind}/{timestamp} and
// smarthome/{room}/actuators/{device}.
package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// readingRecord is the stored body of one sample; the timestamp lives
// in the key.
type readingRecord struct {
	Value float64 `json:"value"`
}
