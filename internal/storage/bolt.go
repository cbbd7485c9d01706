package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"semsview/internal/model"
)

const (
	// readingsBucket holds room -> sensor -> timestamp-keyed samples
	readingsBucket = "_readings"

	// actuatorsBucket holds room -> device current-state records
	actuatorsBucket = "_actuators"

	// settingsBucket holds process-wide flags
	settingsBucket = "_settings"
)

const autoModeKey = "autoMode"

// BoltStorage is the bbolt-backed store standing in for the realtime
// database tree. Sensor history is append-only and keyed by
// zero-padded millisecond epoch so a key-ordered cursor walk is a
// time-ordered walk.
type BoltStorage struct {
	db *bbolt.DB
}

// NewBoltStorage opens (or creates) the database file and ensures the
// top-level buckets exist.
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{readingsBucket, actuatorsBucket, settingsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

// Close closes the database.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

// readingKey formats a millisecond epoch as a fixed-width sortable key.
func readingKey(ts int64) []byte {
	return []byte(fmt.Sprintf("%020d", ts))
}

// AppendReading stores one sample under {room}/{sensor}/{timestamp}.
// Existing keys are overwritten; timestamp uniqueness per room and
// sensor is assumed, not enforced.
func (s *BoltStorage) AppendReading(room string, sensor model.SensorKind, ts int64, value float64) error {
	data, err := json.Marshal(readingRecord{Value: value})
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(readingsBucket))
		if bucket == nil {
			return fmt.Errorf("readings bucket not found")
		}

		roomBucket, err := bucket.CreateBucketIfNotExists([]byte(room))
		if err != nil {
			return fmt.Errorf("failed to create room bucket: %w", err)
		}
		kindBucket, err := roomBucket.CreateBucketIfNotExists([]byte(sensor))
		if err != nil {
			return fmt.Errorf("failed to create sensor bucket: %w", err)
		}

		return kindBucket.Put(readingKey(ts), data)
	})
}

// RecentReadings returns up to limit of the most recent samples for
// one room and sensor, oldest first. A room or sensor with no history
// yields an empty slice, not an error.
func (s *BoltStorage) RecentReadings(room string, sensor model.SensorKind, limit int) ([]model.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}

	var readings []model.Reading
	err := s.db.View(func(tx *bbolt.Tx) error {
		kindBucket := sensorBucket(tx, room, sensor)
		if kindBucket == nil {
			return nil
		}

		cursor := kindBucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(readings) < limit; k, v = cursor.Prev() {
			reading, err := decodeReading(room, sensor, k, v)
			if err != nil {
				continue // skip corrupted entries
			}
			readings = append(readings, reading)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Cursor walked newest to oldest; flip to insertion order.
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
	return readings, nil
}

// LatestReading returns the most recent sample for one room and
// sensor, or false when none exists.
func (s *BoltStorage) LatestReading(room string, sensor model.SensorKind) (model.Reading, bool, error) {
	var (
		reading model.Reading
		found   bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		kindBucket := sensorBucket(tx, room, sensor)
		if kindBucket == nil {
			return nil
		}

		k, v := kindBucket.Cursor().Last()
		if k == nil {
			return nil
		}

		decoded, err := decodeReading(room, sensor, k, v)
		if err != nil {
			return err
		}
		reading = decoded
		found = true
		return nil
	})
	return reading, found, err
}

// SetActuator overwrites the current-state record of one device.
func (s *BoltStorage) SetActuator(room string, device model.Device, st model.ActuatorState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal actuator state: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(actuatorsBucket))
		if bucket == nil {
			return fmt.Errorf("actuators bucket not found")
		}

		roomBucket, err := bucket.CreateBucketIfNotExists([]byte(room))
		if err != nil {
			return fmt.Errorf("failed to create room bucket: %w", err)
		}
		return roomBucket.Put([]byte(device), data)
	})
}

// GetActuator returns the stored state of one device.
// Returns ErrNotFound when the device has never been written.
func (s *BoltStorage) GetActuator(room string, device model.Device) (model.ActuatorState, error) {
	var st model.ActuatorState
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(actuatorsBucket))
		if bucket == nil {
			return fmt.Errorf("actuators bucket not found")
		}

		roomBucket := bucket.Bucket([]byte(room))
		if roomBucket == nil {
			return ErrNotFound
		}
		data := roomBucket.Get([]byte(device))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("failed to unmarshal actuator state: %w", err)
		}
		return nil
	})
	return st, err
}

// RoomActuators returns the stored state of every known device in a
// room. Devices never written are absent from the map.
func (s *BoltStorage) RoomActuators(room string) (map[model.Device]model.ActuatorState, error) {
	states := make(map[model.Device]model.ActuatorState)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(actuatorsBucket))
		if bucket == nil {
			return fmt.Errorf("actuators bucket not found")
		}

		roomBucket := bucket.Bucket([]byte(room))
		if roomBucket == nil {
			return nil
		}
		return roomBucket.ForEach(func(k, v []byte) error {
			device := model.Device(k)
			if !model.KnownDevice(device) {
				return nil
			}
			var st model.ActuatorState
			if err := json.Unmarshal(v, &st); err != nil {
				return nil // skip corrupted record
			}
			states[device] = st
			return nil
		})
	})
	return states, err
}

// SetAutoMode persists the global auto/manual flag.
func (s *BoltStorage) SetAutoMode(auto bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(settingsBucket))
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}
		return bucket.Put([]byte(autoModeKey), []byte(strconv.FormatBool(auto)))
	})
}

// AutoMode returns the persisted auto/manual flag. A store that has
// never seen a mode flip defaults to auto.
func (s *BoltStorage) AutoMode() (bool, error) {
	auto := true
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(settingsBucket))
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}
		data := bucket.Get([]byte(autoModeKey))
		if data == nil {
			return nil
		}
		v, err := strconv.ParseBool(string(data))
		if err != nil {
			return fmt.Errorf("failed to parse auto mode flag: %w", err)
		}
		auto = v
		return nil
	})
	return auto, err
}

// sensorBucket walks to the nested bucket for one room and sensor.
// Any missing level returns nil.
func sensorBucket(tx *bbolt.Tx, room string, sensor model.SensorKind) *bbolt.Bucket {
	bucket := tx.Bucket([]byte(readingsBucket))
	if bucket == nil {
		return nil
	}
	roomBucket := bucket.Bucket([]byte(room))
	if roomBucket == nil {
		return nil
	}
	return roomBucket.Bucket([]byte(sensor))
}

func decodeReading(room string, sensor model.SensorKind, k, v []byte) (model.Reading, error) {
	ts, err := strconv.ParseInt(string(k), 10, 64)
	if err != nil {
		return model.Reading{}, fmt.Errorf("failed to parse reading key %q: %w", k, err)
	}
	var rec readingRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return model.Reading{}, fmt.Errorf("failed to unmarshal reading: %w", err)
	}
	return model.Reading{
		Room:      room,
		Sensor:    sensor,
		Timestamp: ts,
		Value:     rec.Value,
	}, nil
}
