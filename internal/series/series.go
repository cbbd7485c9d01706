// Package series holds the rolling chart buffers: one fixed-capacity
// ordered window of (label, value) points per room and sensor kind.
package series

import (
	"log"
	"sync"

	"semsview/internal/model"
)

// DefaultCapacity is the chart window used when none is configured.
const DefaultCapacity = 20

// Point is a single chart point.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartSink receives chart updates. PushPoint is the incremental
// redraw used for live points; ReplaceSeries is the wholesale redraw
// used after a history load.
type ChartSink interface {
	PushPoint(room string, sensor model.SensorKind, p Point)
	ReplaceSeries(room string, sensor model.SensorKind, points []Point)
}

type seriesKey struct {
	room   string
	sensor model.SensorKind
}

// Store keeps the rolling series for every (room, sensor) pair.
// Oldest points sit first; length never exceeds the capacity.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[seriesKey][]Point
	sink     ChartSink
	logger   *log.Logger
}

// NewStore creates a rolling series store. sink may be nil during
// tests; capacity values below 1 fall back to DefaultCapacity.
func NewStore(capacity int, sink ChartSink, logger *log.Logger) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		series:   make(map[seriesKey][]Point),
		sink:     sink,
		logger:   logger,
	}
}

// Capacity returns the configured window size.
func (s *Store) Capacity() int {
	return s.capacity
}

// Append adds a live point to the series. A point whose label equals
// the current last label is dropped, which makes redundant deliveries
// of the same reading a no-op. When the window is full the oldest
// point is evicted. Returns true if the point was stored.
func (s *Store) Append(room string, sensor model.SensorKind, label string, value float64) bool {
	s.mu.Lock()
	k := seriesKey{room: room, sensor: sensor}
	points := s.series[k]

	if n := len(points); n > 0 && points[n-1].Label == label {
		s.mu.Unlock()
		return false
	}

	points = append(points, Point{Label: label, Value: value})
	if len(points) > s.capacity {
		points = points[1:]
	}
	s.series[k] = points
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.PushPoint(room, sensor, Point{Label: label, Value: value})
	}
	return true
}

// Reset clears one series to empty.
func (s *Store) Reset(room string, sensor model.SensorKind) {
	s.mu.Lock()
	delete(s.series, seriesKey{room: room, sensor: sensor})
	s.mu.Unlock()
}

// ResetRoom clears every sensor's series for a room. Used on room
// switch before the new room's history is loaded.
func (s *Store) ResetRoom(room string) {
	s.mu.Lock()
	for _, sensor := range model.SensorKinds() {
		delete(s.series, seriesKey{room: room, sensor: sensor})
	}
	s.mu.Unlock()
}

// LoadHistory replaces a series wholesale with up to capacity of the
// most recent points, oldest first, and triggers a full chart redraw.
func (s *Store) LoadHistory(room string, sensor model.SensorKind, points []Point) {
	if len(points) > s.capacity {
		points = points[len(points)-s.capacity:]
	}
	stored := make([]Point, len(points))
	copy(stored, points)

	s.mu.Lock()
	s.series[seriesKey{room: room, sensor: sensor}] = stored
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Printf("[Series] Loaded %d history points for %s/%s", len(stored), room, sensor)
	}
	if s.sink != nil {
		s.sink.ReplaceSeries(room, sensor, s.Snapshot(room, sensor))
	}
}

// Render triggers a full chart redraw from the stored series.
func (s *Store) Render(room string, sensor model.SensorKind) {
	if s.sink != nil {
		s.sink.ReplaceSeries(room, sensor, s.Snapshot(room, sensor))
	}
}

// Snapshot returns a copy of the stored series, oldest first.
func (s *Store) Snapshot(room string, sensor model.SensorKind) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[seriesKey{room: room, sensor: sensor}]
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

// Len returns the current length of one series.
func (s *Store) Len(room string, sensor model.SensorKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[seriesKey{room: room, sensor: sensor}])
}
