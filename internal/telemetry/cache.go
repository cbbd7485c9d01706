// Package telemetry caches the last known sensor value per room and
// pushes formatted readings to the display surface.
package telemetry

import (
	"fmt"
	"math"
	"sync"

	"semsview/internal/model"
)

// NoData is the display sentinel shown before any reading arrives.
const NoData = "--"

// DisplaySink receives formatted sensor values for the UI.
type DisplaySink interface {
	ShowSensorValue(room string, sensor model.SensorKind, text string)
}

type cacheKey struct {
	room   string
	sensor model.SensorKind
}

// Cache is the per-room last-value map. It is written by the inbound
// message path and the store sync path, and read whenever a room is
// rendered, so a switched-to room shows its cached values before the
// network catches up.
type Cache struct {
	mu     sync.RWMutex
	values map[cacheKey]float64
	sink   DisplaySink
}

// NewCache creates an empty telemetry cache. sink may be nil in tests.
func NewCache(sink DisplaySink) *Cache {
	return &Cache{
		values: make(map[cacheKey]float64),
		sink:   sink,
	}
}

// Record overwrites the cached value for one room and sensor.
func (c *Cache) Record(room string, sensor model.SensorKind, value float64) {
	c.mu.Lock()
	c.values[cacheKey{room: room, sensor: sensor}] = value
	c.mu.Unlock()
}

// Get returns the last cached value, or false when no reading has
// been seen for that room and sensor.
func (c *Cache) Get(room string, sensor model.SensorKind) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[cacheKey{room: room, sensor: sensor}]
	return v, ok
}

// Render pushes one sensor's cached value to the display.
func (c *Cache) Render(room string, sensor model.SensorKind) {
	if c.sink == nil {
		return
	}
	if v, ok := c.Get(room, sensor); ok {
		c.sink.ShowSensorValue(room, sensor, FormatValue(sensor, v))
	} else {
		c.sink.ShowSensorValue(room, sensor, NoData)
	}
}

// RenderRoom pushes all sensor kinds' cached values for a room to the
// display, falling back to the no-data sentinel.
func (c *Cache) RenderRoom(room string) {
	for _, sensor := range model.SensorKinds() {
		c.Render(room, sensor)
	}
}

// FormatValue renders a reading for display: CO2 as an integer,
// temperature and humidity to one decimal place.
func FormatValue(sensor model.SensorKind, value float64) string {
	if sensor == model.SensorCO2 {
		return fmt.Sprintf("%d", int(math.Round(value)))
	}
	return fmt.Sprintf("%.1f", value)
}
