// Package session owns the dashboard's view state: which room is
// active, whether the system is in auto mode, and the handoff between
// persisted history and live traffic when the room changes.
package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"semsview/internal/model"
	"semsview/internal/series"
	"semsview/internal/telemetry"
	"semsview/internal/timefmt"
)

// Storage is the persistence surface the controller needs.
type Storage interface {
	AppendReading(room string, sensor model.SensorKind, ts int64, value float64) error
	RecentReadings(room string, sensor model.SensorKind, limit int) ([]model.Reading, error)
	LatestReading(room string, sensor model.SensorKind) (model.Reading, bool, error)
	RoomActuators(room string) (map[model.Device]model.ActuatorState, error)
	SetAutoMode(auto bool) error
	AutoMode() (bool, error)
}

// Surface is the slice of the UI the controller drives directly. The
// numeric readouts and charts are driven through the telemetry cache
// and series store instead.
type Surface interface {
	RoomChanged(room string)
	ShowActuator(room string, device model.Device, st model.ActuatorState)
	ShowMode(auto bool)
	SetControlsEnabled(enabled bool)
	TransportStatus(connected bool)
}

// AckSink receives device acknowledgments for the active room.
type AckSink interface {
	HandleReported(room string, device model.Device, rep model.Reported)
}

// bufferedPoint is a live reading that arrived while the active
// room's history was still loading.
type bufferedPoint struct {
	sensor model.SensorKind
	label  string
	value  float64
}

// Controller coordinates room switches and routes inbound telemetry
// into the cache, the chart series and the store. It also carries the
// global auto/manual flag.
type Controller struct {
	store  Storage
	cache  *telemetry.Cache
	charts *series.Store
	ui     Surface
	loc    *time.Location
	logger *log.Logger

	rooms     []string
	liveRooms map[string]bool

	mu       sync.Mutex
	room     string
	auto     bool
	epoch    uint64
	loading  bool
	buffered []bufferedPoint

	acks AckSink
}

// New builds a controller over the given rooms. liveRooms names the
// rooms with real hardware behind them; the rest are simulated and
// never see MQTT publishes. loc localizes chart labels (nil means
// time.Local).
func New(store Storage, cache *telemetry.Cache, charts *series.Store, ui Surface, rooms []string, liveRooms []string, loc *time.Location, logger *log.Logger) *Controller {
	if loc == nil {
		loc = time.Local
	}
	live := make(map[string]bool, len(liveRooms))
	for _, r := range liveRooms {
		live[r] = true
	}
	return &Controller{
		store:     store,
		cache:     cache,
		charts:    charts,
		ui:        ui,
		loc:       loc,
		logger:    logger,
		rooms:     rooms,
		liveRooms: live,
		auto:      true,
	}
}

// BindAcks routes device acknowledgments to sink. Must be called
// before traffic starts; it exists because the command pipeline and
// the controller reference each other.
func (c *Controller) BindAcks(sink AckSink) {
	c.acks = sink
}

// Start restores the persisted mode flag and activates the initial
// room. room must be one of the configured rooms.
func (c *Controller) Start(room string) error {
	if !c.knownRoom(room) {
		return fmt.Errorf("unknown room %q", room)
	}

	auto, err := c.store.AutoMode()
	if err != nil {
		// Fail toward auto: the safe mode needs no operator.
		if c.logger != nil {
			c.logger.Printf("[Session] Failed to restore mode flag: %v", err)
		}
		auto = true
	}
	c.mu.Lock()
	c.auto = auto
	c.mu.Unlock()
	c.ui.ShowMode(auto)
	c.ui.SetControlsEnabled(!auto)

	c.activate(room)
	return nil
}

// Rooms returns the configured room names in order.
func (c *Controller) Rooms() []string {
	out := make([]string, len(c.rooms))
	copy(out, c.rooms)
	return out
}

// CurrentRoom returns the active room. It is re-read per inbound
// message, so a switch takes effect for traffic immediately.
func (c *Controller) CurrentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// AutoMode reports the global mode flag.
func (c *Controller) AutoMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auto
}

// SetAutoMode flips the flag and persists it so the mode survives a
// restart. Persistence failure keeps the in-memory flip.
func (c *Controller) SetAutoMode(auto bool) {
	c.mu.Lock()
	c.auto = auto
	c.mu.Unlock()
	if err := c.store.SetAutoMode(auto); err != nil && c.logger != nil {
		c.logger.Printf("[Session] Failed to persist mode flag: %v", err)
	}
}

// ActuatorState returns one device's stored control position. A
// device never written, or a failed read, renders as OFF.
func (c *Controller) ActuatorState(room string, device model.Device) model.ActuatorState {
	stored, err := c.store.RoomActuators(room)
	if err != nil {
		if c.logger != nil {
			c.logger.Printf("[Session] Failed to read actuators for %s: %v", room, err)
		}
		stored = nil
	}
	if st, ok := stored[device]; ok {
		return st
	}
	return model.ActuatorState{State: model.StateOff, Level: 0}
}

// RoomIsLive reports whether a room has real hardware behind it.
func (c *Controller) RoomIsLive(room string) bool {
	return c.liveRooms[room]
}

// SwitchRoom makes room the active one. Switching to the current room
// is a no-op. Inbound traffic for the old room stops being accepted
// before any of the new room's state is rendered.
func (c *Controller) SwitchRoom(room string) error {
	if !c.knownRoom(room) {
		return fmt.Errorf("unknown room %q", room)
	}

	c.mu.Lock()
	if room == c.room {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.activate(room)
	return nil
}

// activate points the controller at room and rebuilds its view:
// charts are cleared, persisted history is loaded, actuator controls
// and cached readouts are re-seeded, and any live points that arrived
// mid-load are replayed on top of the history.
func (c *Controller) activate(room string) {
	c.mu.Lock()
	c.room = room
	c.epoch++
	epoch := c.epoch
	c.loading = true
	c.buffered = nil
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Printf("[Session] Active room: %s", room)
	}
	c.ui.RoomChanged(room)
	c.charts.ResetRoom(room)
	c.cache.RenderRoom(room)
	c.seedReadouts(room)
	c.seedActuators(room)
	c.loadHistory(room)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		// Another switch raced past this one; its load owns the view.
		return
	}
	for _, p := range c.buffered {
		c.charts.Append(room, p.sensor, p.label, p.value)
	}
	c.buffered = nil
	c.loading = false
}

// seedReadouts fills numeric readouts that have no cached live value
// with the newest persisted reading, so a freshly opened room is not
// all placeholders.
func (c *Controller) seedReadouts(room string) {
	for _, kind := range model.SensorKinds() {
		if _, ok := c.cache.Get(room, kind); ok {
			continue
		}
		r, found, err := c.store.LatestReading(room, kind)
		if err != nil {
			if c.logger != nil {
				c.logger.Printf("[Session] Failed to read latest %s/%s: %v", room, kind, err)
			}
			continue
		}
		if found {
			c.cache.Record(room, kind, r.Value)
			c.cache.Render(room, kind)
		}
	}
}

// seedActuators renders the stored control positions for every
// device. Devices never written render as OFF.
func (c *Controller) seedActuators(room string) {
	stored, err := c.store.RoomActuators(room)
	if err != nil {
		if c.logger != nil {
			c.logger.Printf("[Session] Failed to read actuators for %s: %v", room, err)
		}
		stored = nil
	}
	for _, device := range model.Devices() {
		st, ok := stored[device]
		if !ok {
			st = model.ActuatorState{State: model.StateOff, Level: 0}
		}
		c.ui.ShowActuator(room, device, st)
	}
}

// loadHistory replaces each sensor's chart series with the newest
// persisted readings. A failed read leaves that chart empty and the
// room otherwise functional.
func (c *Controller) loadHistory(room string) {
	for _, kind := range model.SensorKinds() {
		readings, err := c.store.RecentReadings(room, kind, c.charts.Capacity())
		if err != nil {
			if c.logger != nil {
				c.logger.Printf("[Session] Failed to load %s history for %s: %v", kind, room, err)
			}
			continue
		}
		// An empty load still redraws, clearing the previous room's
		// trace from connected clients.
		points := make([]series.Point, 0, len(readings))
		for _, r := range readings {
			points = append(points, series.Point{
				Label: timefmt.Millis(r.Timestamp, c.loc),
				Value: r.Value,
			})
		}
		c.charts.LoadHistory(room, kind, points)
	}
}

// HandleSensor ingests one live reading for the active room: readout,
// chart point and persisted sample. The chart label comes from the
// device timestamp when one was sent, in whichever shape the firmware
// used; an untimestamped reading is labeled with its arrival time.
// The persisted sample is always keyed by arrival time so store keys
// stay ordered.
func (c *Controller) HandleSensor(room string, sensor model.SensorKind, value float64, ts string) {
	ms := time.Now().In(c.loc).UnixMilli()
	label := timefmt.Millis(ms, c.loc)
	if ts != "" {
		label = timefmt.Label(ts, c.loc)
	}

	c.cache.Record(room, sensor, value)
	c.cache.Render(room, sensor)

	c.mu.Lock()
	if c.loading && room == c.room {
		c.buffered = append(c.buffered, bufferedPoint{sensor: sensor, label: label, value: value})
		c.mu.Unlock()
	} else {
		c.mu.Unlock()
		c.charts.Append(room, sensor, label, value)
	}

	go func() {
		if err := c.store.AppendReading(room, sensor, ms, value); err != nil && c.logger != nil {
			c.logger.Printf("[Session] Failed to persist %s/%s reading: %v", room, sensor, err)
		}
	}()
}

// HandleReported forwards a device acknowledgment to the command
// pipeline.
func (c *Controller) HandleReported(room string, device model.Device, rep model.Reported) {
	if c.acks != nil {
		c.acks.HandleReported(room, device, rep)
	}
}

// HandleAutoMode applies a mode change announced by another client.
// The flag is not re-persisted here; the originating client owns that.
func (c *Controller) HandleAutoMode(auto bool) {
	c.mu.Lock()
	changed := c.auto != auto
	c.auto = auto
	c.mu.Unlock()
	if changed && c.logger != nil {
		c.logger.Printf("[Session] Mode changed remotely: auto=%v", auto)
	}
	c.ui.ShowMode(auto)
	c.ui.SetControlsEnabled(!auto)
}

// HandleTransportStatus relays broker connectivity to the UI.
func (c *Controller) HandleTransportStatus(connected bool) {
	c.ui.TransportStatus(connected)
}

func (c *Controller) knownRoom(room string) bool {
	for _, r := range c.rooms {
		if r == room {
			return true
		}
	}
	return false
}
