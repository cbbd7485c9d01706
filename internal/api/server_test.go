package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"semsview/internal/control"
	"semsview/internal/events"
	"semsview/internal/model"
	"semsview/internal/series"
	"semsview/internal/session"
	"semsview/internal/storage"
	"semsview/internal/telemetry"
	"semsview/internal/ws"
)

type stubTransport struct {
	mu        sync.Mutex
	sent      int
	connected bool
}

func (t *stubTransport) SendCommand(topic string, payload interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent++
	return nil
}

func (t *stubTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *stubTransport) commands() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

func (t *stubTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = 0
}

type testServer struct {
	srv       *Server
	store     *storage.BoltStorage
	transport *stubTransport
	sess      *session.Controller
	events    *events.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := storage.NewBoltStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	hub := ws.NewHub(nil)
	go hub.Run()

	cache := telemetry.NewCache(hub)
	charts := series.NewStore(5, hub, nil)
	rooms := []string{"livingroom", "bedroom", "kitchen"}
	sess := session.New(store, cache, charts, hub, rooms, []string{"livingroom"}, time.UTC, nil)

	transport := &stubTransport{connected: true}
	pipeline := control.New(transport, store, hub, sess, 10*time.Millisecond, nil)
	sess.BindAcks(pipeline)
	t.Cleanup(pipeline.Stop)

	if err := sess.Start("livingroom"); err != nil {
		t.Fatal(err)
	}

	eventLog := events.NewStore(50)
	srv := NewServer(sess, pipeline, charts, cache, store, eventLog, hub, transport, nil)
	return &testServer{srv: srv, store: store, transport: transport, sess: sess, events: eventLog}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestStateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var state struct {
		Room      string   `json:"room"`
		Rooms     []string `json:"rooms"`
		Auto      bool     `json:"auto"`
		Connected bool     `json:"connected"`
		Sensors   map[string]struct {
			Text string `json:"text"`
		} `json:"sensors"`
		Actuators map[string]model.ActuatorState `json:"actuators"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}

	if state.Room != "livingroom" {
		t.Errorf("room = %q", state.Room)
	}
	if len(state.Rooms) != 3 {
		t.Errorf("rooms = %v", state.Rooms)
	}
	if !state.Auto {
		t.Error("fresh state should be auto mode")
	}
	if !state.Connected {
		t.Error("connected flag lost")
	}
	if got := state.Sensors["temp"].Text; got != telemetry.NoData {
		t.Errorf("temp readout = %q", got)
	}
	if st := state.Actuators["fan"]; st.State != model.StateOff {
		t.Errorf("fan = %+v, expected OFF", st)
	}
}

func TestSwitchRoomEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/room", map[string]string{"room": "bedroom"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ts.sess.CurrentRoom() != "bedroom" {
		t.Errorf("current room = %q", ts.sess.CurrentRoom())
	}

	rec = ts.do(t, http.MethodPost, "/api/room", map[string]string{"room": "garage"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown room status = %d", rec.Code)
	}
}

func TestToggleBlockedInAutoMode(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/devices/fan/toggle", map[string]interface{}{"on": true, "level": 50})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, expected conflict in auto mode", rec.Code)
	}
	if ts.transport.commands() != 0 {
		t.Error("auto mode gesture must not publish")
	}
}

func TestToggleInManualMode(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(t, http.MethodPost, "/api/mode", map[string]bool{"auto": false}); rec.Code != http.StatusOK {
		t.Fatalf("mode switch status = %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/devices/fan/toggle", map[string]interface{}{"on": true, "level": 50})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	st, err := ts.store.GetActuator("livingroom", model.DeviceFan)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != model.StateOn || st.Level != 50 {
		t.Errorf("stored fan = %+v", st)
	}
}

func TestToggleUnknownDevice(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/devices/heater/toggle", map[string]interface{}{"on": true})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestLevelValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/mode", map[string]bool{"auto": false})

	rec := ts.do(t, http.MethodPost, "/api/devices/led/level", map[string]int{"level": 140})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range level status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/devices/led/level", map[string]int{"level": 60})
	if rec.Code != http.StatusAccepted {
		t.Errorf("level status = %d", rec.Code)
	}
}

func TestToggleLevelValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/mode", map[string]bool{"auto": false})
	ts.transport.reset()

	rec := ts.do(t, http.MethodPost, "/api/devices/fan/toggle", map[string]interface{}{"on": true, "level": 140})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range level status = %d", rec.Code)
	}
	if ts.transport.commands() != 0 {
		t.Error("rejected toggle must not publish")
	}

	rec = ts.do(t, http.MethodPost, "/api/devices/fan/toggle", map[string]interface{}{"on": true, "level": -1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative level status = %d", rec.Code)
	}
}

func TestEventsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.events.Add(events.EventRoomSwitch, "bedroom")
	ts.events.Add(events.EventAlert, "device fan rejected the last command")

	rec := ts.do(t, http.MethodGet, "/api/events?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Events []events.Event `json:"events"`
		LastID int64          `json:"lastId"`
		Total  int            `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Type != events.EventAlert {
		t.Errorf("events = %+v", resp.Events)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d", resp.Total)
	}
	if resp.LastID != ts.events.LastID() {
		t.Errorf("lastId = %d", resp.LastID)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t)

	base := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC).UnixMilli()
	for i := 0; i < 3; i++ {
		if err := ts.store.AppendReading("kitchen", model.SensorTemperature, base+int64(i)*1000, 20+float64(i)); err != nil {
			t.Fatal(err)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/history/kitchen/temp?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Readings []model.Reading `json:"readings"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Readings) != 2 {
		t.Fatalf("readings = %d", len(resp.Readings))
	}
	// Newest two, oldest first.
	if resp.Readings[0].Value != 21 || resp.Readings[1].Value != 22 {
		t.Errorf("readings = %+v", resp.Readings)
	}

	if rec := ts.do(t, http.MethodGet, "/api/history/garage/temp", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown room status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/history/kitchen/pressure", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown sensor status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/history/kitchen/temp?limit=bogus", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}
