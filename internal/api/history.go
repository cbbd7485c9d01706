package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"semsview/internal/model"
	"semsview/internal/session"
	"semsview/internal/storage"
)

// defaultHistoryLimit bounds a readings query with no explicit limit.
const defaultHistoryLimit = 100

// maxHistoryLimit caps a single readings query.
const maxHistoryLimit = 1000

// HistoryHandler serves persisted sensor readings for any configured
// room, active or not.
type HistoryHandler struct {
	session *session.Controller
	store   *storage.BoltStorage
}

// NewHistoryHandler creates the history handler.
func NewHistoryHandler(sess *session.Controller, store *storage.BoltStorage) *HistoryHandler {
	return &HistoryHandler{session: sess, store: store}
}

// Readings returns up to ?limit= of the newest persisted readings for
// one room and sensor, oldest first.
func (h *HistoryHandler) Readings(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if !h.knownRoom(room) {
		writeError(w, http.StatusNotFound, "unknown room")
		return
	}

	sensor := model.SensorKind(chi.URLParam(r, "sensor"))
	if !model.KnownSensor(sensor) {
		writeError(w, http.StatusNotFound, "unknown sensor")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	readings, err := h.store.RecentReadings(room, sensor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if readings == nil {
		readings = []model.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room":     room,
		"sensor":   sensor,
		"readings": readings,
	})
}

func (h *HistoryHandler) knownRoom(room string) bool {
	for _, r := range h.session.Rooms() {
		if r == room {
			return true
		}
	}
	return false
}
