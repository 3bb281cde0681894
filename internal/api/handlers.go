package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"rocket-ragdoll/internal/game"
	"rocket-ragdoll/internal/levels"

	"github.com/go-chi/chi/v5"
)

// maxInputBatch caps commands accepted by one POST /api/input
const maxInputBatch = 32

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	if snap == nil {
		writeError(w, "No snapshot yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetScore(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Score())
}

func (h *routerHandlers) handleGetObjective(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Objective())
}

type limbResponse struct {
	Limb            string  `json:"limb"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Angle           float64 `json:"angle"`
	VX              float64 `json:"vx"`
	VY              float64 `json:"vy"`
	AngularVelocity float64 `json:"angularVelocity"`
}

func (h *routerHandlers) handleGetLimbs(w http.ResponseWriter, r *http.Request) {
	limbs := h.engine.Limbs()
	out := make([]limbResponse, 0, len(limbs))
	for _, l := range limbs {
		out = append(out, limbResponse{
			Limb:            l.Limb.String(),
			X:               l.Position.X,
			Y:               l.Position.Y,
			Angle:           l.Angle,
			VX:              l.Velocity.X,
			VY:              l.Velocity.Y,
			AngularVelocity: l.AngularVelocity,
		})
	}
	writeJSON(w, out)
}

type thrusterResponse struct {
	Limb       string  `json:"limb"`
	Active     bool    `json:"active"`
	Enabled    bool    `json:"enabled"`
	Fuel       float64 `json:"fuel"`
	MaxFuel    float64 `json:"maxFuel"`
	Multiplier float64 `json:"multiplier"`
}

func (h *routerHandlers) handleGetThrusters(w http.ResponseWriter, r *http.Request) {
	states := h.engine.Thrusters()
	out := make([]thrusterResponse, 0, len(states))
	for _, t := range states {
		out = append(out, thrusterResponse{
			Limb:       t.Limb.String(),
			Active:     t.Active,
			Enabled:    t.Enabled,
			Fuel:       t.Fuel,
			MaxFuel:    t.MaxFuel,
			Multiplier: t.Multiplier,
		})
	}
	writeJSON(w, out)
}

func (h *routerHandlers) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Chunks())
}

func (h *routerHandlers) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Camera())
}

func (h *routerHandlers) handleGetIndicators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Indicators())
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Events())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"engine": h.engine.Stats(),
		"input":  h.engine.InputStats(),
		"mode":   h.engine.Mode(),
	}
	if err := h.engine.LastError(); err != nil {
		stats["lastError"] = err.Error()
	}
	writeJSON(w, stats)
}

type levelSummary struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Target           int      `json:"target"`
	AvailableRockets []string `json:"availableRockets"`
}

func (h *routerHandlers) handleGetLevels(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeJSON(w, []levelSummary{})
		return
	}
	out := make([]levelSummary, 0, h.catalog.Len())
	for _, id := range h.catalog.IDs() {
		lvl, err := h.catalog.Get(id)
		if err != nil {
			continue
		}
		out = append(out, levelSummary{
			ID:               lvl.ID,
			Name:             lvl.Name,
			Description:      lvl.Description,
			Target:           lvl.Target(),
			AvailableRockets: lvl.AvailableRockets,
		})
	}
	writeJSON(w, out)
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Rendering disabled", http.StatusNotFound)
		return
	}
	snap := h.engine.GetSnapshot()
	if snap == nil {
		writeError(w, "No snapshot yet", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.EncodePNG(w, snap); err != nil {
		log.Printf("❌ Frame render failed: %v", err)
		return
	}
	RecordRender(time.Since(start))
}

// handleInput accepts one command object or an array of them
func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&raw); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var cmds []game.InputCommand
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &cmds); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		var cmd game.InputCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 0 || len(cmds) > maxInputBatch {
		writeError(w, "Expected 1 to 32 commands", http.StatusBadRequest)
		return
	}

	for _, cmd := range cmds {
		if cmd.Action == game.ActionNone {
			writeError(w, "Missing action", http.StatusBadRequest)
			return
		}
	}

	accepted := 0
	for _, cmd := range cmds {
		if h.engine.Enqueue(cmd) {
			accepted++
		}
	}
	if accepted < len(cmds) {
		w.Header().Set("Retry-After", "1")
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]int{"accepted": accepted, "dropped": len(cmds) - accepted})
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]int{"accepted": accepted})
}

func (h *routerHandlers) handleStart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.engine.StartGame())
}

func (h *routerHandlers) handlePause(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.engine.TogglePause())
}

func (h *routerHandlers) handleReset(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.engine.ResetPose())
}

func (h *routerHandlers) handleStartLevel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log.Printf("🎯 Level %s requested via API", id)
	h.respond(w, h.engine.StartLevel(id))
}

func (h *routerHandlers) handleNextLevel(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.engine.NextLevel())
}

func (h *routerHandlers) handleSetMode(w http.ResponseWriter, r *http.Request) {
	mode, err := game.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch {
	case mode == game.ModeEndless:
		err = h.engine.StartEndless()
	case h.engine.Mode() != game.ModeTraining:
		err = h.engine.NextLevel()
	}
	h.respond(w, err)
}

// respond maps engine errors onto status codes
func (h *routerHandlers) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, map[string]interface{}{
			"success": true,
			"phase":   h.engine.Phase(),
			"mode":    h.engine.Mode(),
		})
	case errors.Is(err, levels.ErrLevelNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, levels.ErrInvalidLevel):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, game.ErrInvalidTransition), errors.Is(err, game.ErrTrainingComplete):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, game.ErrNotReady):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSONStatus(w, code, map[string]string{"error": message})
}
