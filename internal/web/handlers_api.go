package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"crownstone-home/internal/behaviour"
	"crownstone-home/internal/bus"
	"crownstone-home/internal/daytime"
	"crownstone-home/internal/store"
)

// behaviourView is the JSON representation of a stored rule.
type behaviourView struct {
	Index     uint8  `json:"index"`
	Type      string `json:"type"`
	Intensity uint8  `json:"intensity"`
	Profile   uint8  `json:"profile"`
	Days      uint8  `json:"days"`
	From      string `json:"from"`
	Until     string `json:"until"`

	// Switch behaviours only.
	Condition *uint8  `json:"condition,omitempty"`
	Rooms     *uint64 `json:"rooms,omitempty"`
	Timeout   *uint32 `json:"timeout,omitempty"`
}

func viewOf(index uint8, b behaviour.Behaviour) behaviourView {
	v := behaviourView{
		Index:     index,
		Type:      b.Type().String(),
		Intensity: b.Intensity(),
		Profile:   b.Profile(),
		Days:      uint8(b.ActiveDays()),
		From:      b.From().String(),
		Until:     b.Until().String(),
	}
	if sb, ok := b.(*behaviour.SwitchBehaviour); ok {
		cond := sb.Condition()
		c := uint8(cond.Predicate.Condition)
		rooms := cond.Predicate.Rooms
		timeout := cond.TimeoutSeconds
		v.Condition = &c
		v.Rooms = &rooms
		v.Timeout = &timeout
	}
	return v
}

// behaviourRequest is the JSON body for create and replace.
type behaviourRequest struct {
	Type      string `json:"type"`
	Intensity uint8  `json:"intensity"`
	Profile   uint8  `json:"profile"`
	Days      uint8  `json:"days"`
	From      string `json:"from"`
	Until     string `json:"until"`
	Condition uint8  `json:"condition"`
	Rooms     uint64 `json:"rooms"`
	Timeout   uint32 `json:"timeout"`
}

func (req *behaviourRequest) build() (behaviour.Behaviour, error) {
	from, err := daytime.ParseTimeOfDay(req.From)
	if err != nil {
		return nil, err
	}
	until, err := daytime.ParseTimeOfDay(req.Until)
	if err != nil {
		return nil, err
	}
	days := daytime.DayMask(req.Days)

	switch req.Type {
	case "twilight":
		return behaviour.NewTwilightBehaviour(req.Intensity, req.Profile, days, from, until)
	case "switch", "":
		cond := behaviour.PresenceCondition{
			Predicate: behaviour.Predicate{
				Condition: behaviour.Condition(req.Condition),
				Rooms:     req.Rooms,
			},
			TimeoutSeconds: req.Timeout,
		}
		return behaviour.NewSwitchBehaviour(req.Intensity, req.Profile, days, from, until, cond)
	default:
		return nil, errors.New("unknown behaviour type " + strconv.Quote(req.Type))
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) pathIndex(w http.ResponseWriter, r *http.Request) (uint8, bool) {
	n, err := strconv.ParseUint(r.PathValue("index"), 10, 8)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid index")
		return 0, false
	}
	return uint8(n), true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Time.Now()
	state := s.deps.Smart.State()

	status := map[string]any{
		"time": map[string]any{
			"synced": now.Valid(),
			"posix":  now.Posix(),
			"uptime": s.deps.Time.Uptime(),
		},
		"switch": map[string]any{
			"intensity":    state.Intensity,
			"relay_on":     state.RelayOn,
			"dimmer_level": state.DimmerLevel,
			"intended":     s.deps.Smart.IntendedState(),
		},
		"override":   s.deps.Aggregator.OverrideState(),
		"aggregated": s.deps.Aggregator.AggregatedState(),
		"presence":   s.deps.Tracker.Current().Bitmask(),
		"flags": map[string]any{
			"dimming_allowed":   s.deps.Smart.AllowDimming(),
			"switch_locked":     s.deps.Aggregator.Locked(),
			"behaviour_enabled": s.deps.Aggregator.BehaviourEnabled(),
		},
		"behaviour_count": s.deps.Rules.Len(),
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleListBehaviours(w http.ResponseWriter, r *http.Request) {
	views := []behaviourView{}
	s.deps.Rules.Each(func(index uint8, b behaviour.Behaviour) {
		views = append(views, viewOf(index, b))
	})
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetBehaviour(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	b, ok := s.deps.Rules.Get(index)
	if !ok {
		s.writeError(w, http.StatusNotFound, "behaviour not found")
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(index, b))
}

func (s *Server) handleCreateBehaviour(w http.ResponseWriter, r *http.Request) {
	var req behaviourRequest
	if !s.decode(w, r, &req) {
		return
	}
	b, err := req.build()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	index, err := s.deps.Rules.Save(b)
	if err != nil {
		s.logger.Error("save behaviour", "err", err)
		s.writeError(w, http.StatusInsufficientStorage, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, viewOf(index, b))
}

func (s *Server) handleReplaceBehaviour(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	var req behaviourRequest
	if !s.decode(w, r, &req) {
		return
	}
	b, err := req.build()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Rules.Replace(index, b); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(index, b))
}

func (s *Server) handleDeleteBehaviour(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	if err := s.deps.Rules.Remove(index); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClearBehaviours(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Rules.Clear(); err != nil {
		s.logger.Error("clear behaviours", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type switchRequest struct {
	Value uint8 `json:"value"`
}

func (s *Server) handleSwitchCommand(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Value > 100 && req.Value < bus.SwitchCmdToggle {
		s.writeError(w, http.StatusBadRequest, "value must be 0..100 or a command constant")
		return
	}
	s.deps.Bus.Emit(bus.Event{
		Type: bus.EventSwitchCommand,
		Data: bus.SwitchCommandPayload{Value: req.Value, Source: "app"},
	})
	state := s.deps.Smart.State()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"intensity":    state.Intensity,
		"relay_on":     state.RelayOn,
		"dimmer_level": state.DimmerLevel,
	})
}

// handleClearOverride hands control back to the behaviour resolvers.
func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	s.deps.Bus.Emit(bus.Event{
		Type: bus.EventSwitchCommand,
		Data: bus.SwitchCommandPayload{Value: bus.SwitchCmdBehaviour, Source: "app"},
	})
	state := s.deps.Smart.State()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"intensity":    state.Intensity,
		"relay_on":     state.RelayOn,
		"dimmer_level": state.DimmerLevel,
		"override":     s.deps.Aggregator.OverrideState(),
	})
}

func (s *Server) handleSwitchHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Aggregator.History())
}

type presenceRequest struct {
	Profile uint8 `json:"profile"`
	Present bool  `json:"present"`
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.deps.Tracker.Report(req.Profile, req.Present)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"presence": s.deps.Tracker.Current().Bitmask(),
	})
}

type timeRequest struct {
	Posix int64 `json:"posix"`
}

func (s *Server) handleSetTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Posix <= 0 {
		s.writeError(w, http.StatusBadRequest, "posix must be positive")
		return
	}
	s.deps.Time.SetTime(req.Posix)
	s.writeJSON(w, http.StatusOK, map[string]any{"posix": req.Posix})
}

type settingsRequest struct {
	DimmingAllowed   *bool `json:"dimming_allowed"`
	SwitchLocked     *bool `json:"switch_locked"`
	BehaviourEnabled *bool `json:"behaviour_enabled"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, store.Settings{
		DimmingAllowed:   s.deps.Smart.AllowDimming(),
		SwitchLocked:     s.deps.Aggregator.Locked(),
		BehaviourEnabled: s.deps.Aggregator.BehaviourEnabled(),
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.DimmingAllowed != nil {
		s.deps.Bus.Emit(bus.Event{
			Type: bus.EventDimmingAllowed,
			Data: bus.FlagPayload{Value: *req.DimmingAllowed},
		})
	}
	if req.SwitchLocked != nil {
		s.deps.Bus.Emit(bus.Event{
			Type: bus.EventSwitchLocked,
			Data: bus.FlagPayload{Value: *req.SwitchLocked},
		})
	}
	if req.BehaviourEnabled != nil {
		s.deps.Aggregator.SetBehaviourEnabled(*req.BehaviourEnabled)
	}

	settings := &store.Settings{
		DimmingAllowed:   s.deps.Smart.AllowDimming(),
		SwitchLocked:     s.deps.Aggregator.Locked(),
		BehaviourEnabled: s.deps.Aggregator.BehaviourEnabled(),
	}
	if err := s.deps.Settings.SaveSettings(settings); err != nil {
		s.logger.Error("persist settings", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}
