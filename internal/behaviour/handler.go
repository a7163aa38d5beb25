package behaviour

import (
	"log/slog"

	"crownstone-home/internal/daytime"
	"crownstone-home/internal/presence"
)

// Handler resolves the switch-behaviour subset of the store into the
// intended switch state. Stateless besides the last computed value, which is
// kept only to make Update edge-triggered.
type Handler struct {
	store    *Store
	clock    daytime.Clock
	tracker  *presence.Tracker
	logger   *slog.Logger
	enabled  bool
	intended *uint8
}

// NewHandler creates a behaviour handler. enabled mirrors the persisted
// behaviour-settings flag.
func NewHandler(store *Store, clock daytime.Clock, tracker *presence.Tracker, enabled bool, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		clock:   clock,
		tracker: tracker,
		logger:  logger.With("component", "behaviourhandler"),
		enabled: enabled,
	}
}

// SetEnabled flips the handler on or off. A disabled handler resolves to
// "no intent".
func (h *Handler) SetEnabled(enabled bool) {
	h.enabled = enabled
	h.logger.Info("behaviour handler enabled flag", "enabled", enabled)
}

// Enabled reports the settings flag.
func (h *Handler) Enabled() bool { return h.enabled }

// Update recomputes the intended state from the current time and presence.
// Returns true when the value changed since the previous update.
func (h *Handler) Update() bool {
	var next *uint8
	if h.enabled {
		next = h.ComputeIntendedState(h.clock.Now(), h.tracker.Current())
	}
	changed := !optEqual(h.intended, next)
	h.intended = next
	return changed
}

// Value returns the last computed intended state; nil means no behaviour
// applies (or resolution was ambiguous).
func (h *Handler) Value() *uint8 {
	return h.intended
}

// ComputeIntendedState resolves the switch behaviours that are active at the
// given time and whose presence condition holds. With several candidates the
// relevance ordering picks a winner: the more relevant time window first,
// presence specificity as tie-break. When equally relevant candidates
// disagree on intensity, resolution fails and the result is nil - ambiguity
// must never actuate.
func (h *Handler) ComputeIntendedState(t daytime.Time, p presence.Description) *uint8 {
	if !t.Valid() {
		return nil
	}
	uptime := h.clock.Uptime()

	var candidates []*SwitchBehaviour
	for _, b := range h.store.All() {
		sb, ok := b.(*SwitchBehaviour)
		if !ok {
			continue
		}
		if sb.ActiveAt(t) && sb.PresenceValid(p, uptime) {
			candidates = append(candidates, sb)
		}
	}

	switch len(candidates) {
	case 0:
		return nil
	case 1:
		v := candidates[0].Intensity()
		return &v
	}

	// A candidate is maximal when no other candidate strictly outranks it,
	// comparing time windows first and presence specificity on window ties.
	now := t.TimeOfDay()
	var winners []*SwitchBehaviour
	for _, c := range candidates {
		beaten := false
		for _, other := range candidates {
			if other == c {
				continue
			}
			if outranks(other, c, now) {
				beaten = true
				break
			}
		}
		if !beaten {
			winners = append(winners, c)
		}
	}

	intensity := winners[0].Intensity()
	for _, w := range winners[1:] {
		if w.Intensity() != intensity {
			h.logger.Debug("ambiguous behaviour resolution", "candidates", len(winners))
			return nil
		}
	}
	return &intensity
}

// outranks reports whether a strictly dominates b at the given time of day.
func outranks(a, b *SwitchBehaviour, now daytime.TimeOfDay) bool {
	if FromUntilIntervalIsEqual(a, b) {
		return PresenceIsMoreRelevant(a.Condition().Predicate, b.Condition().Predicate)
	}
	aOverB := FromUntilIntervalIsMoreRelevantOrEqual(a.From(), a.Until(), b.From(), b.Until(), now)
	bOverA := FromUntilIntervalIsMoreRelevantOrEqual(b.From(), b.Until(), a.From(), a.Until(), now)
	return aOverB && !bOverA
}

// RequiresPresence reports whether any behaviour active at t has a
// non-negated presence clause. The aggregator uses this to decide whether a
// manual override should be dropped when the last user leaves.
func (h *Handler) RequiresPresence(t daytime.Time) bool {
	for _, b := range h.store.All() {
		sb, ok := b.(*SwitchBehaviour)
		if !ok || !sb.ActiveAt(t) {
			continue
		}
		switch sb.Condition().Predicate.Condition {
		case AnyoneInSphere, AnyoneInRoom:
			return true
		}
	}
	return false
}

// RequiresAbsence reports whether any behaviour active at t has a negated
// presence clause.
func (h *Handler) RequiresAbsence(t daytime.Time) bool {
	for _, b := range h.store.All() {
		sb, ok := b.(*SwitchBehaviour)
		if !ok || !sb.ActiveAt(t) {
			continue
		}
		switch sb.Condition().Predicate.Condition {
		case NooneInSphere, NooneInRoom:
			return true
		}
	}
	return false
}

func optEqual(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
