package behaviour

import (
	"log/slog"

	"crownstone-home/internal/daytime"
)

// TwilightHandler resolves the twilight subset of the store into a dim
// ceiling: the maximum intensity any other logic may command. Twilight is a
// restriction, not a decision, so the most restrictive active rule wins and
// there is no ambiguity signalling.
type TwilightHandler struct {
	store   *Store
	clock   daytime.Clock
	logger  *slog.Logger
	enabled bool
	ceiling *uint8
}

// NewTwilightHandler creates a twilight handler.
func NewTwilightHandler(store *Store, clock daytime.Clock, enabled bool, logger *slog.Logger) *TwilightHandler {
	return &TwilightHandler{
		store:   store,
		clock:   clock,
		logger:  logger.With("component", "twilighthandler"),
		enabled: enabled,
	}
}

// SetEnabled flips the handler on or off. Disabled means no ceiling.
func (h *TwilightHandler) SetEnabled(enabled bool) {
	h.enabled = enabled
}

// Update recomputes the ceiling. Returns true when the value changed.
func (h *TwilightHandler) Update() bool {
	next := h.ComputeCeiling(h.clock.Now())
	changed := !optEqual(h.ceiling, next)
	h.ceiling = next
	return changed
}

// Value returns the last computed ceiling; nil means no restriction.
func (h *TwilightHandler) Value() *uint8 {
	return h.ceiling
}

// ComputeCeiling returns the minimum intensity among the twilight behaviours
// active at t, or nil when none is active.
func (h *TwilightHandler) ComputeCeiling(t daytime.Time) *uint8 {
	if !h.enabled || !t.Valid() {
		return nil
	}

	var ceiling *uint8
	for _, b := range h.store.All() {
		tw, ok := b.(*TwilightBehaviour)
		if !ok || !tw.ActiveAt(t) {
			continue
		}
		v := tw.Intensity()
		if ceiling == nil || v < *ceiling {
			ceiling = &v
		}
	}
	return ceiling
}
