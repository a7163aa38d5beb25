package switching

import (
	"errors"
	"log/slog"

	"crownstone-home/internal/behaviour"
	"crownstone-home/internal/bus"
	"crownstone-home/internal/daytime"
)

// Aggregator is the final arbiter over the switch output. It merges the
// behaviour handler's intent, the twilight ceiling, manual overrides and the
// safety flags into one value and drives the smart switch with it.
//
// Precedence: an override wins outright; otherwise behaviour intent clamped
// to the twilight ceiling; with no intent the last aggregated value stays in
// place. Locks freeze the hardware underneath all of it.
type Aggregator struct {
	bus       *bus.Bus
	smart     *SmartSwitch
	behaviour *behaviour.Handler
	twilight  *behaviour.TwilightHandler
	clock     daytime.Clock
	logger    *slog.Logger

	overrideState  *uint8
	aggregated     *uint8
	lastOverridden *bool
	locked         bool
	overheat       bool
	history        History

	unsubs []func()
}

// NewAggregator wires the arbiter. Call Init to subscribe it to the bus.
func NewAggregator(b *bus.Bus, smart *SmartSwitch, bh *behaviour.Handler, tw *behaviour.TwilightHandler, clock daytime.Clock, locked bool, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		bus:       b,
		smart:     smart,
		behaviour: bh,
		twilight:  tw,
		clock:     clock,
		locked:    locked,
		logger:    logger.With("component", "aggregator"),
	}
}

// Init subscribes to every event that can change the output. Registration
// order matters: the presence tracker must be subscribed before the
// aggregator so resolvers see an up-to-date presence snapshot on ticks.
func (a *Aggregator) Init() {
	a.unsubs = append(a.unsubs,
		a.bus.On(bus.EventTick, func(e bus.Event) { a.onTick() }),
		a.bus.On(bus.EventTimeSet, func(e bus.Event) { a.recompute() }),
		a.bus.On(bus.EventBehaviourMutation, func(e bus.Event) { a.recompute() }),
		a.bus.On(bus.EventPresenceMutation, func(e bus.Event) {
			if p, ok := e.Data.(bus.PresencePayload); ok {
				a.onPresence(p)
			}
		}),
		a.bus.On(bus.EventSwitchCommand, func(e bus.Event) {
			if p, ok := e.Data.(bus.SwitchCommandPayload); ok {
				a.HandleCommand(p.Value, p.Source)
			}
		}),
		a.bus.On(bus.EventDimmingAllowed, func(e bus.Event) {
			if p, ok := e.Data.(bus.FlagPayload); ok {
				a.SetDimmingAllowed(p.Value)
			}
		}),
		a.bus.On(bus.EventSwitchLocked, func(e bus.Event) {
			if p, ok := e.Data.(bus.FlagPayload); ok {
				a.SetLocked(p.Value)
			}
		}),
		a.bus.On(bus.EventOverheat, func(e bus.Event) {
			if p, ok := e.Data.(bus.FlagPayload); ok {
				a.onOverheat(p.Value)
			}
		}),
	)
}

// Close drops the bus subscriptions.
func (a *Aggregator) Close() {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
}

// onTick re-resolves both handlers once a second. A behaviour transition
// observed on the tick path may also clear a stale override.
func (a *Aggregator) onTick() {
	behaviourChanged := a.updateHandlers()
	a.updateState(behaviourChanged, "behaviour")
	if behaviourChanged && a.aggregated != nil {
		a.addHistory(*a.aggregated, "behaviour")
	}
}

// recompute re-resolves without permitting an override reset.
func (a *Aggregator) recompute() {
	a.updateHandlers()
	a.updateState(false, "behaviour")
}

// onPresence handles presence mutations. When the last user leaves the
// sphere and a presence-requiring behaviour is active, a manual override no
// longer reflects anyone's wish and is dropped.
func (a *Aggregator) onPresence(p bus.PresencePayload) {
	if p.Kind == bus.PresenceLastExitSphere && a.overrideState != nil {
		if a.behaviour.RequiresPresence(a.clock.Now()) {
			a.logger.Info("clearing override, last user exited sphere")
			a.overrideState = nil
			a.updateHandlers()
			a.updateState(true, "presence")
			return
		}
	}
	a.recompute()
}

// onOverheat revokes dimming on a dimmer temperature event. The flag is not
// restored automatically.
func (a *Aggregator) onOverheat(active bool) {
	if !active {
		return
	}
	a.overheat = true
	a.logger.Warn("overheat, revoking dimming")
	if _, err := a.smart.SetAllowDimming(false); err != nil && !errors.Is(err, ErrSwitchLocked) {
		a.logger.Error("degrade after overheat", "error", err)
	}
	a.emitState()
}

// HandleCommand executes a switch command: an intensity in [0,100] or one of
// the command constants (toggle, revert to behaviour, smart on).
func (a *Aggregator) HandleCommand(value uint8, source string) {
	switch value {
	case bus.SwitchCmdToggle:
		next := uint8(0)
		if a.smart.IntendedState() == 0 {
			next = bus.SwitchCmdSmartOn
		}
		a.HandleCommand(next, source)
		return
	case bus.SwitchCmdBehaviour:
		a.overrideState = nil
	case bus.SwitchCmdSmartOn:
		v := value
		a.overrideState = &v
	default:
		if value > 100 {
			a.logger.Warn("ignoring out-of-range switch command", "value", value, "source", source)
			return
		}
		v := value
		a.overrideState = &v
	}

	// The override was just set on purpose, never reset it here.
	a.updateHandlers()
	a.updateState(false, source)
	a.addHistory(value, source)
}

// SetDimmingAllowed applies the persisted dimming flag.
func (a *Aggregator) SetDimmingAllowed(allowed bool) {
	if a.overheat && allowed {
		a.logger.Warn("dimming stays revoked while overheated")
		return
	}
	changed, err := a.smart.SetAllowDimming(allowed)
	if err != nil && !errors.Is(err, ErrSwitchLocked) {
		a.logger.Error("apply dimming flag", "error", err)
	}
	if changed {
		a.emitState()
	}
}

// SetLocked applies the switch lock flag.
func (a *Aggregator) SetLocked(locked bool) {
	a.locked = locked
	changed, err := a.smart.SetAllowSwitching(!locked)
	if err != nil && !errors.Is(err, ErrSwitchLocked) {
		a.logger.Error("apply lock flag", "error", err)
	}
	if changed {
		a.emitState()
	}
}

// Locked reports the switch lock flag.
func (a *Aggregator) Locked() bool { return a.locked }

// SetBehaviourEnabled flips both resolvers and re-arbitrates, so disabling
// rules takes effect without waiting for the next tick.
func (a *Aggregator) SetBehaviourEnabled(enabled bool) {
	a.behaviour.SetEnabled(enabled)
	a.twilight.SetEnabled(enabled)
	a.recompute()
}

// BehaviourEnabled reports the resolver flag.
func (a *Aggregator) BehaviourEnabled() bool { return a.behaviour.Enabled() }

// OverrideState returns the pending override, nil when none.
func (a *Aggregator) OverrideState() *uint8 {
	if a.overrideState == nil {
		return nil
	}
	v := *a.overrideState
	return &v
}

// AggregatedState returns the last arbitrated value, nil before the first
// resolution.
func (a *Aggregator) AggregatedState() *uint8 {
	if a.aggregated == nil {
		return nil
	}
	v := *a.aggregated
	return &v
}

// History returns the recent command log, oldest first.
func (a *Aggregator) History() []HistoryItem {
	return a.history.Items()
}

// updateHandlers recomputes both resolvers and reports whether the behaviour
// intent transitioned from one concrete value to another. Transitions into
// or out of "no intent" do not count, they must not reset an override.
func (a *Aggregator) updateHandlers() bool {
	prev := a.behaviour.Value()
	a.behaviour.Update()
	a.twilight.Update()
	next := a.behaviour.Value()
	if prev == nil || next == nil {
		return false
	}
	return *prev != *next
}

// updateState arbitrates and actuates. With allowOverrideReset set, an
// override whose on/off state the behaviour has caught up with is dropped,
// handing control back to the rules.
func (a *Aggregator) updateState(allowOverrideReset bool, source string) {
	behaviourState := a.behaviour.Value()

	shouldReset := false
	if a.overrideState != nil && behaviourState != nil && a.aggregated != nil {
		overrideOn := *a.overrideState != 0
		aggregatedOn := *a.aggregated != 0
		behaviourOn := *behaviourState != 0
		if overrideOn == aggregatedOn && behaviourOn != aggregatedOn && allowOverrideReset {
			a.logger.Info("override reset, behaviour takes over", "behaviour", *behaviourState)
			shouldReset = true
		}
	}

	switch {
	case a.overrideState != nil && !shouldReset:
		v := a.resolveOverrideState(*a.overrideState)
		a.aggregated = &v
	case behaviourState != nil:
		v := a.aggregatedBehaviourIntensity()
		a.aggregated = &v
	default:
		// No override and no intent: keep the last aggregated value.
	}

	if shouldReset {
		a.overrideState = nil
	}

	if a.aggregated != nil {
		changed, err := a.smart.Set(*a.aggregated)
		if err != nil && !errors.Is(err, ErrSwitchLocked) {
			a.logger.Error("actuate", "error", err, "value", *a.aggregated)
		}
		if changed {
			a.emitState()
		}
	}

	// Edge-triggered: downstream collaborators (MQTT retained topics, UART
	// frames) must not see an unchanged flag once a second.
	active := a.overrideState != nil
	if a.lastOverridden == nil || *a.lastOverridden != active {
		a.lastOverridden = &active
		a.bus.Emit(bus.Event{
			Type: bus.EventBehaviourOverridden,
			Data: bus.OverriddenPayload{Active: active},
		})
	}
}

// resolveOverrideState maps the smart-on command onto a concrete level: the
// dimmed value the rules would pick when they have one, full-on otherwise.
func (a *Aggregator) resolveOverrideState(override uint8) uint8 {
	if override != bus.SwitchCmdSmartOn {
		return override
	}
	behaviourState := a.behaviour.Value()
	twilightState := a.twilight.Value()

	bOn := behaviourState != nil && *behaviourState > 0
	tOn := twilightState != nil && *twilightState > 0
	switch {
	case bOn && tOn:
		return min(*behaviourState, *twilightState)
	case bOn:
		return *behaviourState
	case tOn:
		return *twilightState
	}
	return 100
}

// aggregatedBehaviourIntensity clamps the behaviour intent to the twilight
// ceiling.
func (a *Aggregator) aggregatedBehaviourIntensity() uint8 {
	behaviourState := a.behaviour.Value()
	twilightState := a.twilight.Value()

	switch {
	case behaviourState != nil && twilightState != nil:
		return min(*behaviourState, *twilightState)
	case behaviourState != nil:
		return *behaviourState
	case twilightState != nil:
		return *twilightState
	}
	return 100
}

func (a *Aggregator) emitState() {
	state := a.smart.State()
	a.bus.Emit(bus.Event{
		Type: bus.EventSwitchStateChanged,
		Data: bus.SwitchStatePayload{
			Intensity:   state.Intensity,
			RelayOn:     state.RelayOn,
			DimmerLevel: state.DimmerLevel,
		},
	})
}

func (a *Aggregator) addHistory(value uint8, source string) {
	var ts int64
	if now := a.clock.Now(); now.Valid() {
		ts = now.Posix()
	}
	a.history.Add(HistoryItem{
		Timestamp: ts,
		Value:     value,
		Intensity: a.smart.CurrentIntensity(),
		Source:    source,
	})
}
