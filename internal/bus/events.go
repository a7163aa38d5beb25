package bus

// Event types
const (
	EventTick                = "tick"
	EventTimeSet             = "time_set"
	EventPresenceReport      = "presence_report"
	EventPresenceMutation    = "presence_mutation"
	EventBehaviourMutation   = "behaviour_mutation"
	EventSwitchCommand       = "switch_command"
	EventSwitchStateChanged  = "switch_state_changed"
	EventBehaviourOverridden = "behaviour_overridden"
	EventDimmingAllowed      = "dimming_allowed"
	EventSwitchLocked        = "switch_locked"
	EventOverheat            = "overheat"
)

// Event is a dispatched event: a type tag plus a typed payload.
type Event struct {
	Type string
	Data any
}

// TickPayload accompanies EventTick, emitted once per second.
type TickPayload struct {
	Count  uint32
	Uptime uint32 // seconds since boot
}

// TimeSetPayload accompanies EventTimeSet after an absolute time correction.
type TimeSetPayload struct {
	Posix int64
}

// Presence mutation kinds.
const (
	PresenceChanged          = "changed"
	PresenceFirstEnterSphere = "first_enter_sphere"
	PresenceLastExitSphere   = "last_exit_sphere"
)

// PresenceReportPayload accompanies EventPresenceReport, a raw sighting from
// a transport collaborator before the tracker has applied it.
type PresenceReportPayload struct {
	Profile uint8
	Present bool
}

// PresencePayload accompanies EventPresenceMutation.
type PresencePayload struct {
	Bitmask uint64
	Kind    string
}

// Behaviour mutation kinds.
const (
	BehaviourAdded   = "added"
	BehaviourUpdated = "updated"
	BehaviourRemoved = "removed"
	BehaviourCleared = "cleared"
)

// IndexNone marks a mutation that affects no single index (clear-all).
const IndexNone = 0xFF

// BehaviourMutationPayload accompanies EventBehaviourMutation.
type BehaviourMutationPayload struct {
	Index uint8
	Kind  string
}

// Switch command values above the 0..100 intensity range.
const (
	SwitchCmdToggle    = 253 // off when on, smart-on when off
	SwitchCmdBehaviour = 254 // clear override, follow behaviour rules
	SwitchCmdSmartOn   = 255 // on, level determined by twilight ceiling
)

// SwitchCommandPayload accompanies EventSwitchCommand. Value is either an
// intensity in [0,100] or one of the SwitchCmd constants.
type SwitchCommandPayload struct {
	Value  uint8
	Source string // "app", "mqtt", "mesh", ...
}

// SwitchStatePayload accompanies EventSwitchStateChanged.
type SwitchStatePayload struct {
	Intensity   uint8
	RelayOn     bool
	DimmerLevel uint8
}

// OverriddenPayload accompanies EventBehaviourOverridden.
type OverriddenPayload struct {
	Active bool
}

// FlagPayload accompanies EventDimmingAllowed, EventSwitchLocked and
// EventOverheat.
type FlagPayload struct {
	Value bool
}
