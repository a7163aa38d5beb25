package store

// SwitchState is the last commanded hardware output, restored at boot so the
// device comes back in the state it was left in.
type SwitchState struct {
	Intensity   uint8 `json:"intensity"`
	RelayOn     bool  `json:"relay_on"`
	DimmerLevel uint8 `json:"dimmer_level"`
}

// Settings holds the persisted configuration flags the switch arbitration
// depends on.
type Settings struct {
	DimmingAllowed   bool `json:"dimming_allowed"`
	SwitchLocked     bool `json:"switch_locked"`
	BehaviourEnabled bool `json:"behaviour_enabled"`
}

// DefaultSettings is the factory configuration: behaviours enabled, dimming
// disabled until explicitly allowed, switch unlocked.
func DefaultSettings() *Settings {
	return &Settings{
		DimmingAllowed:   false,
		SwitchLocked:     false,
		BehaviourEnabled: true,
	}
}
