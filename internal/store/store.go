package store

import "errors"

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface. It persists raw behaviour wire
// records by slot index plus the switch state and settings blobs; it knows
// nothing about what the records mean.
type Store interface {
	// Behaviour records, keyed by store slot index.
	SaveBehaviour(index uint8, record []byte) error
	DeleteBehaviour(index uint8) error
	ClearBehaviours() error
	ListBehaviours() (map[uint8][]byte, error)

	// Last commanded switch state.
	SaveSwitchState(state *SwitchState) error
	GetSwitchState() (*SwitchState, error)

	// Persisted configuration flags.
	SaveSettings(settings *Settings) error
	GetSettings() (*Settings, error)

	// Close the store
	Close() error
}
