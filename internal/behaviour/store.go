package behaviour

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"crownstone-home/internal/bus"
	"crownstone-home/internal/store"
)

// MaxBehaviours is the fixed store capacity.
const MaxBehaviours = 50

// IndexNone denotes "no index" in mutation events.
const IndexNone = bus.IndexNone

// Store is the fixed-capacity indexed collection of behaviour rules. It is
// the single source of truth at runtime; persistence is delegated to the
// storage collaborator, keyed by slot index. Every mutation dispatches an
// EventBehaviourMutation so dependent resolvers can invalidate their cached
// resolution.
type Store struct {
	mu      sync.Mutex
	slots   [MaxBehaviours]Behaviour // nil = empty slot
	bus     *bus.Bus
	persist store.Store
	logger  *slog.Logger
}

// NewStore creates an empty behaviour store.
func NewStore(b *bus.Bus, persist store.Store, logger *slog.Logger) *Store {
	return &Store{
		bus:     b,
		persist: persist,
		logger:  logger.With("component", "behaviourstore"),
	}
}

// Load restores persisted behaviour records. Undecodable records are logged
// and skipped, never fatal.
func (s *Store) Load() error {
	records, err := s.persist.ListBehaviours()
	if err != nil {
		return fmt.Errorf("list behaviours: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for index, record := range records {
		if index >= MaxBehaviours {
			s.logger.Warn("persisted behaviour at out-of-range index, skipping", "index", index)
			continue
		}
		b, err := Decode(record)
		if err != nil {
			s.logger.Warn("undecodable behaviour record, skipping", "index", index, "err", err)
			continue
		}
		s.slots[index] = b
		loaded++
	}
	s.logger.Info("behaviours loaded", "count", loaded)
	return nil
}

// Save stores a behaviour at the first free slot and returns its index.
// Saving a behaviour identical to an already stored one returns the existing
// index without mutating anything.
func (s *Store) Save(b Behaviour) (uint8, error) {
	record := b.Encode()

	s.mu.Lock()
	free := -1
	for i, slot := range s.slots {
		if slot == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if bytes.Equal(slot.Encode(), record) {
			s.mu.Unlock()
			s.logger.Info("behaviour already stored", "index", i)
			return uint8(i), nil
		}
	}
	if free < 0 {
		s.mu.Unlock()
		return IndexNone, fmt.Errorf("behaviour store full (%d entries)", MaxBehaviours)
	}
	index := uint8(free)
	s.slots[index] = b
	s.mu.Unlock()

	if err := s.persist.SaveBehaviour(index, record); err != nil {
		return index, fmt.Errorf("persist behaviour %d: %w", index, err)
	}
	s.logger.Info("behaviour added", "index", index, "behaviour", b)
	s.mutated(index, bus.BehaviourAdded)
	return index, nil
}

// Replace stores a behaviour at a specific index, overwriting any previous
// occupant.
func (s *Store) Replace(index uint8, b Behaviour) error {
	if index >= MaxBehaviours {
		return fmt.Errorf("index %d out of range [0,%d)", index, MaxBehaviours)
	}

	s.mu.Lock()
	s.slots[index] = b
	s.mu.Unlock()

	if err := s.persist.SaveBehaviour(index, b.Encode()); err != nil {
		return fmt.Errorf("persist behaviour %d: %w", index, err)
	}
	s.logger.Info("behaviour replaced", "index", index, "behaviour", b)
	s.mutated(index, bus.BehaviourUpdated)
	return nil
}

// Remove deletes the behaviour at the given index. Removing an already
// empty slot succeeds without dispatching a mutation.
func (s *Store) Remove(index uint8) error {
	if index >= MaxBehaviours {
		return fmt.Errorf("index %d out of range [0,%d)", index, MaxBehaviours)
	}

	s.mu.Lock()
	existed := s.slots[index] != nil
	s.slots[index] = nil
	s.mu.Unlock()

	if !existed {
		return nil
	}
	if err := s.persist.DeleteBehaviour(index); err != nil {
		return fmt.Errorf("unpersist behaviour %d: %w", index, err)
	}
	s.logger.Info("behaviour removed", "index", index)
	s.mutated(index, bus.BehaviourRemoved)
	return nil
}

// Clear removes all behaviours.
func (s *Store) Clear() error {
	s.mu.Lock()
	for i := range s.slots {
		s.slots[i] = nil
	}
	s.mu.Unlock()

	if err := s.persist.ClearBehaviours(); err != nil {
		return fmt.Errorf("clear behaviours: %w", err)
	}
	s.logger.Info("behaviours cleared")
	s.mutated(IndexNone, bus.BehaviourCleared)
	return nil
}

// Get returns the behaviour at an index, or (nil, false) when the slot is
// empty or the index out of range.
func (s *Store) Get(index uint8) (Behaviour, bool) {
	if index >= MaxBehaviours {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.slots[index]
	return b, b != nil
}

// All returns a snapshot of the occupied slots, in index order.
func (s *Store) All() []Behaviour {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Behaviour, 0, MaxBehaviours)
	for _, b := range s.slots {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Each calls fn for every occupied slot, in index order.
func (s *Store) Each(fn func(index uint8, b Behaviour)) {
	s.mu.Lock()
	snapshot := s.slots
	s.mu.Unlock()
	for i, b := range snapshot {
		if b != nil {
			fn(uint8(i), b)
		}
	}
}

// Len returns the number of stored behaviours.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.slots {
		if b != nil {
			n++
		}
	}
	return n
}

func (s *Store) mutated(index uint8, kind string) {
	s.bus.Emit(bus.Event{
		Type: bus.EventBehaviourMutation,
		Data: bus.BehaviourMutationPayload{Index: index, Kind: kind},
	})
}
