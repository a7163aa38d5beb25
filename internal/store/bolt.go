package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketBehaviours = []byte("behaviours")
	bucketState      = []byte("state")
	keySwitchState   = []byte("switch")
	keySettings      = []byte("settings")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBehaviours, bucketState} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveBehaviour(index uint8, record []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBehaviours)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketBehaviours)
		}
		return b.Put([]byte{index}, record)
	})
}

func (s *BoltStore) DeleteBehaviour(index uint8) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBehaviours)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketBehaviours)
		}
		return b.Delete([]byte{index})
	})
}

func (s *BoltStore) ClearBehaviours() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketBehaviours); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketBehaviours)
		return err
	})
}

func (s *BoltStore) ListBehaviours() (map[uint8][]byte, error) {
	records := make(map[uint8][]byte)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBehaviours)
		if b == nil {
			return nil // no bucket = no behaviours
		}
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 1 {
				return fmt.Errorf("behaviour key %x: want a single index byte", k)
			}
			record := make([]byte, len(v))
			copy(record, v)
			records[k[0]] = record
			return nil
		})
	})
	return records, err
}

func (s *BoltStore) SaveSwitchState(state *SwitchState) error {
	return s.putJSON(keySwitchState, state)
}

func (s *BoltStore) GetSwitchState() (*SwitchState, error) {
	var state SwitchState
	if err := s.getJSON(keySwitchState, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *BoltStore) SaveSettings(settings *Settings) error {
	return s.putJSON(keySettings, settings)
}

func (s *BoltStore) GetSettings() (*Settings, error) {
	var settings Settings
	if err := s.getJSON(keySettings, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *BoltStore) putJSON(key []byte, v any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketState)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) getJSON(key []byte, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketState)
		}
		data := b.Get(key)
		if data == nil {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
