package main

import (
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hearthward/floorctl/src/control"
)

// Store persists the few fields that must survive a restart: the room
// setpoint, the operating mode, and the per-heater toggle counters.
// Everything else re-initializes cold.
type Store struct {
	db *bolt.DB
}

var (
	bucketZone    = []byte("zone")
	bucketToggles = []byte("toggle_counts")

	keyTarget = []byte("target")
	keyMode   = []byte("mode")
)

// OpenStore opens (creating if needed) the bolt file at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketZone); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketToggles)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init state store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTarget persists the room setpoint.
func (s *Store) SaveTarget(target float64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketZone).Put(keyTarget, []byte(strconv.FormatFloat(target, 'f', -1, 64)))
	})
}

// LoadTarget returns the persisted setpoint, or ok=false if none.
func (s *Store) LoadTarget() (target float64, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketZone).Get(keyTarget)
		if raw == nil {
			return nil
		}
		parsed, perr := strconv.ParseFloat(string(raw), 64)
		if perr != nil {
			return fmt.Errorf("corrupt target %q: %w", raw, perr)
		}
		target = parsed
		ok = true
		return nil
	})
	return target, ok, err
}

// SaveMode persists the operating mode.
func (s *Store) SaveMode(mode control.Mode) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketZone).Put(keyMode, []byte(mode))
	})
}

// LoadMode returns the persisted mode, or ok=false if none.
func (s *Store) LoadMode() (mode control.Mode, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketZone).Get(keyMode)
		if raw == nil {
			return nil
		}
		mode = control.Mode(raw)
		ok = true
		return nil
	})
	return mode, ok, err
}

// SaveToggleCounts persists the per-heater toggle counters.
func (s *Store) SaveToggleCounts(counts map[string]int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketToggles)
		for id, count := range counts {
			if err := b.Put([]byte(id), []byte(strconv.Itoa(count))); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadToggleCounts returns all persisted toggle counters.
func (s *Store) LoadToggleCounts() (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketToggles).ForEach(func(k, v []byte) error {
			count, perr := strconv.Atoi(string(v))
			if perr != nil {
				return fmt.Errorf("corrupt toggle count for %s: %w", k, perr)
			}
			counts[string(k)] = count
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
