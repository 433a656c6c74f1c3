package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// BoltBackend stores session snapshots in a bbolt file so sessions survive restarts.
type BoltBackend struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Close() error { return b.db.Close() }

func (b *BoltBackend) Load(id string) (*Snapshot, bool, error) {
	var sn *Snapshot
	err := b.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(bucketSessions).Get([]byte(id))
		if bs == nil {
			return nil
		}
		sn = &Snapshot{}
		return json.Unmarshal(bs, sn)
	})
	if err != nil {
		return nil, false, err
	}
	return sn, sn != nil, nil
}

func (b *BoltBackend) Save(sn *Snapshot) error {
	if sn == nil || sn.ID == "" {
		return errors.New("session: snapshot without id")
	}
	js, err := json.Marshal(sn)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(sn.ID), js)
	})
}

func (b *BoltBackend) Delete(id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(id))
	})
}

// Purge removes snapshots last seen before the cutoff.
func (b *BoltBackend) Purge(before time.Time) (int, error) {
	n := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketSessions)
		var stale [][]byte
		c := bk.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var sn Snapshot
			if err := json.Unmarshal(v, &sn); err != nil || sn.LastSeen.Before(before) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bk.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}

// MemoryBackend keeps encoded snapshots in a map. Mostly useful in tests to
// exercise the same encode/decode path as the bolt backend.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: map[string][]byte{}}
}

func (m *MemoryBackend) Load(id string) (*Snapshot, bool, error) {
	m.mu.Lock()
	bs, ok := m.data[id]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var sn Snapshot
	if err := json.Unmarshal(bs, &sn); err != nil {
		return nil, false, err
	}
	return &sn, true, nil
}

func (m *MemoryBackend) Save(sn *Snapshot) error {
	if sn == nil || sn.ID == "" {
		return errors.New("session: snapshot without id")
	}
	js, err := json.Marshal(sn)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[sn.ID] = js
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(id string) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}
