// Package client implements the ScholarHunter terminal client: durable
// session storage, the REST API client with token refresh, the session
// lifecycle manager, the realtime connection manager and debounced draft
// persistence.
//
// The pieces are wired together by cmd/scholarctl:
//
//	store, _ := client.OpenBoltStorage(cfg.StoragePath)
//	bus := client.NewBus()
//	api := client.NewAPIClient(cfg.APIURL, httpClient)
//	session := client.NewSessionManager(store, bus, api, nav)
//	api.SetTokenStore(session)
//	realtime := client.NewRealtimeManager(store, bus, dialer, cfg.DialTimeout)
package client

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.etcd.io/bbolt"
)

// Durable storage keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	DraftPrefix     = "draft:"
)

var sessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// ErrNotFound is returned by Storage.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// Storage is the durable key-value store behind the client session and
// drafts. Set and Replace are atomic: either every change is applied or
// none is.
type Storage interface {
	Get(key string) (string, error)
	Set(values map[string]string) error
	// Replace writes values and deletes del in one transaction.
	Replace(values map[string]string, del ...string) error
	Delete(keys ...string) error
	List(prefix string) ([]string, error)
}

var bucketName = []byte("scholarhunter")

// BoltStorage is a Storage backed by a single bbolt bucket.
type BoltStorage struct {
	db *bbolt.DB
}

var _ Storage = (*BoltStorage)(nil)

// OpenBoltStorage opens (or creates) the bbolt file at path.
func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func (s *BoltStorage) Get(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		value = string(data)
		return nil
	})
	return value, err
}

func (s *BoltStorage) Set(values map[string]string) error {
	return s.Replace(values)
}

func (s *BoltStorage) Replace(values map[string]string, del ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, k := range del {
			if err := b.Delete([]byte(k)); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		for k, v := range values {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return fmt.Errorf("put %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *BoltStorage) Delete(keys ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *BoltStorage) List(prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// MemoryStorage is a thread-safe in-memory Storage. Suitable for tests and
// --ephemeral sessions.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return v, nil
}

func (s *MemoryStorage) Set(values map[string]string) error {
	return s.Replace(values)
}

func (s *MemoryStorage) Replace(values map[string]string, del ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range del {
		delete(s.data, k)
	}
	for k, v := range values {
		s.data[k] = v
	}
	return nil
}

func (s *MemoryStorage) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *MemoryStorage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// getOptional returns "" for a missing key.
func getOptional(s Storage, key string) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
