// Package bolt provides a bbolt-backed storage medium for the
// conversation store: a single-file embedded key-value space suited to
// desktop deployments.
package bolt

import (
	"context"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/thatjuancodes/chathistory"
)

var bucketName = []byte("chathistory")

// KV is a bbolt-backed storage medium.
type KV struct {
	db *bbolt.DB
}

var _ chathistory.KV = (*KV)(nil)

// Open opens (or creates) the database file at path.
func Open(path string) (*KV, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &KV{db: db}, nil
}

// Close closes the underlying database.
func (s *KV) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

// Set stores value under key.
func (s *KV) Set(ctx context.Context, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
}

// Delete removes key.
func (s *KV) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

// Keys returns every stored key.
func (s *KV) Keys(ctx context.Context) ([]string, error) {
	var keys []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
