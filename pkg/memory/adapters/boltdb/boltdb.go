// Package boltdb implements the memory.Store interface using a BoltDB
// database. Records are stored as JSON in per-namespace buckets; semantic
// ranking happens in the caller.
package boltdb

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/memvault/memvault/pkg/errors"
	"github.com/memvault/memvault/pkg/log"
	"github.com/memvault/memvault/pkg/memory"
)

var (
	namespacesBucket = []byte("namespaces")
	indexBucket      = []byte("id_index")
)

// BoltStore implements the memory.Store interface using a BoltDB database.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltStore over an open database and ensures the
// top-level buckets exist.
func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	store := &BoltStore{db: db}

	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(namespacesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	log.Debug("Initialized BoltDB memory store", "db_path", db.Path())
	return store, nil
}

// namespaceBucket gets or creates the bucket for one namespace.
func namespaceBucket(tx *bolt.Tx, namespace string) (*bolt.Bucket, error) {
	namespaces := tx.Bucket(namespacesBucket)
	if namespaces == nil {
		return nil, stderrors.New("namespaces bucket missing")
	}
	bucket, err := namespaces.CreateBucketIfNotExists([]byte(namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to create namespace bucket %q: %w", namespace, err)
	}
	return bucket, nil
}

func (b *BoltStore) Insert(ctx context.Context, record memory.Record) error {
	if record.ID == "" {
		return stderrors.New("record ID cannot be empty")
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := namespaceBucket(tx, record.Namespace)
		if err != nil {
			return err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		if err := bucket.Put([]byte(record.ID), data); err != nil {
			return err
		}
		// ID index maps record ID to its namespace for direct lookups.
		return tx.Bucket(indexBucket).Put([]byte(record.ID), []byte(record.Namespace))
	})
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

func (b *BoltStore) Get(ctx context.Context, id string) (memory.Record, error) {
	var record memory.Record
	err := b.db.View(func(tx *bolt.Tx) error {
		ns := tx.Bucket(indexBucket).Get([]byte(id))
		if ns == nil {
			return errors.ErrNotFound
		}
		bucket := tx.Bucket(namespacesBucket).Bucket(ns)
		if bucket == nil {
			return errors.ErrNotFound
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return errors.ErrNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return memory.Record{}, err
	}
	return record, nil
}

func (b *BoltStore) Delete(ctx context.Context, id string) (bool, error) {
	existed := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(indexBucket)
		ns := index.Get([]byte(id))
		if ns == nil {
			return nil
		}
		bucket := tx.Bucket(namespacesBucket).Bucket(ns)
		if bucket != nil && bucket.Get([]byte(id)) != nil {
			if err := bucket.Delete([]byte(id)); err != nil {
				return err
			}
			existed = true
		}
		return index.Delete([]byte(id))
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	return existed, nil
}

func (b *BoltStore) UpdateLabels(ctx context.Context, id string, labels []string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		ns := tx.Bucket(indexBucket).Get([]byte(id))
		if ns == nil {
			return errors.ErrNotFound
		}
		bucket := tx.Bucket(namespacesBucket).Bucket(ns)
		if bucket == nil {
			return errors.ErrNotFound
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return errors.ErrNotFound
		}

		var record memory.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		record.Labels = labels

		updated, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	return err
}

func (b *BoltStore) Scan(ctx context.Context, query memory.ScanQuery) ([]memory.Record, error) {
	var results []memory.Record

	err := b.db.View(func(tx *bolt.Tx) error {
		namespaces := tx.Bucket(namespacesBucket)

		collect := func(bucket *bolt.Bucket) error {
			return bucket.ForEach(func(k, v []byte) error {
				var record memory.Record
				if err := json.Unmarshal(v, &record); err != nil {
					return fmt.Errorf("failed to unmarshal record %s: %w", k, err)
				}
				if matchesQuery(record, query) {
					results = append(results, record)
				}
				return nil
			})
		}

		if query.Namespace != "" {
			bucket := namespaces.Bucket([]byte(query.Namespace))
			if bucket == nil {
				return nil
			}
			return collect(bucket)
		}
		return namespaces.ForEachBucket(func(k []byte) error {
			return collect(namespaces.Bucket(k))
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})

	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

func matchesQuery(record memory.Record, query memory.ScanQuery) bool {
	if !query.Since.IsZero() && record.CreatedAt.Before(query.Since) {
		return false
	}
	if len(query.LabelSubstrings) > 0 && !anySubstring(record.Labels, query.LabelSubstrings) {
		return false
	}
	if len(query.SourceSubstrings) > 0 && !anySubstring([]string{record.Source}, query.SourceSubstrings) {
		return false
	}
	return true
}

func anySubstring(values, fragments []string) bool {
	for _, v := range values {
		lower := strings.ToLower(v)
		for _, frag := range fragments {
			if strings.Contains(lower, frag) {
				return true
			}
		}
	}
	return false
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}
