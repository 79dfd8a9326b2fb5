// Package kv provides the ordered, enumerable key-value interface used
// by pkg/metaengine for its three logical tables (blob name to path,
// directory entries, file attributes), plus two implementations: an
// in-memory one for tests and single-process development, and a
// goleveldb-backed one for a real server.
package kv

import "errors"

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// KeyValue is a sorted, enumerable key-value store supporting batch
// mutations. Keys and values are raw bytes: pkg/metaengine imposes its
// own encodings (path strings, fixed-layout FileAttr records) on top.
type KeyValue interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error

	BeginBatch() BatchMutation
	CommitBatch(b BatchMutation) error

	// Find returns an iterator over [start, end). An empty end means
	// "no upper bound"; an empty start means "no lower bound".
	Find(start, end []byte) Iterator

	Close() error
}

// Iterator iterates key/value pairs in key order. It must be closed
// after use. It is not goroutine-safe, but distinct iterators over the
// same KeyValue may be used concurrently from separate goroutines.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Close() error
}

// BatchMutation accumulates a set of Set/Delete operations to be applied
// atomically by CommitBatch.
type BatchMutation interface {
	Set(key, value []byte)
	Delete(key []byte)
}
