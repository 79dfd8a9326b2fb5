package kv

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// NewDisk returns a KeyValue backed by a single goleveldb database file
// on disk at path, creating it if necessary.
func NewDisk(path string) (KeyValue, error) {
	opts := &opt.Options{Filter: filter.NewBloomFilter(10)}
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "kv: open %s", path)
	}
	return &levelKV{db: db, writeOpts: &opt.WriteOptions{Sync: false}}, nil
}

// NewMemory returns a KeyValue backed by an in-memory goleveldb database,
// for tests and single-process development where durability does not
// matter.
func NewMemory() KeyValue {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		// storage.NewMemStorage never fails to open; this would only
		// trip if goleveldb itself rejected a nil *opt.Options.
		panic(fmt.Sprintf("kv: open memory storage: %v", err))
	}
	return &levelKV{db: db, writeOpts: &opt.WriteOptions{Sync: false}}
}

type levelKV struct {
	db        *leveldb.DB
	writeOpts *opt.WriteOptions
}

func (k *levelKV) Get(key []byte) ([]byte, error) {
	val, err := k.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return val, err
}

func (k *levelKV) Set(key, value []byte) error {
	return k.db.Put(key, value, k.writeOpts)
}

func (k *levelKV) Delete(key []byte) error {
	return k.db.Delete(key, k.writeOpts)
}

func (k *levelKV) Find(start, end []byte) Iterator {
	rng := &util.Range{Start: start, Limit: end}
	return &levelIter{it: k.db.NewIterator(rng, nil)}
}

func (k *levelKV) Close() error {
	return k.db.Close()
}

func (k *levelKV) BeginBatch() BatchMutation {
	return &levelBatch{owner: k, batch: new(leveldb.Batch)}
}

func (k *levelKV) CommitBatch(bm BatchMutation) error {
	b, ok := bm.(*levelBatch)
	if !ok || b.owner != k {
		return errors.New("kv: CommitBatch called with a batch from a different KeyValue")
	}
	return k.db.Write(b.batch, k.writeOpts)
}

type levelBatch struct {
	mu    sync.Mutex
	owner *levelKV
	batch *leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batch.Put(key, value)
}

func (b *levelBatch) Delete(key []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batch.Delete(key)
}

type levelIter struct {
	it iterator.Iterator
}

func (it *levelIter) Next() bool       { return it.it.Next() }
func (it *levelIter) Key() []byte      { return it.it.Key() }
func (it *levelIter) Value() []byte    { return it.it.Value() }
func (it *levelIter) Close() error     { it.it.Release(); return it.it.Error() }
