package metaengine

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/sealfs-project/sealfs/pkg/kv"
	"github.com/sealfs-project/sealfs/pkg/proto"
)

// volumeRecordPrefix marks a volume metadata record in the attr table.
// Every real path is an absolute path starting with "/", so this prefix
// can never collide with one.
const volumeRecordPrefix = "\x00vol\x00"

func volumeRecordKey(name string) []byte { return []byte(volumeRecordPrefix + name) }

func isVolumeRecordKey(key string) bool {
	return len(key) >= len(volumeRecordPrefix) && key[:len(volumeRecordPrefix)] == volumeRecordPrefix
}

// Volume is the {name, size_limit, used_size} record from spec.md §3.
type Volume struct {
	Name      string
	SizeLimit uint64
	UsedSize  uint64
}

func (v Volume) marshal() []byte {
	b := make([]byte, 16+len(v.Name))
	binary.LittleEndian.PutUint64(b[0:8], v.SizeLimit)
	binary.LittleEndian.PutUint64(b[8:16], v.UsedSize)
	copy(b[16:], v.Name)
	return b
}

func unmarshalVolume(b []byte) (Volume, error) {
	if len(b) < 16 {
		return Volume{}, errors.New("metaengine: short volume record")
	}
	return Volume{
		SizeLimit: binary.LittleEndian.Uint64(b[0:8]),
		UsedSize:  binary.LittleEndian.Uint64(b[8:16]),
		Name:      string(b[16:]),
	}, nil
}

// volumeTable is the in-memory mirror of every volume record, backed by
// the same KV store as file attributes (under a key prefix that cannot
// collide with a path).
type volumeTable struct {
	mu   sync.RWMutex
	byKV kv.KeyValue
	vols map[string]Volume
}

func newVolumeTable(attrKV kv.KeyValue) *volumeTable {
	return &volumeTable{byKV: attrKV, vols: make(map[string]Volume)}
}

func (t *volumeTable) load() error {
	it := t.byKV.Find([]byte(volumeRecordPrefix), prefixUpperBound([]byte(volumeRecordPrefix)))
	for it.Next() {
		v, err := unmarshalVolume(it.Value())
		if err != nil {
			it.Close()
			return err
		}
		t.vols[v.Name] = v
	}
	return it.Close()
}

func (t *volumeTable) create(name string, sizeLimit uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.vols[name]; exists {
		return proto.EEXIST.Err()
	}
	v := Volume{Name: name, SizeLimit: sizeLimit}
	if err := t.byKV.Set(volumeRecordKey(name), v.marshal()); err != nil {
		return err
	}
	t.vols[name] = v
	return nil
}

func (t *volumeTable) delete(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.vols[name]; !exists {
		return proto.ENOENT.Err()
	}
	if err := t.byKV.Delete(volumeRecordKey(name)); err != nil {
		return err
	}
	delete(t.vols, name)
	return nil
}

func (t *volumeTable) get(name string) (Volume, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.vols[name]
	return v, ok
}

func (t *volumeTable) list() []Volume {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Volume, 0, len(t.vols))
	for _, v := range t.vols {
		out = append(out, v)
	}
	return out
}

// adjustUsed adds delta (which may be negative) to name's used_size and
// persists the updated record.
func (t *volumeTable) adjustUsed(name string, delta int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.vols[name]
	if !ok {
		return nil // not every path need belong to a tracked volume
	}
	if delta < 0 && uint64(-delta) > v.UsedSize {
		v.UsedSize = 0
	} else {
		v.UsedSize = uint64(int64(v.UsedSize) + delta)
	}
	t.vols[name] = v
	return t.byKV.Set(volumeRecordKey(name), v.marshal())
}
