package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetDelete(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	_, err := db.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Set([]byte("a"), []byte("1")))
	v, err := db.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, db.Delete([]byte("a")))
	_, err = db.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBatch(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	b := db.BeginBatch()
	b.Set([]byte("x"), []byte("1"))
	b.Set([]byte("y"), []byte("2"))
	require.NoError(t, db.CommitBatch(b))

	v, err := db.Get([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestMemoryFindRange(t *testing.T) {
	db := NewMemory()
	defer db.Close()

	for _, k := range []string{"a/1", "a/2", "a/3", "b/1"} {
		require.NoError(t, db.Set([]byte(k), []byte("v")))
	}

	it := db.Find([]byte("a/"), []byte("a0"))
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	require.NoError(t, it.Close())
	assert.Equal(t, []string{"a/1", "a/2", "a/3"}, got)
}

func TestBatchFromWrongStoreRejected(t *testing.T) {
	db1 := NewMemory()
	db2 := NewMemory()
	defer db1.Close()
	defer db2.Close()

	b := db1.BeginBatch()
	err := db2.CommitBatch(b)
	assert.Error(t, err)
}
