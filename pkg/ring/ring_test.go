package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupReturnsRingMember(t *testing.T) {
	r := New([]ServerNode{
		{Address: "10.0.0.1:5001", Weight: 4},
		{Address: "10.0.0.2:5001", Weight: 4},
		{Address: "10.0.0.3:5001", Weight: 4},
	})
	require.False(t, r.Empty())

	for i := 0; i < 1000; i++ {
		path := "/vol/" + string(rune('a'+i%26)) + "/file"
		node, ok := r.Lookup(path)
		require.True(t, ok)
		assert.Contains(t, r.Addresses(), node.Address)
	}
}

func TestLookupDeterministic(t *testing.T) {
	r := New([]ServerNode{
		{Address: "a", Weight: 2},
		{Address: "b", Weight: 2},
	})
	n1, _ := r.Lookup("/same/path")
	n2, _ := r.Lookup("/same/path")
	assert.Equal(t, n1.Address, n2.Address)
}

func TestWeightControlsVirtualNodeCount(t *testing.T) {
	r := New([]ServerNode{{Address: "solo", Weight: 0}})
	assert.Len(t, r.points, 1)

	r = New([]ServerNode{{Address: "heavy", Weight: 8}})
	assert.Len(t, r.points, 8)
}

func TestEmptyRingLookupFails(t *testing.T) {
	var r *HashRing
	_, ok := r.Lookup("/x")
	assert.False(t, ok)
}

func TestRingsViewPromoteNext(t *testing.T) {
	primary := New([]ServerNode{{Address: "a", Weight: 1}})
	next := New([]ServerNode{{Address: "a", Weight: 1}, {Address: "b", Weight: 1}})

	v := NewRingsView(primary, 0)
	v.SetNext(next)

	snap := v.Load()
	assert.Same(t, primary, snap.Primary)
	assert.Same(t, next, snap.Next)

	v.PromoteNext()
	snap = v.Load()
	assert.Same(t, next, snap.Primary)
	assert.Nil(t, snap.Next)
}

func TestRingsViewClearNext(t *testing.T) {
	v := NewRingsView(New(nil), 0)
	v.SetNext(New([]ServerNode{{Address: "a"}}))
	v.ClearNext()
	assert.Nil(t, v.Load().Next)
}
