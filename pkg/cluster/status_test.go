package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{Idle, SyncNewHashRing, true},
		{SyncNewHashRing, PreTransfer, true},
		{PreTransfer, Transferring, true},
		{Transferring, PreFinish, true},
		{PreFinish, Finishing, true},
		{Finishing, Idle, true},
		{Idle, PreFinish, false},
		{Idle, Idle, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, Idle.Valid())
	assert.True(t, Finishing.Valid())
	assert.False(t, Status(99).Valid())
	assert.False(t, Status(-1).Valid())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "Status(unknown)", Status(42).String())
}
