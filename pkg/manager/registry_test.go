package manager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sealfs-project/sealfs/pkg/cluster"
)

func TestRegistryAddAndContains(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Contains("a:1"))
	r.Add("a:1", 1)
	assert.True(t, r.Contains("a:1"))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Add("a:1", 1)
	r.Remove("a:1")
	assert.False(t, r.Contains("a:1"))
}

func TestRegistryAckUnknownFails(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Ack("ghost:1", cluster.Idle))
}

func TestRegistryAllAckedRequiresEveryLiveNode(t *testing.T) {
	r := NewRegistry()
	r.Add("a:1", 1)
	r.Add("b:1", 1)
	now := time.Now()
	assert.False(t, r.AllAcked(cluster.Idle, now))

	r.Ack("a:1", cluster.Idle)
	assert.False(t, r.AllAcked(cluster.Idle, now))

	r.Ack("b:1", cluster.Idle)
	assert.True(t, r.AllAcked(cluster.Idle, now))
}

func TestRegistryAllAckedIgnoresDeadNodes(t *testing.T) {
	r := NewRegistry()
	r.Add("a:1", 1)
	r.Add("b:1", 1)
	r.Ack("a:1", cluster.Idle)

	// b never acks, but is far past HeartbeatInterval: it must not block
	// the transition.
	future := time.Now().Add(HeartbeatInterval * 10)
	assert.True(t, r.AllAcked(cluster.Idle, future))
}

func TestRegistryAllAckedEmptyRegistryNeverSatisfied(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.AllAcked(cluster.Idle, time.Now()))
}

func TestRegistryResetAcksClearsState(t *testing.T) {
	r := NewRegistry()
	r.Add("a:1", 1)
	r.Ack("a:1", cluster.Idle)
	r.ResetAcks()
	assert.False(t, r.AllAcked(cluster.Idle, time.Now()))
}

func TestRegistryLiveAndDead(t *testing.T) {
	r := NewRegistry()
	r.Add("a:1", 3)
	now := time.Now()
	live := r.Live(now)
	if assert.Len(t, live, 1) {
		assert.Equal(t, "a:1", live[0].Address)
		assert.Equal(t, 3, live[0].Weight)
	}
	assert.Empty(t, r.Dead(now))

	future := now.Add(HeartbeatInterval * 10)
	assert.Empty(t, r.Live(future))
	assert.Equal(t, []string{"a:1"}, r.Dead(future))
}

func TestRegistryTouchUpdatesLastSeen(t *testing.T) {
	r := NewRegistry()
	r.Add("a:1", 1)
	r.Touch("a:1")
	assert.NotEmpty(t, r.Live(time.Now()))
}
