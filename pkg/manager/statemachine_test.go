package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealfs-project/sealfs/pkg/cluster"
)

// bootstrap brings a fresh Manager to Idle with the given server
// addresses registered, the way a statically-configured initial server
// list joins by acking Idle once each has loaded its local engine.
func bootstrap(t *testing.T, addrs ...string) *Manager {
	t.Helper()
	m := New()
	deltas := make([]NodeDelta, len(addrs))
	for i, a := range addrs {
		deltas[i] = NodeDelta{Address: a, Weight: 1}
	}
	m.Bootstrap(deltas)
	for _, a := range addrs {
		require.NoError(t, m.Ack(a, cluster.Idle))
	}
	require.Equal(t, cluster.Idle, m.Status())
	return m
}

func TestManagerBootstrapReachesIdleOnceEveryNodeAcks(t *testing.T) {
	m := New()
	assert.Equal(t, cluster.Initializing, m.Status())

	m.Bootstrap([]NodeDelta{{Address: "a:1", Weight: 1}, {Address: "b:1", Weight: 1}})
	assert.Equal(t, cluster.NodesStarting, m.Status())

	require.NoError(t, m.Ack("a:1", cluster.Idle))
	assert.Equal(t, cluster.NodesStarting, m.Status(), "one ack of two must not complete bootstrap")

	require.NoError(t, m.Ack("b:1", cluster.Idle))
	assert.Equal(t, cluster.Idle, m.Status())
	assert.ElementsMatch(t, []string{"a:1", "b:1"}, m.HashRing().Addresses(),
		"boot must leave a routable primary ring, not the nil next Bootstrap never set")
}

func TestManagerRequestRebalanceRequiresIdle(t *testing.T) {
	m := bootstrap(t, "a:1")
	require.NoError(t, m.RequestRebalance([]NodeDelta{{Address: "b:1", Weight: 1}}, nil))
	assert.Equal(t, cluster.SyncNewHashRing, m.Status())

	err := m.RequestRebalance([]NodeDelta{{Address: "c:1", Weight: 1}}, nil)
	assert.ErrorIs(t, err, ErrRebalanceInProgress)
}

func TestManagerFullRebalanceCycleReturnsToIdle(t *testing.T) {
	m := bootstrap(t, "a:1", "b:1")
	require.NoError(t, m.RequestRebalance([]NodeDelta{{Address: "c:1", Weight: 1}}, nil))
	require.Equal(t, cluster.SyncNewHashRing, m.Status())
	require.NotNil(t, m.NewHashRing())

	cycle := []cluster.Status{
		cluster.PreTransfer, cluster.Transferring, cluster.PreFinish,
		cluster.Finishing, cluster.Idle,
	}
	for _, target := range cycle {
		for _, addr := range []string{"a:1", "b:1", "c:1"} {
			require.NoError(t, m.Ack(addr, target))
		}
		assert.Equal(t, target, m.Status())
	}
	assert.Nil(t, m.NewHashRing())
	assert.NotNil(t, m.HashRing())
	assert.Equal(t, []string{"a:1", "b:1", "c:1"}, m.HashRing().Addresses())
}

func TestManagerAckDoesNotAdvanceUntilEveryLiveNodeAcks(t *testing.T) {
	m := bootstrap(t, "a:1", "b:1")
	require.NoError(t, m.RequestRebalance([]NodeDelta{{Address: "c:1", Weight: 1}}, nil))

	require.NoError(t, m.Ack("a:1", cluster.PreTransfer))
	assert.Equal(t, cluster.SyncNewHashRing, m.Status(), "must wait for b and c too")

	require.NoError(t, m.Ack("b:1", cluster.PreTransfer))
	require.NoError(t, m.Ack("c:1", cluster.PreTransfer))
	assert.Equal(t, cluster.PreTransfer, m.Status())
}

func TestManagerAckRejectsUnknownServerOutsideBootstrap(t *testing.T) {
	m := bootstrap(t, "a:1")
	err := m.Ack("ghost:1", cluster.SyncNewHashRing)
	assert.Error(t, err)
}

func TestManagerAckRejectsInvalidStatus(t *testing.T) {
	m := bootstrap(t, "a:1")
	err := m.Ack("a:1", cluster.Status(99))
	assert.Error(t, err)
}
