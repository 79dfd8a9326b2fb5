package rpcconn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealfs-project/sealfs/pkg/proto"
)

func TestCallbackPoolRegisterDeliverWait(t *testing.T) {
	p := NewCallbackPool()
	ctx := context.Background()

	id, uid, err := p.Register(ctx)
	require.NoError(t, err)

	go func() {
		ok := p.Deliver(id, uid, callbackResult{status: proto.Success, meta: []byte("m"), data: []byte("d")})
		assert.True(t, ok)
	}()

	res, err := p.Wait(ctx, id, uid, time.Second)
	require.NoError(t, err)
	assert.Equal(t, proto.Success, res.status)
	assert.Equal(t, []byte("m"), res.meta)
	assert.Equal(t, []byte("d"), res.data)
}

func TestCallbackPoolTimeout(t *testing.T) {
	p := NewCallbackPool()
	ctx := context.Background()

	id, uid, err := p.Register(ctx)
	require.NoError(t, err)

	_, err = p.Wait(ctx, id, uid, 10*time.Millisecond)
	assert.Equal(t, proto.ETIMEDOUT, proto.FromError(err))

	// A late delivery against the now-reclaimed slot must not panic or
	// deliver to the wrong caller.
	ok := p.Deliver(id, uid, callbackResult{status: proto.Success})
	assert.False(t, ok)
}

func TestCallbackPoolDeliverStaleUIDRejected(t *testing.T) {
	p := NewCallbackPool()
	ctx := context.Background()

	id, uid, err := p.Register(ctx)
	require.NoError(t, err)
	_, err = p.Wait(ctx, id, uid, 10*time.Millisecond)
	require.Error(t, err)

	// Same slot, new lease: an old uid must never be delivered into it.
	// The free list is FIFO, so the slot comes back only after every
	// other slot has been leased once; those leases are simply held.
	var id2, uid2 uint32
	for i := 0; i < PoolSize; i++ {
		id2, uid2, err = p.Register(ctx)
		require.NoError(t, err)
		if id2 == id {
			break
		}
	}
	require.Equal(t, id, id2)

	ok := p.Deliver(id, uid, callbackResult{})
	assert.False(t, ok)

	ok = p.Deliver(id2, uid2, callbackResult{status: proto.Success})
	assert.True(t, ok)
}

func TestCallbackPoolAbortReturnsSlot(t *testing.T) {
	p := NewCallbackPool()
	ctx := context.Background()

	id, uid, err := p.Register(ctx)
	require.NoError(t, err)
	p.Abort(id, uid)

	// The free list is FIFO: the aborted id goes in behind every slot
	// that was never leased.
	for i := 0; i < PoolSize-1; i++ {
		<-p.freeIDs
	}
	select {
	case freed := <-p.freeIDs:
		assert.Equal(t, id, freed)
	case <-time.After(time.Second):
		t.Fatal("aborted slot was never returned to the free pool")
	}
}

func TestCallbackPoolFailAll(t *testing.T) {
	p := NewCallbackPool()
	ctx := context.Background()

	id, uid, err := p.Register(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Wait(ctx, id, uid, time.Second)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.FailAll(assert.AnError)

	select {
	case err := <-done:
		assert.Equal(t, assert.AnError, err)
	case <-time.After(time.Second):
		t.Fatal("FailAll did not unblock a waiting call")
	}
}

func TestCallbackPoolPending(t *testing.T) {
	p := NewCallbackPool()
	ctx := context.Background()

	id, uid, err := p.Register(ctx)
	require.NoError(t, err)
	assert.True(t, p.Pending(id, uid))
	assert.False(t, p.Pending(id, uid+1))
	assert.False(t, p.Pending(PoolSize, uid))
}
