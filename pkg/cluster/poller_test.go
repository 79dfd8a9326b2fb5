package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealfs-project/sealfs/pkg/ring"
)

type fakeManager struct {
	status Status
	err    error
	next   *ring.HashRing
}

func (m *fakeManager) GetClusterStatus(ctx context.Context) (Status, error) {
	return m.status, m.err
}

func (m *fakeManager) GetNewHashRing(ctx context.Context) (*ring.HashRing, error) {
	return m.next, nil
}

func (m *fakeManager) UpdateServerStatus(ctx context.Context, status Status) error {
	return nil
}

type recordingReactor struct {
	syncCalls, preTransferCalls, transferringCalls, preFinishCalls, finishingCalls int
}

func (r *recordingReactor) OnSyncNewHashRing(ctx context.Context, mgr ManagerClient) error {
	r.syncCalls++
	return nil
}

func (r *recordingReactor) OnPreTransfer(ctx context.Context, mgr ManagerClient) error {
	r.preTransferCalls++
	return nil
}

func (r *recordingReactor) OnTransferring(ctx context.Context, mgr ManagerClient) error {
	r.transferringCalls++
	return nil
}

func (r *recordingReactor) OnPreFinish(ctx context.Context, mgr ManagerClient) error {
	r.preFinishCalls++
	return nil
}

func (r *recordingReactor) OnFinishing(ctx context.Context, mgr ManagerClient) error {
	r.finishingCalls++
	return nil
}

func TestPollerFiresOnlyOnEdge(t *testing.T) {
	mgr := &fakeManager{status: Idle}
	reactor := &recordingReactor{}
	p := New(mgr, reactor, nil)
	ctx := context.Background()

	p.tick(ctx)
	assert.Equal(t, Idle, p.Current())

	mgr.status = SyncNewHashRing
	p.tick(ctx)
	p.tick(ctx)
	assert.Equal(t, 1, reactor.syncCalls, "reactor should fire once per edge, not once per tick")

	mgr.status = PreTransfer
	p.tick(ctx)
	assert.Equal(t, 1, reactor.preTransferCalls)

	mgr.status = Transferring
	p.tick(ctx)
	assert.Equal(t, 1, reactor.transferringCalls)

	mgr.status = PreFinish
	p.tick(ctx)
	assert.Equal(t, 1, reactor.preFinishCalls)

	mgr.status = Finishing
	p.tick(ctx)
	assert.Equal(t, 1, reactor.finishingCalls)
}

func TestPollerIgnoresUnknownPhase(t *testing.T) {
	mgr := &fakeManager{status: Status(123)}
	p := New(mgr, &recordingReactor{}, nil)
	p.tick(context.Background())
	assert.Equal(t, Initializing, p.Current(), "unknown phase must not overwrite last-known-good status")
}

func TestPollerSurvivesTransientError(t *testing.T) {
	mgr := &fakeManager{err: assertErr{}}
	p := New(mgr, &recordingReactor{}, nil)
	require.NotPanics(t, func() { p.tick(context.Background()) })
}

type assertErr struct{}

func (assertErr) Error() string { return "manager unreachable" }
