package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corepin/internal/osproc"
	"corepin/internal/state"
)

type fakeTree struct {
	mu   sync.Mutex
	live map[int32]int64
}

func newFakeTree() *fakeTree {
	return &fakeTree{live: map[int32]int64{}}
}

func (f *fakeTree) Descendants(ctx context.Context, pid int32) ([]osproc.Proc, error) {
	return nil, nil
}

func (f *fakeTree) Alive(ctx context.Context, pid int32, token int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.live[pid]
	return ok && current == token
}

func (f *fakeTree) spawn(pid int32, token int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[pid] = token
}

func (f *fakeTree) kill(pid int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, pid)
}

func running(entryID string, pid int32, token int64) *RunningProcess {
	return &RunningProcess{
		EntryID:  entryID,
		Name:     entryID,
		PID:      pid,
		Token:    token,
		Target:   state.CoreMask{0, 1},
		Priority: state.PriorityNormal,
	}
}

func TestRegisterAndFind(t *testing.T) {
	tree := newFakeTree()
	reg := New(tree)
	ctx := context.Background()

	tree.spawn(100, 7)
	require.NoError(t, reg.Register(ctx, running("e1", 100, 7)))

	rp := reg.Find(ctx, "e1")
	require.NotNil(t, rp)
	assert.Equal(t, int32(100), rp.PID)
	assert.Equal(t, 1, reg.Len())

	assert.Nil(t, reg.Find(ctx, "unknown"))
}

func TestRegisterLiveEntryWins(t *testing.T) {
	tree := newFakeTree()
	reg := New(tree)
	ctx := context.Background()

	tree.spawn(100, 7)
	require.NoError(t, reg.Register(ctx, running("e1", 100, 7)))

	tree.spawn(200, 8)
	err := reg.Register(ctx, running("e1", 200, 8))
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	rp := reg.Find(ctx, "e1")
	require.NotNil(t, rp)
	assert.Equal(t, int32(100), rp.PID)
}

func TestRegisterReplacesDeadEntry(t *testing.T) {
	tree := newFakeTree()
	reg := New(tree)
	ctx := context.Background()

	tree.spawn(100, 7)
	require.NoError(t, reg.Register(ctx, running("e1", 100, 7)))
	tree.kill(100)

	tree.spawn(200, 8)
	require.NoError(t, reg.Register(ctx, running("e1", 200, 8)))

	rp := reg.Find(ctx, "e1")
	require.NotNil(t, rp)
	assert.Equal(t, int32(200), rp.PID)
}

func TestFindPrunesDeadEntry(t *testing.T) {
	tree := newFakeTree()
	reg := New(tree)
	ctx := context.Background()

	tree.spawn(100, 7)
	require.NoError(t, reg.Register(ctx, running("e1", 100, 7)))

	tree.kill(100)
	assert.Nil(t, reg.Find(ctx, "e1"))
	assert.Equal(t, 0, reg.Len())
}

func TestFindRejectsRecycledPID(t *testing.T) {
	tree := newFakeTree()
	reg := New(tree)
	ctx := context.Background()

	tree.spawn(100, 7)
	require.NoError(t, reg.Register(ctx, running("e1", 100, 7)))

	// Same PID, different creation token: not the process we registered.
	tree.kill(100)
	tree.spawn(100, 99)
	assert.Nil(t, reg.Find(ctx, "e1"))
}

func TestFindByPID(t *testing.T) {
	tree := newFakeTree()
	reg := New(tree)
	ctx := context.Background()

	tree.spawn(100, 7)
	require.NoError(t, reg.Register(ctx, running("e1", 100, 7)))

	rp := reg.FindByPID(100)
	require.NotNil(t, rp)
	assert.Equal(t, "e1", rp.EntryID)
	assert.Nil(t, reg.FindByPID(200))
}

func TestChildren(t *testing.T) {
	tree := newFakeTree()
	reg := New(tree)
	ctx := context.Background()

	tree.spawn(100, 7)
	require.NoError(t, reg.Register(ctx, running("e1", 100, 7)))

	assert.True(t, reg.AddChild("e1", 101, 11))
	assert.False(t, reg.AddChild("e1", 101, 11), "already known")
	assert.False(t, reg.AddChild("missing", 102, 12))

	rp := reg.Find(ctx, "e1")
	require.NotNil(t, rp)
	assert.Equal(t, map[int32]int64{101: 11}, rp.Children)

	assert.Equal(t, []int32{101}, reg.ChildrenOf(100))
	assert.Nil(t, reg.ChildrenOf(999))

	reg.RemoveChild("e1", 101)
	rp = reg.Find(ctx, "e1")
	require.NotNil(t, rp)
	assert.Empty(t, rp.Children)
	assert.Empty(t, reg.ChildrenOf(100))
}

func TestSnapshotReturnsCopies(t *testing.T) {
	tree := newFakeTree()
	reg := New(tree)
	ctx := context.Background()

	tree.spawn(100, 7)
	require.NoError(t, reg.Register(ctx, running("e1", 100, 7)))

	snap := reg.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Children[999] = 1
	snap[0].Target[0] = 42

	rp := reg.Find(ctx, "e1")
	require.NotNil(t, rp)
	assert.Empty(t, rp.Children)
	assert.Equal(t, state.CoreMask{0, 1}, rp.Target)
}

func TestConcurrentFindAndRegister(t *testing.T) {
	tree := newFakeTree()
	reg := New(tree)
	ctx := context.Background()

	tree.spawn(100, 7)
	require.NoError(t, reg.Register(ctx, running("e1", 100, 7)))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Find(ctx, "e1")
				reg.Snapshot()
				reg.AddChild("e1", 101, 11)
				reg.RemoveChild("e1", 101)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, reg.Len())
}
