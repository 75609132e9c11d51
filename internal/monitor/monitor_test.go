package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corepin/internal/osproc"
	"corepin/internal/registry"
	"corepin/internal/state"
)

type fakeAPI struct {
	mu           sync.Mutex
	live         map[int32]int64
	affinity     map[int32]uint64
	priority     map[int32]state.Priority
	children     map[int32][]osproc.Proc
	affinitySets int
	prioritySets int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		live:     map[int32]int64{},
		affinity: map[int32]uint64{},
		priority: map[int32]state.Priority{},
		children: map[int32][]osproc.Proc{},
	}
}

func (f *fakeAPI) spawn(pid int32, token int64, mask uint64, priority state.Priority) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[pid] = token
	f.affinity[pid] = mask
	f.priority[pid] = priority
}

func (f *fakeAPI) kill(pid int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, pid)
}

func (f *fakeAPI) setCalls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.affinitySets, f.prioritySets
}

func (f *fakeAPI) SetAffinity(ctx context.Context, pid int32, mask uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[pid]; !ok {
		return osproc.ErrProcessGone
	}
	f.affinity[pid] = mask
	f.affinitySets++
	return nil
}

func (f *fakeAPI) GetAffinity(ctx context.Context, pid int32) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[pid]; !ok {
		return 0, osproc.ErrProcessGone
	}
	return f.affinity[pid], nil
}

func (f *fakeAPI) SetPriority(ctx context.Context, pid int32, priority state.Priority) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[pid]; !ok {
		return osproc.ErrProcessGone
	}
	f.priority[pid] = priority
	f.prioritySets++
	return nil
}

func (f *fakeAPI) GetPriority(ctx context.Context, pid int32) (state.Priority, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[pid]; !ok {
		return "", osproc.ErrProcessGone
	}
	return f.priority[pid], nil
}

func (f *fakeAPI) Descendants(ctx context.Context, pid int32) ([]osproc.Proc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]osproc.Proc{}, f.children[pid]...), nil
}

func (f *fakeAPI) Alive(ctx context.Context, pid int32, token int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.live[pid]
	return ok && current == token
}

func (f *fakeAPI) Spawn(ctx context.Context, path string, args []string) (osproc.Proc, error) {
	return osproc.Proc{}, errors.New("not implemented")
}

func (f *fakeAPI) FocusMainWindow(ctx context.Context, pid int32) error {
	return nil
}

func register(t *testing.T, reg *registry.Registry, pid int32, token int64, target state.CoreMask, priority state.Priority) {
	t.Helper()
	err := reg.Register(context.Background(), &registry.RunningProcess{
		EntryID:  "e1",
		Name:     "app",
		PID:      pid,
		Token:    token,
		Target:   target,
		Priority: priority,
	})
	require.NoError(t, err)
}

func newTestMonitor(api *fakeAPI, reg *registry.Registry) *Monitor {
	return New(api, reg, nil, DefaultInterval, time.Second)
}

func TestSweepCorrectsAffinityDrift(t *testing.T) {
	api := newFakeAPI()
	reg := registry.New(api)
	m := newTestMonitor(api, reg)

	target := state.CoreMask{0, 1}
	api.spawn(100, 7, target.Bits(), state.PriorityNormal)
	register(t, reg, 100, 7, target, state.PriorityNormal)

	// In sync: nothing written.
	m.Sweep(context.Background())
	affinitySets, prioritySets := api.setCalls()
	assert.Zero(t, affinitySets)
	assert.Zero(t, prioritySets)

	// Process moved itself off its cores.
	api.mu.Lock()
	api.affinity[100] = 0b1000
	api.mu.Unlock()

	m.Sweep(context.Background())
	affinitySets, _ = api.setCalls()
	assert.Equal(t, 1, affinitySets)

	api.mu.Lock()
	assert.Equal(t, target.Bits(), api.affinity[100])
	api.mu.Unlock()
}

func TestSweepCorrectsPriorityDrift(t *testing.T) {
	api := newFakeAPI()
	reg := registry.New(api)
	m := newTestMonitor(api, reg)

	api.spawn(100, 7, state.CoreMask{0}.Bits(), state.PriorityHigh)
	register(t, reg, 100, 7, state.CoreMask{0}, state.PriorityHigh)

	api.mu.Lock()
	api.priority[100] = state.PriorityNormal
	api.mu.Unlock()

	m.Sweep(context.Background())
	_, prioritySets := api.setCalls()
	assert.Equal(t, 1, prioritySets)

	api.mu.Lock()
	assert.Equal(t, state.PriorityHigh, api.priority[100])
	api.mu.Unlock()
}

func TestSweepAdoptsChildren(t *testing.T) {
	api := newFakeAPI()
	reg := registry.New(api)
	m := newTestMonitor(api, reg)

	target := state.CoreMask{0, 1}
	api.spawn(100, 7, target.Bits(), state.PriorityNormal)
	register(t, reg, 100, 7, target, state.PriorityNormal)

	// A child appears with the wrong affinity.
	api.spawn(101, 11, 0b1000, state.PriorityNormal)
	api.mu.Lock()
	api.children[100] = []osproc.Proc{{PID: 101, Token: 11}}
	api.mu.Unlock()

	m.Sweep(context.Background())

	rp := reg.Find(context.Background(), "e1")
	require.NotNil(t, rp)
	assert.Equal(t, map[int32]int64{101: 11}, rp.Children)

	// The child was pulled onto the parent's target immediately.
	api.mu.Lock()
	assert.Equal(t, target.Bits(), api.affinity[101])
	api.mu.Unlock()
}

func TestSweepAdoptsGrandchildrenAcrossSweeps(t *testing.T) {
	api := newFakeAPI()
	reg := registry.New(api)
	m := newTestMonitor(api, reg)

	target := state.CoreMask{0}
	api.spawn(100, 7, target.Bits(), state.PriorityNormal)
	register(t, reg, 100, 7, target, state.PriorityNormal)

	api.spawn(101, 11, target.Bits(), state.PriorityNormal)
	api.mu.Lock()
	api.children[100] = []osproc.Proc{{PID: 101, Token: 11}}
	api.mu.Unlock()
	m.Sweep(context.Background())

	// The child spawned its own child; it shows up in the next snapshot.
	api.spawn(102, 13, target.Bits(), state.PriorityNormal)
	api.mu.Lock()
	api.children[100] = []osproc.Proc{{PID: 101, Token: 11}, {PID: 102, Token: 13}}
	api.mu.Unlock()
	m.Sweep(context.Background())

	rp := reg.Find(context.Background(), "e1")
	require.NotNil(t, rp)
	assert.Equal(t, map[int32]int64{101: 11, 102: 13}, rp.Children)
}

func TestSweepPrunesDeadChildren(t *testing.T) {
	api := newFakeAPI()
	reg := registry.New(api)
	m := newTestMonitor(api, reg)

	target := state.CoreMask{0}
	api.spawn(100, 7, target.Bits(), state.PriorityNormal)
	register(t, reg, 100, 7, target, state.PriorityNormal)

	api.spawn(101, 11, target.Bits(), state.PriorityNormal)
	api.mu.Lock()
	api.children[100] = []osproc.Proc{{PID: 101, Token: 11}}
	api.mu.Unlock()
	m.Sweep(context.Background())

	api.kill(101)
	api.mu.Lock()
	api.children[100] = nil
	api.mu.Unlock()
	m.Sweep(context.Background())

	rp := reg.Find(context.Background(), "e1")
	require.NotNil(t, rp)
	assert.Empty(t, rp.Children)
}

func TestSweepUnregistersExitedProcess(t *testing.T) {
	api := newFakeAPI()
	reg := registry.New(api)
	m := newTestMonitor(api, reg)

	api.spawn(100, 7, 1, state.PriorityNormal)
	register(t, reg, 100, 7, state.CoreMask{0}, state.PriorityNormal)

	api.kill(100)
	m.Sweep(context.Background())
	assert.Equal(t, 0, reg.Len())
}

func TestDisabledSweepWritesNothing(t *testing.T) {
	api := newFakeAPI()
	reg := registry.New(api)
	m := newTestMonitor(api, reg)

	api.spawn(100, 7, 0b1000, state.PriorityNormal)
	register(t, reg, 100, 7, state.CoreMask{0, 1}, state.PriorityHigh)

	m.SetEnabled(false)
	assert.False(t, m.Enabled())
	m.Sweep(context.Background())

	affinitySets, prioritySets := api.setCalls()
	assert.Zero(t, affinitySets)
	assert.Zero(t, prioritySets)

	// Re-enabling resumes enforcement; no undo happened in between.
	m.SetEnabled(true)
	m.Sweep(context.Background())
	affinitySets, prioritySets = api.setCalls()
	assert.Equal(t, 1, affinitySets)
	assert.Equal(t, 1, prioritySets)
}

func TestStartStop(t *testing.T) {
	api := newFakeAPI()
	reg := registry.New(api)
	m := New(api, reg, nil, 10*time.Millisecond, time.Second)

	api.spawn(100, 7, 0b1000, state.PriorityNormal)
	register(t, reg, 100, 7, state.CoreMask{0, 1}, state.PriorityNormal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	assert.Eventually(t, func() bool {
		affinitySets, _ := api.setCalls()
		return affinitySets >= 1
	}, time.Second, 5*time.Millisecond)

	m.Stop()
}
