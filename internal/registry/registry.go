package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"corepin/internal/osproc"
	"corepin/internal/state"
)

var ErrAlreadyRunning = errors.New("entry already has a running process")

// RunningProcess tracks one live process launched from an app entry, plus its
// discovered children. Target settings are copies captured at launch time: if
// the user edits the entry afterwards, the running process keeps enforcing
// what it was launched with until relaunched.
type RunningProcess struct {
	EntryID   string
	GroupName string
	Name      string
	PID       int32
	Token     int64
	Target    state.CoreMask
	Priority  state.Priority
	Children  map[int32]int64
	StartedAt time.Time
}

func (rp *RunningProcess) clone() *RunningProcess {
	out := *rp
	out.Target = append(state.CoreMask(nil), rp.Target...)
	out.Children = make(map[int32]int64, len(rp.Children))
	for pid, token := range rp.Children {
		out.Children[pid] = token
	}
	return &out
}

// Registry is the authoritative table of live processes, keyed by app entry
// ID. At most one RunningProcess exists per entry; the launcher and the
// monitor share the same liveness predicate so a stale entry is pruned by
// whichever side looks at it first.
type Registry struct {
	mu      sync.RWMutex
	byEntry map[string]*RunningProcess
	alive   func(ctx context.Context, pid int32, token int64) bool
}

func New(tree osproc.Tree) *Registry {
	return &Registry{
		byEntry: map[string]*RunningProcess{},
		alive:   tree.Alive,
	}
}

// Register records a fresh process for an entry. A live existing process for
// the same entry wins; a dead one is replaced.
func (r *Registry) Register(ctx context.Context, rp *RunningProcess) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byEntry[rp.EntryID]; ok {
		if r.alive(ctx, existing.PID, existing.Token) {
			return ErrAlreadyRunning
		}
	}
	if rp.Children == nil {
		rp.Children = map[int32]int64{}
	}
	r.byEntry[rp.EntryID] = rp.clone()
	return nil
}

func (r *Registry) Unregister(entryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byEntry, entryID)
}

// Find returns a copy of the live process for an entry, or nil. A dead entry
// is unregistered on the spot, so a launch decision is never made against a
// process that no longer exists.
func (r *Registry) Find(ctx context.Context, entryID string) *RunningProcess {
	r.mu.RLock()
	rp, ok := r.byEntry[entryID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	if !r.alive(ctx, rp.PID, rp.Token) {
		r.mu.Lock()
		// Re-check under the write lock: a concurrent launch may have
		// registered a fresh process for this entry in the meantime.
		if current, ok := r.byEntry[entryID]; ok && current.PID == rp.PID && current.Token == rp.Token {
			delete(r.byEntry, entryID)
		}
		r.mu.Unlock()
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if current, ok := r.byEntry[entryID]; ok {
		return current.clone()
	}
	return nil
}

func (r *Registry) FindByPID(pid int32) *RunningProcess {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rp := range r.byEntry {
		if rp.PID == pid {
			return rp.clone()
		}
	}
	return nil
}

// AddChild records a newly discovered descendant. Returns false when the
// child was already known or the entry is no longer registered.
func (r *Registry) AddChild(entryID string, pid int32, token int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rp, ok := r.byEntry[entryID]
	if !ok {
		return false
	}
	if _, known := rp.Children[pid]; known {
		return false
	}
	rp.Children[pid] = token
	return true
}

// ChildrenOf returns the tracked child PIDs of the process with the given
// parent PID, or nil if no such process is registered.
func (r *Registry) ChildrenOf(pid int32) []int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rp := range r.byEntry {
		if rp.PID != pid {
			continue
		}
		pids := make([]int32, 0, len(rp.Children))
		for child := range rp.Children {
			pids = append(pids, child)
		}
		return pids
	}
	return nil
}

func (r *Registry) RemoveChild(entryID string, pid int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rp, ok := r.byEntry[entryID]; ok {
		delete(rp.Children, pid)
	}
}

// Snapshot returns copies of every registered process.
func (r *Registry) Snapshot() []*RunningProcess {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RunningProcess, 0, len(r.byEntry))
	for _, rp := range r.byEntry {
		out = append(out, rp.clone())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEntry)
}
