package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"corepin/internal/logging"
	"corepin/internal/osproc"
	"corepin/internal/registry"
	"corepin/internal/state"
	"corepin/internal/topology"
)

var (
	ErrExecutableNotFound = errors.New("executable not found")
	ErrSpawnFailed        = errors.New("spawn failed")
	ErrAffinityApply      = errors.New("affinity could not be applied")
	ErrPriorityApply      = errors.New("priority could not be applied")
)

type Outcome int

const (
	// OutcomeSpawned means a new process was started.
	OutcomeSpawned Outcome = iota
	// OutcomeFocused means the entry was already running and its window was
	// brought forward instead. Both outcomes are success; callers distinguish
	// them for user feedback only.
	OutcomeFocused
)

func (o Outcome) String() string {
	if o == OutcomeFocused {
		return "focused"
	}
	return "spawned"
}

// Launcher starts processes with their target affinity and priority applied,
// and registers them for enforcement.
type Launcher struct {
	api osproc.API
	reg *registry.Registry
	log *logging.Logger

	// cores reports the live logical core count; overridable in tests.
	cores func() int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(api osproc.API, reg *registry.Registry, log *logging.Logger) *Launcher {
	return &Launcher{
		api:   api,
		reg:   reg,
		log:   log,
		cores: topology.LogicalCount,
		locks: map[string]*sync.Mutex{},
	}
}

// Launch starts the entry bound to the group's core mask, or focuses the
// already-running instance. Affinity and priority failures after a successful
// spawn are reported but never unwind the spawn: killing a process the user
// asked for over a secondary failure would be worse than leaving it
// unmanaged.
func (l *Launcher) Launch(ctx context.Context, groupName string, entry state.AppEntry, mask state.CoreMask) (Outcome, error) {
	// Launches for the same entry are serialized, so the registry can never
	// see two processes for one entry even under concurrent attempts.
	lock := l.entryLock(entry.ID)
	lock.Lock()
	defer lock.Unlock()

	if existing := l.reg.Find(ctx, entry.ID); existing != nil {
		if err := l.api.FocusMainWindow(ctx, existing.PID); err != nil {
			l.log.Printf("focus %s (pid %d): %v", entry.Name, existing.PID, err)
		}
		return OutcomeFocused, nil
	}

	path, baked, err := osproc.ResolveTarget(entry.Path)
	if err != nil {
		return OutcomeSpawned, fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, entry.Path, err)
	}
	if _, err := os.Stat(path); err != nil {
		return OutcomeSpawned, fmt.Errorf("%w: %s", ErrExecutableNotFound, path)
	}
	args := append(append([]string{}, baked...), entry.Args...)

	effective := mask.Clamp(l.cores())
	if len(effective) == 0 {
		return OutcomeSpawned, fmt.Errorf("%w: no core in %s exists on this machine", state.ErrEmptyMask, mask)
	}
	if len(effective) < len(mask) {
		l.log.Printf("mask %s trimmed to %s: %d cores on this machine", mask, effective, l.cores())
	}

	proc, err := l.api.Spawn(ctx, path, args)
	if err != nil {
		return OutcomeSpawned, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, path, err)
	}
	l.log.Printf("started %s (pid %d) on cores %s priority %s", entry.Name, proc.PID, effective, entry.Priority)

	// Register before applying settings: even if the first apply fails, the
	// monitor keeps trying to converge the process to its target.
	rp := &registry.RunningProcess{
		EntryID:   entry.ID,
		GroupName: groupName,
		Name:      entry.Name,
		PID:       proc.PID,
		Token:     proc.Token,
		Target:    effective,
		Priority:  entry.Priority,
		StartedAt: time.Now(),
	}
	if err := l.reg.Register(ctx, rp); err != nil {
		l.log.Printf("register %s (pid %d): %v", entry.Name, proc.PID, err)
	}

	var applyErr error
	if err := l.api.SetAffinity(ctx, proc.PID, effective.Bits()); err != nil {
		l.log.Printf("apply affinity to %s (pid %d): %v", entry.Name, proc.PID, err)
		applyErr = fmt.Errorf("%w: pid %d: %v", ErrAffinityApply, proc.PID, err)
	}
	if err := l.api.SetPriority(ctx, proc.PID, entry.Priority); err != nil {
		l.log.Printf("apply priority to %s (pid %d): %v", entry.Name, proc.PID, err)
		if applyErr == nil {
			applyErr = fmt.Errorf("%w: pid %d: %v", ErrPriorityApply, proc.PID, err)
		}
	}

	return OutcomeSpawned, applyErr
}

func (l *Launcher) entryLock(entryID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[entryID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[entryID] = lock
	}
	return lock
}
