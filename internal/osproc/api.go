package osproc

import (
	"context"
	"errors"

	"corepin/internal/state"
)

var (
	// ErrProcessGone marks failures caused by the target process no longer
	// existing, as opposed to permission or OS errors against a live process.
	ErrProcessGone      = errors.New("process gone")
	ErrFocusUnsupported = errors.New("window focus not supported on this system")
)

// Proc identifies one process: the PID plus its creation token. The token is
// the process start time; a recycled PID carries a different token, so stale
// PIDs are never mistaken for the process they used to be.
type Proc struct {
	PID   int32
	Token int64
}

// Binder reads and writes a process's affinity mask and priority class.
type Binder interface {
	SetAffinity(ctx context.Context, pid int32, mask uint64) error
	GetAffinity(ctx context.Context, pid int32) (uint64, error)
	SetPriority(ctx context.Context, pid int32, priority state.Priority) error
	GetPriority(ctx context.Context, pid int32) (state.Priority, error)
}

// Tree enumerates descendants and answers liveness queries. Alive is the
// single liveness predicate shared by the launcher and the monitor, so the
// two can never disagree about whether an entry is running.
type Tree interface {
	Descendants(ctx context.Context, pid int32) ([]Proc, error)
	Alive(ctx context.Context, pid int32, token int64) bool
}

// Spawner starts a process and returns its identity.
type Spawner interface {
	Spawn(ctx context.Context, path string, args []string) (Proc, error)
}

// Focuser raises an existing process's main window.
type Focuser interface {
	FocusMainWindow(ctx context.Context, pid int32) error
}

// API bundles every OS capability the engine consumes.
type API interface {
	Binder
	Tree
	Spawner
	Focuser
}
