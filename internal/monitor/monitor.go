package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"corepin/internal/logging"
	"corepin/internal/osproc"
	"corepin/internal/registry"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultUnitTimeout = time.Second
)

// Monitor periodically re-asserts every registered process's target affinity
// and priority. Some applications reset their own settings after start; the
// monitor detects that drift and puts the target back. It also adopts newly
// spawned children under the parent's target and prunes what has exited.
type Monitor struct {
	api osproc.API
	reg *registry.Registry
	log *logging.Logger

	interval    time.Duration
	unitTimeout time.Duration

	enabled atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

func New(api osproc.API, reg *registry.Registry, log *logging.Logger, interval, unitTimeout time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if unitTimeout <= 0 {
		unitTimeout = DefaultUnitTimeout
	}
	m := &Monitor{
		api:         api,
		reg:         reg,
		log:         log,
		interval:    interval,
		unitTimeout: unitTimeout,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	m.enabled.Store(true)
	return m
}

// SetEnabled flips the global toggle. The toggle is read once per sweep
// boundary and once per unit: an in-flight unit completes, no new unit
// starts. Disabling performs no undo; already-applied settings stay as they
// are.
func (m *Monitor) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

func (m *Monitor) Enabled() bool {
	return m.enabled.Load()
}

// Start runs the sweep loop until Stop is called or the context ends.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if !m.enabled.Load() {
					continue
				}
				m.Sweep(ctx)
			}
		}
	}()
}

func (m *Monitor) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.done
}

// Sweep runs one pass over the registry. Every entry is an independent unit
// of work with its own timeout, so one hung or hostile process never stalls
// enforcement for the others. Per-process failures are counted and logged in
// aggregate, never fatal.
func (m *Monitor) Sweep(ctx context.Context) {
	entries := m.reg.Snapshot()
	if len(entries) == 0 {
		return
	}

	var wg sync.WaitGroup
	var failures atomic.Int64
	var lastErr atomic.Value

	for _, rp := range entries {
		if !m.enabled.Load() {
			break
		}
		wg.Add(1)
		go func(rp *registry.RunningProcess) {
			defer wg.Done()
			unitCtx, cancel := context.WithTimeout(ctx, m.unitTimeout)
			defer cancel()
			if err := m.sweepEntry(unitCtx, rp); err != nil {
				failures.Add(1)
				lastErr.Store(err)
			}
		}(rp)
	}
	wg.Wait()

	if n := failures.Load(); n > 0 {
		err, _ := lastErr.Load().(error)
		m.log.Printf("sweep: %d processes reported errors (last: %v)", n, err)
	}
}

func (m *Monitor) sweepEntry(ctx context.Context, rp *registry.RunningProcess) error {
	if !m.api.Alive(ctx, rp.PID, rp.Token) {
		m.reg.Unregister(rp.EntryID)
		m.log.Printf("%s (pid %d) exited, no longer tracked", rp.Name, rp.PID)
		return nil
	}

	var firstErr error

	// Adopt children discovered since the last sweep. There is one target per
	// entry: descendants inherit the parent's enforcement, not their own.
	descendants, err := m.api.Descendants(ctx, rp.PID)
	if err != nil {
		firstErr = err
	} else {
		for _, child := range descendants {
			if _, known := rp.Children[child.PID]; known {
				continue
			}
			if !m.reg.AddChild(rp.EntryID, child.PID, child.Token) {
				continue
			}
			rp.Children[child.PID] = child.Token
			m.log.Printf("%s: adopted child pid %d", rp.Name, child.PID)
			if err := m.enforce(ctx, rp, child.PID); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := m.enforce(ctx, rp, rp.PID); err != nil && firstErr == nil {
		firstErr = err
	}

	for pid, token := range rp.Children {
		if !m.api.Alive(ctx, pid, token) {
			m.reg.RemoveChild(rp.EntryID, pid)
			continue
		}
		if err := m.enforce(ctx, rp, pid); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// enforce reads the process's current settings and reapplies the target on
// drift. A process that vanished between check and set is not an error.
func (m *Monitor) enforce(ctx context.Context, rp *registry.RunningProcess, pid int32) error {
	current, err := m.api.GetAffinity(ctx, pid)
	switch {
	case errors.Is(err, osproc.ErrProcessGone):
		return nil
	case err != nil:
		return err
	case current != rp.Target.Bits():
		if err := m.api.SetAffinity(ctx, pid, rp.Target.Bits()); err != nil && !errors.Is(err, osproc.ErrProcessGone) {
			return err
		}
		m.log.Printf("%s: affinity drift on pid %d, restored %s", rp.Name, pid, rp.Target)
	}

	priority, err := m.api.GetPriority(ctx, pid)
	switch {
	case errors.Is(err, osproc.ErrProcessGone):
		return nil
	case err != nil:
		return err
	case priority != rp.Priority:
		if err := m.api.SetPriority(ctx, pid, rp.Priority); err != nil && !errors.Is(err, osproc.ErrProcessGone) {
			return err
		}
		m.log.Printf("%s: priority drift on pid %d, restored %s", rp.Name, pid, rp.Priority)
	}

	return nil
}
