package osproc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// System is the live OS implementation of the capability contracts.
type System struct{}

var _ API = System{}

func New() System {
	return System{}
}

func (System) SetAffinity(ctx context.Context, pid int32, mask uint64) error {
	if mask == 0 {
		return errors.New("affinity mask is empty")
	}
	var set unix.CPUSet
	set.Zero()
	for i := 0; i < 64; i++ {
		if mask&(1<<uint(i)) != 0 {
			set.Set(i)
		}
	}
	if err := unix.SchedSetaffinity(int(pid), &set); err != nil {
		return wrapSyscall(pid, "set affinity", err)
	}
	return nil
}

func (System) GetAffinity(ctx context.Context, pid int32) (uint64, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(int(pid), &set); err != nil {
		return 0, wrapSyscall(pid, "get affinity", err)
	}
	var mask uint64
	for i := 0; i < 64; i++ {
		if set.IsSet(i) {
			mask |= 1 << uint(i)
		}
	}
	return mask, nil
}

func (s System) Descendants(ctx context.Context, pid int32) ([]Proc, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}

	children := make(map[int32][]*process.Process, len(procs))
	for _, p := range procs {
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], p)
	}

	// BFS over the snapshot; the root itself is not part of the result.
	var result []Proc
	seen := map[int32]bool{pid: true}
	queue := []int32{pid}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if seen[child.Pid] {
				continue
			}
			seen[child.Pid] = true
			token, err := child.CreateTimeWithContext(ctx)
			if err != nil {
				continue
			}
			result = append(result, Proc{PID: child.Pid, Token: token})
			queue = append(queue, child.Pid)
		}
	}
	return result, nil
}

func (System) Alive(ctx context.Context, pid int32, token int64) bool {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return false
	}
	created, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return false
	}
	return created == token
}

// Spawn starts the target detached in its own session, so closing this tool
// never takes launched applications down with it. The creation token is read
// immediately after start, before the PID can plausibly be recycled.
func (s System) Spawn(ctx context.Context, path string, args []string) (Proc, error) {
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return Proc{}, err
	}
	pid := int32(cmd.Process.Pid)

	token := int64(0)
	if p, err := process.NewProcessWithContext(ctx, pid); err == nil {
		if created, err := p.CreateTimeWithContext(ctx); err == nil {
			token = created
		}
	}

	// Reap when the child exits to avoid accumulating zombies.
	go func() { _ = cmd.Wait() }()

	return Proc{PID: pid, Token: token}, nil
}

func wrapSyscall(pid int32, op string, err error) error {
	if errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("%s for pid %d: %w", op, pid, ErrProcessGone)
	}
	return fmt.Errorf("%s for pid %d: %w", op, pid, err)
}
