package osproc

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"corepin/internal/state"
)

const realtimeSchedPriority = 50

// niceFor maps a priority class to a nice value, mirroring the classic
// Windows priority ladder on Linux.
func niceFor(p state.Priority) int {
	switch p {
	case state.PriorityIdle:
		return 19
	case state.PriorityBelowNormal:
		return 10
	case state.PriorityAboveNormal:
		return -5
	case state.PriorityHigh:
		return -10
	case state.PriorityRealtime:
		return -10 // degraded fallback when SCHED_FIFO is denied
	default:
		return 0
	}
}

func classForNice(nice int) state.Priority {
	switch {
	case nice >= 15:
		return state.PriorityIdle
	case nice >= 5:
		return state.PriorityBelowNormal
	case nice >= -2:
		return state.PriorityNormal
	case nice >= -7:
		return state.PriorityAboveNormal
	default:
		return state.PriorityHigh
	}
}

// SetPriority applies the class to the process. Realtime attempts SCHED_FIFO
// and degrades to the High nice value when the scheduler change is not
// permitted, per the nearest-supported-class rule.
func (System) SetPriority(ctx context.Context, pid int32, priority state.Priority) error {
	if priority == state.PriorityRealtime {
		attr := unix.SchedAttr{
			Size:     unix.SizeofSchedAttr,
			Policy:   unix.SCHED_FIFO,
			Priority: realtimeSchedPriority,
		}
		if err := unix.SchedSetAttr(int(pid), &attr, 0); err == nil {
			return nil
		} else if !errorsIsPermission(err) {
			return wrapSyscall(pid, "set realtime priority", err)
		}
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, int(pid), niceFor(priority)); err != nil {
		return wrapSyscall(pid, "set priority", err)
	}
	return nil
}

// GetPriority reads the class back from /proc/<pid>/stat: the policy field
// distinguishes realtime scheduling, the nice field maps to the ladder.
func (System) GetPriority(ctx context.Context, pid int32) (state.Priority, error) {
	nice, policy, err := readStatSched(pid)
	if err != nil {
		return "", err
	}
	if policy == unix.SCHED_FIFO || policy == unix.SCHED_RR {
		return state.PriorityRealtime, nil
	}
	return classForNice(nice), nil
}

// LowerSelfPriority drops this tool to BelowNormal so the monitor never
// competes with the workloads it manages.
func LowerSelfPriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, niceFor(state.PriorityBelowNormal))
}

// readStatSched parses nice and policy out of /proc/<pid>/stat. Fields are
// counted after the parenthesized comm, which may itself contain spaces.
func readStatSched(pid int32) (nice int, policy int, err error) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(int(pid)) + "/stat")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, fmt.Errorf("read sched info for pid %d: %w", pid, ErrProcessGone)
		}
		return 0, 0, err
	}

	line := string(data)
	lastParen := strings.LastIndex(line, ")")
	if lastParen == -1 {
		return 0, 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	fields := strings.Fields(line[lastParen+1:])
	// After the comm: state=0 ... nice=16 ... policy=38 (stat fields 19 and 41).
	if len(fields) < 39 {
		return 0, 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	nice, err = strconv.Atoi(fields[16])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed nice for pid %d: %v", pid, err)
	}
	policy, err = strconv.Atoi(fields[38])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed policy for pid %d: %v", pid, err)
	}
	return nice, policy, nil
}

func errorsIsPermission(err error) bool {
	return err == unix.EPERM || os.IsPermission(err)
}
