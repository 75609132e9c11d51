package osproc

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FocusMainWindow raises the first visible window owned by pid. Window
// management has no portable kernel interface, so this shells out to wmctrl
// when present and reports unsupported otherwise; callers treat focus as
// best-effort.
func (System) FocusMainWindow(ctx context.Context, pid int32) error {
	wmctrl, err := exec.LookPath("wmctrl")
	if err != nil {
		return ErrFocusUnsupported
	}

	out, err := exec.CommandContext(ctx, wmctrl, "-lp").Output()
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}

	windowID := ""
	for _, line := range strings.Split(string(out), "\n") {
		// wmctrl -lp: <window id> <desktop> <pid> <host> <title>
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		owner, err := strconv.ParseInt(fields[2], 10, 32)
		if err != nil || int32(owner) != pid {
			continue
		}
		windowID = fields[0]
		break
	}
	if windowID == "" {
		return fmt.Errorf("no window found for pid %d", pid)
	}

	if err := exec.CommandContext(ctx, wmctrl, "-ia", windowID).Run(); err != nil {
		return fmt.Errorf("activate window %s: %w", windowID, err)
	}
	return nil
}
