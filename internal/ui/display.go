package ui

import (
	"encoding/json"
	"fmt"
	"os"

	"corepin/internal/launch"
	"corepin/internal/registry"
	"corepin/internal/state"
)

// PrintGroups renders the configured groups and their apps for -list.
func PrintGroups(st *state.PersistedState, reg *registry.Registry) {
	if len(st.Groups) == 0 {
		fmt.Println(dimStyle.Render("  No groups configured"))
		return
	}

	fmt.Println(titleStyle.Render(" Core Groups "))
	fmt.Println()

	for _, group := range st.Groups {
		fmt.Printf("  %s  %s\n",
			groupStyle.Render(group.Name),
			coreStyle.Render("cores "+group.Cores.String()))

		if len(group.Apps) == 0 {
			fmt.Println(dimStyle.Render("     (no apps)"))
			continue
		}
		for i, app := range group.Apps {
			prefix := "├─"
			if i == len(group.Apps)-1 {
				prefix = "└─"
			}
			flags := ""
			if app.Autorun {
				flags = highlightStyle.Render(" [autorun]")
			}
			running := ""
			if reg != nil {
				if rp := findRunning(reg, app.ID); rp != nil {
					running = runningStyle.Render(fmt.Sprintf("  ● pid %d", rp.PID))
				}
			}
			fmt.Printf("     %s %s  %s%s%s\n",
				prefix, app.Name,
				priorityStyle.Render(string(app.Priority)),
				flags, running)
		}
	}
	fmt.Println()
}

func findRunning(reg *registry.Registry, entryID string) *registry.RunningProcess {
	for _, rp := range reg.Snapshot() {
		if rp.EntryID == entryID {
			return rp
		}
	}
	return nil
}

// PrintGroupsJSON emits the group configuration as indented JSON on stdout.
func PrintGroupsJSON(st *state.PersistedState) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(st.Groups)
}

// PrintResults reports the outcome of a non-interactive launch batch.
func PrintResults(results []launch.Result) {
	for _, res := range results {
		label := fmt.Sprintf("%s/%s", res.Group, res.App)
		switch {
		case res.Err != nil:
			fmt.Printf("  %s %s: %v\n", errorTextStyle.Render("✗"), label, res.Err)
		case res.Outcome == launch.OutcomeFocused:
			fmt.Printf("  %s %s already running, window focused\n", coreStyle.Render("✓"), label)
		default:
			fmt.Printf("  %s %s started\n", coreStyle.Render("✓"), label)
		}
	}
}

func PrintError(err error) {
	content := fmt.Sprintf("✗ Error: %v", err)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, errorBoxStyle.Render(content))
	fmt.Fprintln(os.Stderr)
}

func PrintWarning(msg string) {
	fmt.Fprintln(os.Stderr, highlightStyle.Render("! "+msg))
}
