package launch

import (
	"context"

	"corepin/internal/state"
)

// Result reports one launch attempt made on the user's behalf.
type Result struct {
	Group   string
	App     string
	Outcome Outcome
	Err     error
}

// Autorun walks the configuration and launches every entry flagged autorun,
// sequentially. Each attempt succeeds or fails on its own; one broken entry
// never blocks the rest.
func (l *Launcher) Autorun(ctx context.Context, st *state.PersistedState) []Result {
	var results []Result
	for _, group := range st.Groups {
		for _, app := range group.Apps {
			if !app.Autorun {
				continue
			}
			outcome, err := l.Launch(ctx, group.Name, app, group.Cores)
			if err != nil {
				l.log.Printf("autorun %s/%s: %v", group.Name, app.Name, err)
			}
			results = append(results, Result{Group: group.Name, App: app.Name, Outcome: outcome, Err: err})
		}
	}
	return results
}

// RunGroup launches every entry in one group, in display order.
func (l *Launcher) RunGroup(ctx context.Context, group state.CoreGroup) []Result {
	results := make([]Result, 0, len(group.Apps))
	for _, app := range group.Apps {
		outcome, err := l.Launch(ctx, group.Name, app, group.Cores)
		results = append(results, Result{Group: group.Name, App: app.Name, Outcome: outcome, Err: err})
	}
	return results
}
