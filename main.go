package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"corepin/cmd"
	"corepin/internal/config"
	"corepin/internal/launch"
	"corepin/internal/logging"
	"corepin/internal/monitor"
	"corepin/internal/osproc"
	"corepin/internal/registry"
	"corepin/internal/state"
	"corepin/internal/topology"
	"corepin/internal/ui"
)

func main() {
	opts := cmd.ParseFlags()
	if err := cmd.Validate(opts); err != nil {
		exitWithError(err)
	}

	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		exitWithError(err)
	}
	if opts.StatePath != "" {
		cfg.StateURL = opts.StatePath
	}

	log, err := logging.New(cfg.LogPath)
	if err != nil {
		exitWithError(err)
	}
	defer log.Close()

	ctx := context.Background()
	store := state.NewStore(cfg.StateURL)
	st, err := store.Load(ctx)
	if err != nil {
		// Corrupt or unreadable state falls back to defaults; warn, never die.
		ui.PrintWarning(err.Error())
		log.Printf("load state: %v", err)
	}

	if opts.Monitor != "" {
		st.MonitorEnabled = opts.Monitor == "on"
		if err := store.Save(ctx, st); err != nil {
			exitWithError(err)
		}
		fmt.Printf("monitoring %s\n", opts.Monitor)
		return
	}

	if opts.List {
		if opts.JSON {
			if err := ui.PrintGroupsJSON(st); err != nil {
				exitWithError(err)
			}
			return
		}
		ui.PrintGroups(st, nil)
		return
	}

	// Keep the manager itself out of the way of the workloads it pins.
	if cfg.LowerSelf {
		if err := osproc.LowerSelfPriority(); err != nil {
			log.Printf("lower own priority: %v", err)
		}
	}

	api := osproc.New()
	reg := registry.New(api)
	launcher := launch.New(api, reg, log)
	mon := monitor.New(api, reg, log,
		time.Duration(cfg.SweepInterval), time.Duration(cfg.UnitTimeout))
	mon.SetEnabled(st.MonitorEnabled)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	mon.Start(runCtx)
	defer mon.Stop()

	switch {
	case opts.Run != "":
		group, app := opts.RunTarget()
		if err := runOne(runCtx, launcher, st, group, app); err != nil {
			exitWithError(err)
		}
	case opts.RunGroup != "":
		group := st.Group(opts.RunGroup)
		if group == nil {
			exitWithError(fmt.Errorf("%w: %s", state.ErrGroupNotFound, opts.RunGroup))
		}
		ui.PrintResults(launcher.RunGroup(runCtx, *group))
	case opts.Autorun:
		ui.PrintResults(launcher.Autorun(runCtx, st))
	default:
		deps := ui.Deps{
			State:    st,
			Store:    store,
			Launcher: launcher,
			Monitor:  mon,
			Registry: reg,
			Log:      log,
			Cores:    topology.LogicalCount(),
		}
		if err := ui.Run(deps); err != nil {
			exitWithError(err)
		}
		if err := store.Save(ctx, st); err != nil {
			log.Printf("save state on exit: %v", err)
		}
		return
	}

	if opts.Watch {
		waitForSignal()
	}
}

func runOne(ctx context.Context, launcher *launch.Launcher, st *state.PersistedState, groupName, appName string) error {
	group := st.Group(groupName)
	if group == nil {
		return fmt.Errorf("%w: %s", state.ErrGroupNotFound, groupName)
	}
	for _, app := range group.Apps {
		if app.Name == appName {
			outcome, err := launcher.Launch(ctx, group.Name, app, group.Cores)
			ui.PrintResults([]launch.Result{{Group: group.Name, App: app.Name, Outcome: outcome, Err: err}})
			return err
		}
	}
	return fmt.Errorf("%w: %s/%s", state.ErrAppNotFound, groupName, appName)
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

func exitWithError(err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, cmd.ErrInvalidArguments):
		ui.PrintError(err)
		os.Exit(2)
	case errors.Is(err, os.ErrPermission):
		ui.PrintError(errors.New("Permission denied. Try running with sudo."))
		os.Exit(5)
	case errors.Is(err, state.ErrGroupNotFound), errors.Is(err, state.ErrAppNotFound):
		ui.PrintError(err)
		os.Exit(4)
	case errors.Is(err, launch.ErrExecutableNotFound):
		ui.PrintError(err)
		os.Exit(6)
	case errors.Is(err, topology.ErrTopologyUnavailable):
		ui.PrintError(errors.New("Cannot read CPU topology. Are you running on a Linux system?"))
		os.Exit(3)
	default:
		ui.PrintError(err)
		os.Exit(1)
	}
}
