package cmd

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

type Options struct {
	ConfigPath string
	StatePath  string
	List       bool
	JSON       bool
	Run        string
	RunGroup   string
	Autorun    bool
	Watch      bool
	Monitor    string
}

var ErrInvalidArguments = errors.New("invalid arguments")

func ParseFlags() *Options {
	opts := &Options{}
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file (default: user config dir)")
	flag.StringVar(&opts.StatePath, "state", "", "Override state file path")
	flag.BoolVar(&opts.List, "list", false, "Print configured groups and apps, then exit")
	flag.BoolVar(&opts.JSON, "json", false, "Output in JSON format (with -list)")
	flag.StringVar(&opts.Run, "run", "", "Launch one entry non-interactively: \"Group/App\"")
	flag.StringVar(&opts.RunGroup, "run-group", "", "Launch every entry of a group non-interactively")
	flag.BoolVar(&opts.Autorun, "autorun", false, "Launch all autorun entries non-interactively")
	flag.BoolVar(&opts.Watch, "watch", false, "Stay resident and keep enforcing after a non-interactive launch")
	flag.StringVar(&opts.Monitor, "monitor", "", "Persist the enforcement toggle (\"on\" or \"off\") and exit")
	flag.Parse()
	return opts
}

func Validate(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("%w: options are required", ErrInvalidArguments)
	}

	if opts.JSON && !opts.List {
		return fmt.Errorf("%w: -json requires -list", ErrInvalidArguments)
	}

	headless := 0
	if opts.Run != "" {
		headless++
	}
	if opts.RunGroup != "" {
		headless++
	}
	if opts.Autorun {
		headless++
	}
	if headless > 1 {
		return fmt.Errorf("%w: -run, -run-group and -autorun are mutually exclusive", ErrInvalidArguments)
	}
	if opts.List && headless > 0 {
		return fmt.Errorf("%w: -list cannot be combined with launch flags", ErrInvalidArguments)
	}
	if opts.Watch && headless == 0 {
		return fmt.Errorf("%w: -watch requires -run, -run-group or -autorun", ErrInvalidArguments)
	}

	if opts.Run != "" {
		parts := strings.SplitN(opts.Run, "/", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return fmt.Errorf("%w: -run expects \"Group/App\"", ErrInvalidArguments)
		}
	}

	switch opts.Monitor {
	case "", "on", "off":
	default:
		return fmt.Errorf("%w: -monitor expects \"on\" or \"off\"", ErrInvalidArguments)
	}
	if opts.Monitor != "" && (opts.List || headless > 0) {
		return fmt.Errorf("%w: -monitor cannot be combined with other modes", ErrInvalidArguments)
	}

	return nil
}

// RunTarget splits the -run value into group and app names.
func (o *Options) RunTarget() (group, app string) {
	parts := strings.SplitN(o.Run, "/", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
