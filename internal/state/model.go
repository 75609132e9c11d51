package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrDuplicateGroup = errors.New("group name already exists")
	ErrGroupNotFound  = errors.New("group not found")
	ErrAppNotFound    = errors.New("app not found")
)

type Priority string

const (
	PriorityIdle        Priority = "Idle"
	PriorityBelowNormal Priority = "BelowNormal"
	PriorityNormal      Priority = "Normal"
	PriorityAboveNormal Priority = "AboveNormal"
	PriorityHigh        Priority = "High"
	PriorityRealtime    Priority = "Realtime"
)

// Priorities lists all classes in ascending scheduling weight.
func Priorities() []Priority {
	return []Priority{
		PriorityIdle,
		PriorityBelowNormal,
		PriorityNormal,
		PriorityAboveNormal,
		PriorityHigh,
		PriorityRealtime,
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityIdle, PriorityBelowNormal, PriorityNormal,
		PriorityAboveNormal, PriorityHigh, PriorityRealtime:
		return true
	}
	return false
}

// AppEntry is one launchable application inside a core group. The ID is
// generated once and survives renames, so running-process association never
// depends on the display name or the binary path.
type AppEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Args     []string `json:"args,omitempty"`
	Priority Priority `json:"priority"`
	Autorun  bool     `json:"autorun,omitempty"`
}

func NewAppEntry(path string, args []string) AppEntry {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return AppEntry{
		ID:       uuid.NewString(),
		Name:     name,
		Path:     path,
		Args:     args,
		Priority: PriorityNormal,
	}
}

type CoreGroup struct {
	Name   string     `json:"name"`
	Cores  CoreMask   `json:"cores"`
	RunAll bool       `json:"run_all,omitempty"`
	Apps   []AppEntry `json:"apps"`
}

func (g *CoreGroup) App(id string) *AppEntry {
	for i := range g.Apps {
		if g.Apps[i].ID == id {
			return &g.Apps[i]
		}
	}
	return nil
}

func (g *CoreGroup) RemoveApp(id string) bool {
	for i := range g.Apps {
		if g.Apps[i].ID == id {
			g.Apps = append(g.Apps[:i], g.Apps[i+1:]...)
			return true
		}
	}
	return false
}

// MoveApp shifts the app at index from to index to, preserving the order of
// everything else. Order is user-significant: it is both display and launch
// order.
func (g *CoreGroup) MoveApp(from, to int) {
	if from < 0 || from >= len(g.Apps) || to < 0 || to >= len(g.Apps) || from == to {
		return
	}
	app := g.Apps[from]
	g.Apps = append(g.Apps[:from], g.Apps[from+1:]...)
	g.Apps = append(g.Apps[:to], append([]AppEntry{app}, g.Apps[to:]...)...)
}

// PersistedState is the top-level persisted document. UI holds front-end
// preferences the engine never interprets.
type PersistedState struct {
	Version        int             `json:"version"`
	Groups         []CoreGroup     `json:"groups"`
	MonitorEnabled bool            `json:"monitor_enabled"`
	UI             json.RawMessage `json:"ui,omitempty"`
}

func DefaultState() *PersistedState {
	return &PersistedState{
		Version:        CurrentVersion,
		Groups:         []CoreGroup{},
		MonitorEnabled: true,
	}
}

func (s *PersistedState) Group(name string) *CoreGroup {
	for i := range s.Groups {
		if s.Groups[i].Name == name {
			return &s.Groups[i]
		}
	}
	return nil
}

func (s *PersistedState) AddGroup(group CoreGroup) error {
	if strings.TrimSpace(group.Name) == "" {
		return fmt.Errorf("group name is required")
	}
	if len(group.Cores) == 0 {
		return ErrEmptyMask
	}
	if s.Group(group.Name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateGroup, group.Name)
	}
	if group.Apps == nil {
		group.Apps = []AppEntry{}
	}
	s.Groups = append(s.Groups, group)
	return nil
}

func (s *PersistedState) RenameGroup(oldName, newName string) error {
	group := s.Group(oldName)
	if group == nil {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, oldName)
	}
	if newName != oldName && s.Group(newName) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateGroup, newName)
	}
	group.Name = newName
	return nil
}

// RemoveGroup deletes a group and all of its app entries. Processes already
// launched from the group keep running; only configuration is removed.
func (s *PersistedState) RemoveGroup(name string) error {
	for i := range s.Groups {
		if s.Groups[i].Name == name {
			s.Groups = append(s.Groups[:i], s.Groups[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrGroupNotFound, name)
}

// FindApp locates an app entry by ID across all groups.
func (s *PersistedState) FindApp(id string) (*CoreGroup, *AppEntry) {
	for i := range s.Groups {
		if app := s.Groups[i].App(id); app != nil {
			return &s.Groups[i], app
		}
	}
	return nil, nil
}
