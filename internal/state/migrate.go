package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// CurrentVersion is the schema version every save is written at.
//
// Version history:
//
//	0 — legacy, no version field; programs are bare path strings
//	1 — no version field either; programs are objects with args and priority,
//	    groups carry run_all_button, the document carries clusters
//	2 — versioned; apps have stable IDs and an autorun flag, the document
//	    carries monitor_enabled and an opaque ui blob
const CurrentVersion = 2

var ErrCorruptState = errors.New("state is not well-formed")

// A migration transforms a document from version N to N+1. Steps are pure and
// total: any parseable document comes out the other side, missing pieces are
// filled with defaults instead of failing, unknown keys are carried along.
type migration func(doc map[string]any) map[string]any

var migrations = map[int]migration{
	0: migrateV0toV1,
	1: migrateV1toV2,
}

// Migrate applies the chain until the document reaches CurrentVersion.
// Migrating an already-current document is a no-op.
func Migrate(doc map[string]any) map[string]any {
	for {
		version := docVersion(doc)
		if version >= CurrentVersion {
			return doc
		}
		step, ok := migrations[version]
		if !ok {
			doc["version"] = CurrentVersion
			return doc
		}
		doc = step(doc)
	}
}

func docVersion(doc map[string]any) int {
	switch v := doc["version"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// v0 groups held programs as bare path strings. Each becomes an object with
// default settings; entries that are already objects pass through untouched.
func migrateV0toV1(doc map[string]any) map[string]any {
	for _, group := range docGroups(doc) {
		programs, _ := group["programs"].([]any)
		migrated := make([]any, 0, len(programs))
		for _, entry := range programs {
			path, ok := entry.(string)
			if !ok {
				migrated = append(migrated, entry)
				continue
			}
			migrated = append(migrated, map[string]any{
				"name":         nameFromPath(path),
				"dropped_path": path,
				"args":         []any{},
				"bin_path":     path,
				"priority":     string(PriorityNormal),
			})
		}
		group["programs"] = migrated
		if _, ok := group["run_all_button"]; !ok {
			group["run_all_button"] = false
		}
	}
	doc["version"] = 1
	return doc
}

// v1 programs become apps: stable generated IDs, renamed keys, autorun off.
// The clusters blob moves into the opaque ui section rather than being lost.
func migrateV1toV2(doc map[string]any) map[string]any {
	for _, group := range docGroups(doc) {
		programs, _ := group["programs"].([]any)
		apps := make([]any, 0, len(programs))
		for _, entry := range programs {
			program, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			app := map[string]any{}
			for key, value := range program {
				switch key {
				case "name", "bin_path", "dropped_path", "args", "priority":
				default:
					app[key] = value
				}
			}
			path, _ := program["bin_path"].(string)
			if path == "" {
				path, _ = program["dropped_path"].(string)
			}
			name, _ := program["name"].(string)
			if name == "" {
				name = nameFromPath(path)
			}
			priority, _ := program["priority"].(string)
			if !Priority(priority).Valid() {
				priority = string(PriorityNormal)
			}
			app["id"] = uuid.NewString()
			app["name"] = name
			app["path"] = path
			if args, ok := program["args"]; ok {
				app["args"] = args
			}
			app["priority"] = priority
			app["autorun"] = false
			apps = append(apps, app)
		}
		delete(group, "programs")
		group["apps"] = apps

		runAll, _ := group["run_all_button"].(bool)
		delete(group, "run_all_button")
		group["run_all"] = runAll
	}

	if clusters, ok := doc["clusters"]; ok {
		ui, _ := doc["ui"].(map[string]any)
		if ui == nil {
			ui = map[string]any{}
		}
		ui["clusters"] = clusters
		doc["ui"] = ui
		delete(doc, "clusters")
	}
	if _, ok := doc["monitor_enabled"]; !ok {
		doc["monitor_enabled"] = true
	}
	doc["version"] = 2
	return doc
}

func docGroups(doc map[string]any) []map[string]any {
	raw, _ := doc["groups"].([]any)
	groups := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if group, ok := entry.(map[string]any); ok {
			groups = append(groups, group)
		}
	}
	return groups
}

func nameFromPath(path string) string {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" || name == "." {
		return "Unknown"
	}
	return name
}

// Load parses and migrates raw state bytes. Only bytes that are not a JSON
// object at all are corrupt; a parseable document with malformed pieces loads
// best-effort, since losing user configuration is worse than approximate
// recovery.
func Load(data []byte) (*PersistedState, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	if docVersion(doc) < CurrentVersion {
		doc = Migrate(doc)
		migrated, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
		data = migrated
	}

	var st PersistedState
	if err := json.Unmarshal(data, &st); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
		// Mismatched fields are skipped; the rest of the document survives.
	}
	st.normalize()
	return &st, nil
}

// Save serializes at the current schema version. The version never decreases:
// a document written by a newer release keeps its higher version number.
func Save(s *PersistedState) ([]byte, error) {
	out := *s
	if out.Version < CurrentVersion {
		out.Version = CurrentVersion
	}
	return json.MarshalIndent(&out, "", "  ")
}

func (s *PersistedState) normalize() {
	if s.Version < CurrentVersion {
		s.Version = CurrentVersion
	}
	if s.Groups == nil {
		s.Groups = []CoreGroup{}
	}
	for i := range s.Groups {
		group := &s.Groups[i]
		if len(group.Cores) > 0 {
			if mask, err := NewCoreMask(group.Cores...); err == nil {
				group.Cores = mask
			}
		}
		if group.Apps == nil {
			group.Apps = []AppEntry{}
		}
		for j := range group.Apps {
			app := &group.Apps[j]
			if app.ID == "" {
				app.ID = uuid.NewString()
			}
			if !app.Priority.Valid() {
				app.Priority = PriorityNormal
			}
		}
	}
}
