package osproc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveTarget turns a user-supplied path into the binary to execute plus
// any arguments baked into it. Symlinks are followed and .desktop launchers
// resolve their Exec line; anything else passes through unchanged.
func ResolveTarget(path string) (string, []string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	if strings.EqualFold(filepath.Ext(path), ".desktop") {
		return parseDesktopFile(path)
	}
	return path, nil, nil
}

func parseDesktopFile(path string) (string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read desktop file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		cmdline, ok := strings.CutPrefix(strings.TrimSpace(line), "Exec=")
		if !ok {
			continue
		}
		parts := splitCommandLine(stripFieldCodes(cmdline))
		if len(parts) == 0 {
			return "", nil, fmt.Errorf("empty Exec line in %s", path)
		}
		return parts[0], parts[1:], nil
	}

	return "", nil, fmt.Errorf("no Exec line in %s", path)
}

// stripFieldCodes removes desktop-entry placeholders such as %f and %U.
func stripFieldCodes(cmdline string) string {
	fields := strings.Fields(cmdline)
	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) == 2 && field[0] == '%' {
			continue
		}
		kept = append(kept, strings.ReplaceAll(field, "%%", "%"))
	}
	return strings.Join(kept, " ")
}

// splitCommandLine splits on whitespace while honoring single and double
// quotes, enough for the quoting .desktop files use in practice.
func splitCommandLine(cmdline string) []string {
	var parts []string
	var current strings.Builder
	var quote byte
	pending := false

	for i := 0; i < len(cmdline); i++ {
		c := cmdline[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				current.WriteByte(c)
			}
		case c == '"' || c == '\'':
			quote = c
			pending = true
		case c == '\\' && i+1 < len(cmdline):
			i++
			current.WriteByte(cmdline[i])
			pending = true
		case c == ' ' || c == '\t':
			if pending || current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
				pending = false
			}
		default:
			current.WriteByte(c)
			pending = true
		}
	}
	if pending || current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
