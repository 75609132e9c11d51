package osproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTargetPlainPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, nil, 0o755))

	resolved, args, err := ResolveTarget(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Empty(t, args)
}

func TestResolveTargetFollowsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	require.NoError(t, os.WriteFile(target, nil, 0o755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	resolved, _, err := ResolveTarget(link)
	require.NoError(t, err)
	assert.Equal(t, target, resolved)
}

func TestResolveTargetDesktopFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.desktop")
	content := "[Desktop Entry]\nName=My App\nExec=/usr/bin/myapp --flag %U\nIcon=myapp\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	resolved, args, err := ResolveTarget(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/myapp", resolved)
	assert.Equal(t, []string{"--flag"}, args)
}

func TestParseDesktopFileQuotedExec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.desktop")
	content := "Exec=\"/opt/My App/bin/app\" --profile 'main one' %f\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	resolved, args, err := parseDesktopFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/My App/bin/app", resolved)
	assert.Equal(t, []string{"--profile", "main one"}, args)
}

func TestParseDesktopFileNoExec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.desktop")
	require.NoError(t, os.WriteFile(path, []byte("[Desktop Entry]\nName=X\n"), 0o644))

	_, _, err := parseDesktopFile(path)
	assert.Error(t, err)
}

func TestStripFieldCodes(t *testing.T) {
	assert.Equal(t, "/usr/bin/app --flag", stripFieldCodes("/usr/bin/app --flag %U"))
	assert.Equal(t, "/usr/bin/app", stripFieldCodes("%f /usr/bin/app %u"))
	assert.Equal(t, "app 100%", stripFieldCodes("app 100%%"))
}

func TestSplitCommandLine(t *testing.T) {
	testCases := []struct {
		input    string
		expected []string
	}{
		{input: "a b c", expected: []string{"a", "b", "c"}},
		{input: `"a b" c`, expected: []string{"a b", "c"}},
		{input: `'a b' c`, expected: []string{"a b", "c"}},
		{input: `a\ b c`, expected: []string{"a b", "c"}},
		{input: `""`, expected: []string{""}},
		{input: "  spaced   out  ", expected: []string{"spaced", "out"}},
		{input: "", expected: nil},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, splitCommandLine(tc.input), "input %q", tc.input)
	}
}
