package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "value")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadIntFile(t *testing.T) {
	value, err := ReadIntFile(writeFile(t, "42\n"))
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	_, err = ReadIntFile(writeFile(t, ""))
	assert.Error(t, err)

	_, err = ReadIntFile(writeFile(t, "abc"))
	assert.Error(t, err)

	_, err = ReadIntFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestReadListFile(t *testing.T) {
	testCases := []struct {
		content  string
		expected []int
		wantErr  bool
	}{
		{content: "0-3\n", expected: []int{0, 1, 2, 3}},
		{content: "0,4", expected: []int{0, 4}},
		{content: "0-1,4-5,8", expected: []int{0, 1, 4, 5, 8}},
		{content: "3,0-1,3", expected: []int{0, 1, 3}},
		{content: "", expected: []int{}},
		{content: "5-2", wantErr: true},
		{content: "x", wantErr: true},
	}

	for _, tc := range testCases {
		values, err := ReadListFile(writeFile(t, tc.content))
		if tc.wantErr {
			assert.Error(t, err, "content %q", tc.content)
			continue
		}
		require.NoError(t, err, "content %q", tc.content)
		assert.Equal(t, tc.expected, values, "content %q", tc.content)
	}
}

func TestLogicalCount(t *testing.T) {
	// Falls back to runtime.NumCPU when sysfs is unavailable, so the result
	// is positive on every platform.
	assert.Greater(t, LogicalCount(), 0)
}
