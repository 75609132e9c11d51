package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesToFileAndRing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := New(path)
	require.NoError(t, err)
	defer log.Close()

	log.Printf("started %s (pid %d)", "steam", 1234)
	log.Printf("plain line")

	lines := log.Recent()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "started steam (pid 1234)")
	assert.Contains(t, lines[1], "plain line")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "started steam (pid 1234)")
}

func TestLoggerRingIsBounded(t *testing.T) {
	log, err := New(filepath.Join(t.TempDir(), "app.log"))
	require.NoError(t, err)
	defer log.Close()

	for i := 0; i < ringSize+50; i++ {
		log.Printf("line %d", i)
	}

	lines := log.Recent()
	assert.Len(t, lines, ringSize)
	assert.Contains(t, lines[len(lines)-1], "line 549")
}

func TestNilLoggerIsSafe(t *testing.T) {
	var log *Logger
	log.Printf("ignored")
	assert.Nil(t, log.Recent())
	assert.NoError(t, log.Close())
}
