package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_DisabledIsNoOp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(Options{Dir: dir, DebugMode: false}))
	t.Cleanup(CloseAll)

	API("should not be written")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGet_WritesToCategoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(Options{Dir: dir, DebugMode: true, Level: "debug"}))
	t.Cleanup(CloseAll)

	Pool("credential rotation started")
	PoolDebug("selected index %d", 2)
	CloseAll()

	matches, err := filepath.Glob(filepath.Join(dir, "*_pool.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] credential rotation started")
	assert.Contains(t, string(data), "[DEBUG] selected index 2")
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(Options{Dir: dir, DebugMode: true, Level: "warn"}))
	t.Cleanup(CloseAll)

	l := Get(CategoryAPI)
	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")
	CloseAll()

	matches, err := filepath.Glob(filepath.Join(dir, "*_api.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)
	assert.NotContains(t, content, "debug line")
	assert.NotContains(t, content, "info line")
	assert.Contains(t, content, "warn line")
	assert.Contains(t, content, "error line")
}

func TestCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(Options{
		Dir:       dir,
		DebugMode: true,
		Level:     "debug",
		Categories: map[string]bool{
			"pool": false,
		},
	}))
	t.Cleanup(CloseAll)

	assert.False(t, IsCategoryEnabled(CategoryPool))
	assert.True(t, IsCategoryEnabled(CategoryAssessment))

	Pool("suppressed")
	Assessment("kept")
	CloseAll()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), "pool"), "pool log should not exist: %s", e.Name())
	}
}
