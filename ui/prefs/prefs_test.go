package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", prefsFile)

	p := LoadFrom(path)
	assert.Equal(t, 45, p.Int("threshold", 45))
	assert.Equal(t, "x", p.String("window", "x"))

	p.SetInt("threshold", 120)
	p.SetString("window", "Tiles")
	require.NoError(t, p.Save())

	q := LoadFrom(path)
	assert.Equal(t, 120, q.Int("threshold", 45))
	assert.Equal(t, "Tiles", q.String("window", ""))
	assert.Equal(t, path, q.Path())
}

func TestLoadBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefsFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	p := LoadFrom(path)
	assert.Equal(t, 7, p.Int("threshold", 7))
}

func TestWrongType(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), prefsFile))
	p.SetString("threshold", "high")
	assert.Equal(t, 3, p.Int("threshold", 3))
	p.SetInt("window", 1)
	assert.Equal(t, "w", p.String("window", "w"))
}
