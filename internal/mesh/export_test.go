package mesh

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	m, err := Build(square(10), 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []Record{NewRecord(7, m)}))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.EqualValues(t, 1, raw["version"])
	tiles := raw["tiles"].([]interface{})
	require.Len(t, tiles, 1)
	rec := tiles[0].(map[string]interface{})
	assert.EqualValues(t, 7, rec["cycle"])
	assert.Len(t, rec["vertices"], 8)
	assert.Len(t, rec["faces"], 12)
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Contains(t, buf.String(), `"tiles": []`)
}

func TestSaveLoadJSON(t *testing.T) {
	a, err := Build(square(1), 1)
	require.NoError(t, err)
	b, err := Build(square(2), 3)
	require.NoError(t, err)

	records := []Record{NewRecord(1, a), NewRecord(1, b)}
	assert.NotEqual(t, records[0].ID, records[1].ID)

	path := filepath.Join(t.TempDir(), "tiles.json")
	require.NoError(t, SaveJSON(path, records))

	doc, err := LoadJSON(path)
	require.NoError(t, err)
	require.Len(t, doc.Tiles, 2)
	assert.Equal(t, records[1].ID, doc.Tiles[1].ID)
	assert.NotEqual(t, uuid.Nil, doc.Tiles[0].ID)
	assert.Equal(t, records[1].Vertices, doc.Tiles[1].Vertices)
	assert.Equal(t, records[1].Faces, doc.Tiles[1].Faces)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, SaveJSON(empty, nil))
	doc, err := LoadJSON(empty)
	require.NoError(t, err)
	assert.Empty(t, doc.Tiles)

	_, err = LoadJSON(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	old := filepath.Join(dir, "old.json")
	require.NoError(t, os.WriteFile(old, []byte(`{"version":0,"tiles":[]}`), 0644))
	_, err = LoadJSON(old)
	assert.Error(t, err)
}
