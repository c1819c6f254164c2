package mesh

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DocumentVersion is written into every output document.
const DocumentVersion = 1

// Record is one saved tile solid.
type Record struct {
	ID       uuid.UUID    `json:"id"`
	Cycle    uint64       `json:"cycle"`
	Vertices [][3]float64 `json:"vertices"`
	Faces    [][3]int     `json:"faces"`
}

// Document is the mesh output file.
type Document struct {
	Version int       `json:"version"`
	Created time.Time `json:"created"`
	Tiles   []Record  `json:"tiles"`
}

// NewRecord assigns a fresh ID to m and flattens it to triangles.
func NewRecord(cycle uint64, m *Mesh) Record {
	return Record{
		ID:       uuid.New(),
		Cycle:    cycle,
		Vertices: flatten(m.Vertices),
		Faces:    m.Triangles(),
	}
}

// WriteJSON writes records as an indented document.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	doc := Document{
		Version: DocumentVersion,
		Created: time.Now().UTC(),
		Tiles:   records,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(doc), "encoding mesh document")
}

// SaveJSON writes records to path, replacing any existing file.
func SaveJSON(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteJSON(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadJSON reads a document written by SaveJSON.
func LoadJSON(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if doc.Version != DocumentVersion {
		return nil, errors.Errorf("%s: unsupported version %d", path, doc.Version)
	}
	return &doc, nil
}

func flatten(vs []r3.Vector) [][3]float64 {
	out := make([][3]float64, len(vs))
	for i, v := range vs {
		out[i] = [3]float64{v.X, v.Y, v.Z}
	}
	return out
}
