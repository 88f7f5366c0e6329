package track

import (
	"encoding/json"
	"os"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// trackFile is the on-disk schema: {"points": [[x, y], ...]}.
type trackFile struct {
	Points [][]float64 `json:"points"`
}

// Load reads a track file and builds its curve. Any failure (missing file,
// malformed JSON, bad point arity) is returned as an error; callers treat that
// as "no track loaded" rather than fatal.
func Load(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read track file %q", path)
	}
	return Parse(data)
}

// Parse builds a track from raw track-file JSON.
func Parse(data []byte) (*Track, error) {
	var file trackFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "malformed track file")
	}
	points := make([]r2.Point, 0, len(file.Points))
	for i, pt := range file.Points {
		if len(pt) != 2 {
			return nil, errors.Errorf("track point %d has %d coordinates, want 2", i, len(pt))
		}
		points = append(points, r2.Point{X: pt[0], Y: pt[1]})
	}
	trk, err := New(points)
	if err != nil {
		return nil, errors.Wrap(err, "invalid track")
	}
	return trk, nil
}
