package track

import "github.com/golang/geo/r3"

// samples per segment for render geometry
const meshResolution = 20

// Mesh is render-ready triangle-strip geometry. It is pure data; uploading it
// anywhere is the renderer's business.
type Mesh struct {
	Vertices []r3.Vector
	Indices  []uint32
}

// Mesh generates the track ribbon as a triangle strip of interleaved
// left/right boundary vertices at ground height, with the right edge sampled a
// half step ahead of the left.
func (trk *Track) Mesh() Mesh {
	resolution := trk.numSegments * meshResolution
	numSeg := float64(trk.numSegments)

	vertices := make([]r3.Vector, 0, resolution*2)
	for i := 0; i < resolution; i++ {
		t0 := float64(i) / float64(resolution-1) * numSeg
		left := trk.Position(t0).Add(trk.Normal(t0).Mul(trk.width / 2))
		vertices = append(vertices, r3.Vector{X: left.X, Y: 0, Z: left.Y})

		t1 := (float64(i) + 0.5) / float64(resolution-1) * numSeg
		right := trk.Position(t1).Sub(trk.Normal(t1).Mul(trk.width / 2))
		vertices = append(vertices, r3.Vector{X: right.X, Y: 0, Z: right.Y})
	}

	indices := make([]uint32, resolution*2)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return Mesh{Vertices: vertices, Indices: indices}
}
