package vehicle

import (
	"github.com/golang/geo/r3"

	"go.viam.com/racesim/track"
)

// Mesh returns the chassis box geometry in the body's local frame. A renderer
// pairs it with the chassis body's model matrix; the core makes no GPU calls.
func (v *Vehicle) Mesh() track.Mesh {
	half := Dimensions.Mul(0.5)
	vertices := []r3.Vector{
		{X: -half.X, Y: -half.Y, Z: -half.Z},
		{X: +half.X, Y: -half.Y, Z: -half.Z},
		{X: +half.X, Y: +half.Y, Z: -half.Z},
		{X: -half.X, Y: +half.Y, Z: -half.Z},
		{X: -half.X, Y: -half.Y, Z: +half.Z},
		{X: +half.X, Y: -half.Y, Z: +half.Z},
		{X: +half.X, Y: +half.Y, Z: +half.Z},
		{X: -half.X, Y: +half.Y, Z: +half.Z},
	}
	indices := []uint32{
		0, 1, 2, 2, 3, 0,
		4, 5, 6, 6, 7, 4,
		0, 1, 5, 5, 4, 0,
		2, 3, 7, 7, 6, 2,
		0, 3, 7, 7, 4, 0,
		1, 2, 6, 6, 5, 1,
	}
	return track.Mesh{Vertices: vertices, Indices: indices}
}
