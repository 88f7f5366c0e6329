// Package track models a closed race track centerline as a piecewise quadratic
// Bezier curve in the ground plane, with parametric queries for position,
// tangent, normal, closest point, and boundary waypoints.
//
// The curve parameter t spans [0, NumSegments()): the integer part selects a
// segment and the fractional part the position within it. Consecutive control
// point pairs (p0, p1), together with the next pair's first point, define one
// segment; the last segment wraps back to the first, closing the loop.
package track

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// DefaultWidth is the drivable track width, centerline to both boundaries.
const DefaultWidth = 12.0

const (
	tangentDelta = 0.001

	closestSeeds      = 11
	closestIterations = 5
	closestEpsilon    = 1e-6
)

// Track is an immutable closed curve. Construct with New or Load.
type Track struct {
	points      []r2.Point
	numSegments int
	width       float64
}

// New builds a track from an ordered sequence of control points. The count
// must be even and non-zero so segments pair up and the loop closes.
func New(points []r2.Point) (*Track, error) {
	if len(points) == 0 {
		return nil, errors.New("track needs at least one control point pair")
	}
	if len(points)%2 != 0 {
		return nil, errors.Errorf("track needs an even number of control points, got %d", len(points))
	}
	pts := make([]r2.Point, len(points))
	copy(pts, points)
	return &Track{points: pts, numSegments: len(pts) / 2, width: DefaultWidth}, nil
}

// NumSegments returns the number of Bezier segments; the valid parameter range
// is [0, NumSegments()).
func (trk *Track) NumSegments() int {
	return trk.numSegments
}

// Width returns the drivable track width.
func (trk *Track) Width() float64 {
	return trk.width
}

// segmentIndex maps a parameter to its segment via floored modular arithmetic,
// so negative parameters wrap rather than going out of range.
func (trk *Track) segmentIndex(t float64) int {
	seg := int(math.Floor(t)) % trk.numSegments
	if seg < 0 {
		seg += trk.numSegments
	}
	return seg
}

// controlPoints returns the three Bezier control points of a segment, the last
// wrapping to the following segment's first point.
func (trk *Track) controlPoints(segment int) (p0, p1, p2 r2.Point) {
	p0 = trk.points[segment*2]
	p1 = trk.points[segment*2+1]
	p2 = trk.points[(segment*2+2)%len(trk.points)]
	return p0, p1, p2
}

// Position evaluates the centerline at parameter t.
func (trk *Track) Position(t float64) r2.Point {
	segment := trk.segmentIndex(t)
	local := t - math.Floor(t)
	p0, p1, p2 := trk.controlPoints(segment)
	invT := 1 - local
	return p0.Mul(invT * invT).Add(p1.Mul(2 * invT * local)).Add(p2.Mul(local * local))
}

// Tangent returns the unit tangent at parameter t, by forward finite difference.
func (trk *Track) Tangent(t float64) r2.Point {
	p1 := trk.Position(t)
	p2 := trk.Position(t + tangentDelta)
	return p2.Sub(p1).Normalize()
}

// Normal returns the unit normal at parameter t: the tangent rotated 90 degrees.
func (trk *Track) Normal(t float64) r2.Point {
	tangent := trk.Tangent(t)
	return r2.Point{X: -tangent.Y, Y: tangent.X}
}

// ClosestT finds the curve parameter whose position is nearest the query point.
// Each segment is searched independently with Newton-Raphson on the stationary
// condition dot(B(t)-point, B'(t)) = 0, seeded from evenly spaced parameters;
// the best candidate across all segments wins, with earlier segments and seeds
// winning ties.
func (trk *Track) ClosestT(point r2.Point) float64 {
	bestT := 0.0
	bestDistSq := math.Inf(1)
	for segment := 0; segment < trk.numSegments; segment++ {
		localT, distSq := trk.closestOnSegment(segment, point)
		if distSq < bestDistSq {
			bestDistSq = distSq
			bestT = float64(segment) + localT
		}
	}
	if bestT >= float64(trk.numSegments) {
		bestT -= float64(trk.numSegments)
	}
	return bestT
}

// closestOnSegment minimizes squared distance from the query point to one
// segment over local t in [0,1], returning the best t and its squared distance.
func (trk *Track) closestOnSegment(segment int, point r2.Point) (float64, float64) {
	p0, p1, p2 := trk.controlPoints(segment)
	// B(t) = a t^2 + b t + c
	a := p0.Sub(p1.Mul(2)).Add(p2)
	b := p1.Sub(p0).Mul(2)
	c := p0

	eval := func(t float64) r2.Point {
		return a.Mul(t * t).Add(b.Mul(t)).Add(c)
	}
	distSqAt := func(t float64) float64 {
		d := eval(t).Sub(point)
		return d.Dot(d)
	}

	bestT := 0.0
	bestDistSq := math.Inf(1)
	consider := func(t float64) {
		if d := distSqAt(t); d < bestDistSq {
			bestDistSq = d
			bestT = t
		}
	}

	for seed := 0; seed < closestSeeds; seed++ {
		t := float64(seed) / float64(closestSeeds-1)
		consider(t)
		for iter := 0; iter < closestIterations; iter++ {
			d := eval(t).Sub(point)
			deriv := a.Mul(2 * t).Add(b) // B'(t)
			// f(t) = dot(d, B'), f'(t) = dot(B', B') + dot(d, B'')
			f := d.Dot(deriv)
			fPrime := deriv.Dot(deriv) + d.Dot(a.Mul(2))
			if math.Abs(fPrime) < closestEpsilon {
				break // flat region, keep current t
			}
			step := f / fPrime
			t = math.Min(math.Max(t-step, 0), 1)
			if math.Abs(step) < closestEpsilon {
				break
			}
		}
		consider(t)
	}
	return bestT, bestDistSq
}

// Waypoints samples count points ahead of currentT at the given parameter
// spacing and returns the track's left and right boundary points for each,
// left first, lifted to ground height. The result has length 2*count.
func (trk *Track) Waypoints(currentT float64, count int, spacing float64) []r3.Vector {
	waypoints := make([]r3.Vector, 0, 2*count)
	numSeg := float64(trk.numSegments)
	for i := 0; i < count; i++ {
		t := currentT + float64(i)*spacing
		for t >= numSeg {
			t -= numSeg
		}
		for t < 0 {
			t += numSeg
		}
		pos := trk.Position(t)
		offset := trk.Normal(t).Mul(trk.width / 2)
		left := pos.Add(offset)
		right := pos.Sub(offset)
		waypoints = append(waypoints,
			r3.Vector{X: left.X, Y: 0, Z: left.Y},
			r3.Vector{X: right.X, Y: 0, Z: right.Y},
		)
	}
	return waypoints
}
