// Package tile maps continuous radar-space coordinates onto a square tile grid.
package tile

import (
	"cmp"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTileLength is returned when a tile side length is not a positive finite number.
var ErrInvalidTileLength = errors.New("invalid tile length")

// Coord is an integer tile coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Compare orders coordinates row-major (Y, then X).
func Compare(a, b Coord) int {
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}

// Less reports whether c sorts before o in row-major order.
func (c Coord) Less(o Coord) bool { return Compare(c, o) < 0 }

// Validate reports whether length can be used as a tile side length.
func Validate(length float64) error {
	if !(length > 0) || math.IsInf(length, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTileLength, length)
	}
	return nil
}

// Quantize returns the tile containing (x, y). Points on a tile boundary
// belong to the tile whose lower edge they sit on.
func Quantize(x, y, length float64) Coord {
	return Coord{
		X: int(math.Floor(x / length)),
		Y: int(math.Floor(y / length)),
	}
}

// Centroid returns the centre of tile c. The half-tile offset keeps rendered
// tiles from drifting toward their upper-left corner.
func Centroid(c Coord, length float64) (x, y float64) {
	return (float64(c.X) + 0.5) * length, (float64(c.Y) + 0.5) * length
}

// Path quantizes every point of a polyline.
func Path(xs, ys []float64, length float64) []Coord {
	n := min(len(xs), len(ys))
	out := make([]Coord, n)
	for i := range n {
		out[i] = Quantize(xs[i], ys[i], length)
	}
	return out
}
