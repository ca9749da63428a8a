package navmesh

import "fmt"

// GridID returns the tile id NewGrid assigns to cell (x, y).
func GridID(x, y, width int) TileID {
	return TileID(y*width + x)
}

// NewGrid builds a width x height mesh of square tiles with uniform area,
// each connected to its four orthogonal neighbours.
func NewGrid(name string, width, height int, area float64, opts ...Option) (*Mesh, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: grid %dx%d", ErrInvalidMesh, width, height)
	}
	tiles := make([]Tile, 0, width*height)
	for y := range height {
		for x := range width {
			t := Tile{
				ID:     GridID(x, y, width),
				Area:   area,
				Center: Point{X: float64(x) + 0.5, Y: float64(y) + 0.5},
			}
			if x > 0 {
				t.Neighbors = append(t.Neighbors, GridID(x-1, y, width))
			}
			if x < width-1 {
				t.Neighbors = append(t.Neighbors, GridID(x+1, y, width))
			}
			if y > 0 {
				t.Neighbors = append(t.Neighbors, GridID(x, y-1, width))
			}
			if y < height-1 {
				t.Neighbors = append(t.Neighbors, GridID(x, y+1, width))
			}
			tiles = append(tiles, t)
		}
	}
	return New(name, tiles, opts...)
}
