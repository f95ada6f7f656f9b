package localeval

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Grid is a north-up lon/lat pixel grid. Origin is the top-left corner.
type Grid struct {
	Origin    orb.Point
	PixelSize float64 // degrees
	Width     int
	Height    int
}

// Center returns the lon/lat of a pixel center.
func (g Grid) Center(col, row int) orb.Point {
	return orb.Point{
		g.Origin.Lon() + (float64(col)+0.5)*g.PixelSize,
		g.Origin.Lat() - (float64(row)+0.5)*g.PixelSize,
	}
}

func (g Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.Origin.Lon(), g.Origin.Lat() - float64(g.Height)*g.PixelSize},
		Max: orb.Point{g.Origin.Lon() + float64(g.Width)*g.PixelSize, g.Origin.Lat()},
	}
}

func (g Grid) Len() int { return g.Width * g.Height }

// Band is one raster band with an explicit validity mask. Invalid pixels are "no data".
type Band struct {
	Values []float64
	Valid  []bool
}

// NewBand returns a band with every pixel set to no data.
func NewBand(n int) *Band {
	return &Band{Values: make([]float64, n), Valid: make([]bool, n)}
}

// Set stores a valid value at i.
func (b *Band) Set(i int, v float64) {
	b.Values[i] = v
	b.Valid[i] = true
}

// At returns the value at i and whether it holds data.
func (b *Band) At(i int) (float64, bool) {
	return b.Values[i], b.Valid[i]
}

// Raster is an ordered set of named bands on a grid. Evaluation never mutates a Raster
// once it has been handed out.
type Raster struct {
	Grid  Grid
	names []string
	bands map[string]*Band
}

func NewRaster(g Grid) *Raster {
	return &Raster{Grid: g, bands: make(map[string]*Band)}
}

// AddBand appends or replaces a band. Values must match the grid size.
func (r *Raster) AddBand(name string, b *Band) error {
	if len(b.Values) != r.Grid.Len() || len(b.Valid) != r.Grid.Len() {
		return fmt.Errorf("band %q has %d pixels, grid has %d", name, len(b.Values), r.Grid.Len())
	}
	if _, ok := r.bands[name]; !ok {
		r.names = append(r.names, name)
	}
	r.bands[name] = b
	return nil
}

// Band returns the named band.
func (r *Raster) Band(name string) (*Band, error) {
	b, ok := r.bands[name]
	if !ok {
		return nil, fmt.Errorf("band %q not found (have %v)", name, r.names)
	}
	return b, nil
}

func (r *Raster) BandNames() []string {
	return append([]string(nil), r.names...)
}

// First returns the first band, which single-band operations act on.
func (r *Raster) First() (string, *Band, error) {
	if len(r.names) == 0 {
		return "", nil, fmt.Errorf("raster has no bands")
	}
	return r.names[0], r.bands[r.names[0]], nil
}

// Scene is one acquisition in the local archive.
type Scene struct {
	ID         string
	Acquired   time.Time
	Footprint  orb.Bound
	Properties map[string]float64
	Image      *Raster
}
