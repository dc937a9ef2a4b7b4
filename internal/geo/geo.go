// Package geo anchors the simulator's local frame to a WGS84 origin so
// recorded poses carry a geotag.
//
// Points are stored as 3857 because SQLite has no spatial awareness; web
// mercator keeps local meter offsets additive (up to the latitude scale
// factor) and WKT/WKB round-trips through plain columns.
package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/teledrive/bridge/internal/sim"
)

// ErrShortPath is returned when a path has fewer than two positions.
var ErrShortPath = errors.New("path must have at least 2 positions")

// Origin is the WGS84 anchor of the map's local frame. Local X grows east,
// local Y grows north.
type Origin struct {
	Longitude float64
	Latitude  float64
}

// mercator returns the origin's web mercator easting/northing and the
// meter scale factor at the origin's latitude.
func (o Origin) mercator() (x, y, scale float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(o.Longitude, o.Latitude, 0)
	scale = 1 / math.Cos(o.Latitude*math.Pi/180)
	return x, y, scale
}

// Geotag converts a local offset in meters into WGS84 longitude/latitude.
func (o Origin) Geotag(loc sim.Location) (longitude, latitude float64) {
	mx, my, scale := o.mercator()
	back := wgs84.EPSG().Transform(3857, 4326)
	longitude, latitude, _ = back(mx+loc.X*scale, my+loc.Y*scale, 0)
	return longitude, latitude
}

// Point3857 converts a local offset into a web mercator point, keeping the
// local elevation as Z.
func (o Origin) Point3857(loc sim.Location) geom.Point {
	mx, my, scale := o.mercator()
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: mx + loc.X*scale, Y: my + loc.Y*scale},
			Z:    loc.Z,
			Type: geom.DimXYZ,
		},
	)
}

// PathLine builds a web mercator LineString from consecutive local
// positions, e.g. the vehicle trace of one drive session.
func (o Origin) PathLine(locs []sim.Location) (geom.LineString, error) {
	if len(locs) < 2 {
		return geom.LineString{}, ErrShortPath
	}

	mx, my, scale := o.mercator()
	flat := make([]float64, 0, len(locs)*2)
	for _, loc := range locs {
		flat = append(flat, mx+loc.X*scale, my+loc.Y*scale)
	}

	seq := geom.NewSequence(flat, geom.DimXY)
	return geom.NewLineString(seq), nil
}
