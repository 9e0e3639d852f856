package simulator

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// DefaultAccuracy is the horizontal accuracy in meters reported for track
// points that carry no "accuracy" property.
const DefaultAccuracy = 5.0

// TrackPoint is one recorded position of a track.
type TrackPoint struct {
	Point    orb.Point
	Accuracy float64
}

// Track is an ordered list of positions replayed by the Bridge.
type Track []TrackPoint

// LoadTrack reads a GeoJSON FeatureCollection from path.
func LoadTrack(path string) (Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track %s: %w", path, err)
	}
	track, err := ParseTrack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse track %s: %w", path, err)
	}
	return track, nil
}

// ParseTrack builds a track from a GeoJSON FeatureCollection. Point,
// MultiPoint and LineString features contribute their coordinates in
// document order; other geometries are skipped. A numeric "accuracy"
// property applies to every point of its feature.
func ParseTrack(data []byte) (Track, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	var track Track
	for _, f := range fc.Features {
		accuracy := f.Properties.MustFloat64("accuracy", DefaultAccuracy)
		var points []orb.Point
		switch g := f.Geometry.(type) {
		case orb.Point:
			points = []orb.Point{g}
		case orb.MultiPoint:
			points = g
		case orb.LineString:
			points = g
		default:
			continue
		}
		for _, p := range points {
			track = append(track, TrackPoint{Point: p, Accuracy: accuracy})
		}
	}
	if len(track) == 0 {
		return nil, fmt.Errorf("track has no points")
	}
	return track, nil
}

// Length returns the track length in meters.
func (t Track) Length() float64 {
	var total float64
	for i := 1; i < len(t); i++ {
		total += geo.DistanceHaversine(t[i-1].Point, t[i].Point)
	}
	return total
}
