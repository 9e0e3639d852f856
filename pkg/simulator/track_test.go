package simulator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrack = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"accuracy": 12},
     "geometry": {"type": "LineString", "coordinates": [[-122.0, 37.0], [-122.0, 37.001]]}},
    {"type": "Feature", "properties": {"name": "poi"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Point", "coordinates": [-122.0, 37.002]}}
  ]
}`

func TestParseTrack(t *testing.T) {
	track, err := ParseTrack([]byte(sampleTrack))
	require.NoError(t, err)
	require.Len(t, track, 3)

	assert.Equal(t, 37.0, track[0].Point.Lat())
	assert.Equal(t, -122.0, track[0].Point.Lon())
	assert.Equal(t, 12.0, track[1].Accuracy)
	assert.Equal(t, DefaultAccuracy, track[2].Accuracy)
	assert.InDelta(t, 222.6, track.Length(), 0.5)
}

func TestParseTrackErrors(t *testing.T) {
	_, err := ParseTrack([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseTrack([]byte(`{"type": "FeatureCollection", "features": []}`))
	assert.Error(t, err)
}

func TestLoadTrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleTrack), 0o644))

	track, err := LoadTrack(path)
	require.NoError(t, err)
	assert.Len(t, track, 3)

	_, err = LoadTrack(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}
