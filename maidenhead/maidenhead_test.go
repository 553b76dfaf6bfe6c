package maidenhead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLatLon(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		grid string
		lat  float64
		lon  float64
	}{
		{"EM19es", 39.750, -97.667},
		{"EM19", 39.0, -98.0},
		{"FN31pr", 41.708, -72.750},
		{"em19es", 39.750, -97.667},
		{"EM19es99", 39.750, -97.667}, // extended grids truncated to 6
		{"AA00aa", -90.0, -180.0},
		{"RR99xx", 89.958, 179.917},
		{"JO01", 51.0, 0.0},
	}

	for _, test := range tests {
		lat, lon, err := ToLatLon(test.grid)
		require.NoError(err, test.grid)
		require.InDelta(test.lat, lat, 0.0005, "lat of %s", test.grid)
		require.InDelta(test.lon, lon, 0.0005, "lon of %s", test.grid)
	}
}

func TestToLatLon_Invalid(t *testing.T) {
	assert := assert.New(t)

	for _, grid := range []string{"", "EM1", "EM19e", "1M19", "EZ19", "EMX9", "EM1Z", "EM19zz", "EM19e$"} {
		_, _, err := ToLatLon(grid)
		assert.ErrorIs(err, ErrInvalidGrid, "grid %q", grid)
	}
}

func TestDistance(t *testing.T) {
	require := require.New(t)

	t.Run("same grid", func(t *testing.T) {
		km, err := Distance("EM19", "EM19")
		require.NoError(err)
		require.Equal(0, km)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		// EN10 is directly north of EM19
		km, err := Distance("EM19", "EN10")
		require.NoError(err)
		require.Equal(111, km)

		mi, err := DistanceMiles("EM19", "EN10")
		require.NoError(err)
		require.Equal(69, mi)
	})

	t.Run("along a parallel", func(t *testing.T) {
		// EM29 is two degrees of longitude east of EM19
		km, err := Distance("EM19", "EM29")
		require.NoError(err)
		require.InDelta(173, km, 1)
	})

	t.Run("symmetric", func(t *testing.T) {
		ab, err := Distance("EM19es", "FN31pr")
		require.NoError(err)
		ba, err := Distance("FN31pr", "EM19es")
		require.NoError(err)
		require.Equal(ab, ba)
		require.Greater(ab, 1500)
		require.Less(ab, 2500)
	})

	t.Run("invalid grid", func(t *testing.T) {
		_, err := Distance("EM19", "bogus")
		require.ErrorIs(err, ErrInvalidGrid)
		_, err = DistanceMiles("nope", "EM19")
		require.ErrorIs(err, ErrInvalidGrid)
	})
}

func TestBearing(t *testing.T) {
	require := require.New(t)

	t.Run("due north", func(t *testing.T) {
		bearing, err := Bearing("EM19", "EN10")
		require.NoError(err)
		require.Equal(0, bearing)
	})

	t.Run("due south", func(t *testing.T) {
		bearing, err := Bearing("EN10", "EM19")
		require.NoError(err)
		require.Equal(180, bearing)
	})

	t.Run("roughly east", func(t *testing.T) {
		bearing, err := Bearing("EM19", "EM29")
		require.NoError(err)
		require.InDelta(89, bearing, 1)
	})

	t.Run("roughly west", func(t *testing.T) {
		bearing, err := Bearing("EM29", "EM19")
		require.NoError(err)
		require.InDelta(271, bearing, 1)
	})

	t.Run("invalid grid", func(t *testing.T) {
		_, err := Bearing("EM19", "")
		require.ErrorIs(err, ErrInvalidGrid)
	})
}
