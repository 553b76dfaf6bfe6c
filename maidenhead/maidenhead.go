// Package maidenhead converts Maidenhead grid squares to coordinates and
// calculates great-circle distance and bearing between grid squares.
//
// Grid squares must be 4 or 6 characters (ex. EM19 or EM19es). Longer grids
// are truncated to 6 characters. Conversion returns the south-west corner
// of the grid square.
package maidenhead

import (
	"errors"
	"math"
	"strings"
)

// Earth radii used for great-circle distance calculations.
const (
	EarthRadiusKm    = 6371
	EarthRadiusMiles = 3958.756
)

// ErrInvalidGrid indicates that a grid square is not a valid 4 or 6
// character Maidenhead locator.
var ErrInvalidGrid = errors.New("invalid grid square, must be 4 or 6 characters (ex. EM19 or EM19es)")

const (
	fieldLonDeg     = 20.0
	fieldLatDeg     = 10.0
	squareLonDeg    = 2.0
	squareLatDeg    = 1.0
	subSquareLonDeg = 1.0 / 12.0
	subSquareLatDeg = 1.0 / 24.0
)

// ToLatLon converts a grid square to the latitude/longitude of its
// south-west corner, rounded to 3 decimal places.
//
// The grid must be 4 or 6 characters; longer grids are truncated to 6
// characters. Matching is case-insensitive.
func ToLatLon(grid string) (lat float64, lon float64, err error) {
	if len(grid) > 6 {
		grid = grid[:6]
	}

	if len(grid) != 4 && len(grid) != 6 {
		return 0, 0, ErrInvalidGrid
	}

	grid = strings.ToUpper(grid)

	lonField, lonSquare, lonSub := grid[0], grid[2], byte(0)
	latField, latSquare, latSub := grid[1], grid[3], byte(0)
	if len(grid) == 6 {
		lonSub = grid[4]
		latSub = grid[5]
	}

	if lonField < 'A' || lonField > 'R' || latField < 'A' || latField > 'R' {
		return 0, 0, ErrInvalidGrid
	}
	if lonSquare < '0' || lonSquare > '9' || latSquare < '0' || latSquare > '9' {
		return 0, 0, ErrInvalidGrid
	}

	lon = float64(lonField-'A')*fieldLonDeg + float64(lonSquare-'0')*squareLonDeg
	lat = float64(latField-'A')*fieldLatDeg + float64(latSquare-'0')*squareLatDeg

	if len(grid) == 6 {
		if lonSub < 'A' || lonSub > 'X' || latSub < 'A' || latSub > 'X' {
			return 0, 0, ErrInvalidGrid
		}

		lon += float64(lonSub-'A') * subSquareLonDeg
		lat += float64(latSub-'A') * subSquareLatDeg
	}

	lon -= 180
	lat -= 90

	return round3(lat), round3(lon), nil
}

// Distance returns the great-circle distance between two grid squares in
// kilometers, rounded to the nearest integer.
func Distance(gridA, gridB string) (int, error) {
	gcd, err := centralAngle(gridA, gridB)
	if err != nil {
		return 0, err
	}

	return int(math.Round(EarthRadiusKm * gcd)), nil
}

// DistanceMiles returns the great-circle distance between two grid squares
// in statute miles, rounded to the nearest integer.
func DistanceMiles(gridA, gridB string) (int, error) {
	gcd, err := centralAngle(gridA, gridB)
	if err != nil {
		return 0, err
	}

	return int(math.Round(EarthRadiusMiles * gcd)), nil
}

// Bearing returns the initial great-circle bearing in degrees from gridFrom
// toward gridTo, rounded to the nearest integer.
func Bearing(gridFrom, gridTo string) (int, error) {
	latFrom, lonFrom, err := toRadians(gridFrom)
	if err != nil {
		return 0, err
	}
	latTo, lonTo, err := toRadians(gridTo)
	if err != nil {
		return 0, err
	}

	y := math.Sin(lonTo-lonFrom) * math.Cos(latTo)
	x := math.Cos(latFrom)*math.Sin(latTo) - math.Sin(latFrom)*math.Cos(latTo)*math.Cos(lonTo-lonFrom)
	angle := math.Atan2(y, x)
	bearing := math.Mod(angle*180/math.Pi+360, 360)

	return int(math.Round(bearing)), nil
}

// centralAngle returns the central angle between two grid squares in
// radians using the spherical law of cosines.
func centralAngle(gridA, gridB string) (float64, error) {
	latA, lonA, err := toRadians(gridA)
	if err != nil {
		return 0, err
	}
	latB, lonB, err := toRadians(gridB)
	if err != nil {
		return 0, err
	}

	cosine := math.Sin(latA)*math.Sin(latB) + math.Cos(latA)*math.Cos(latB)*math.Cos(lonB-lonA)

	// guard against floating point drift outside acos domain for identical
	// or antipodal points
	cosine = math.Max(-1, math.Min(1, cosine))

	return math.Acos(cosine), nil
}

func toRadians(grid string) (lat float64, lon float64, err error) {
	lat, lon, err = ToLatLon(grid)
	if err != nil {
		return 0, 0, err
	}

	return lat * math.Pi / 180, lon * math.Pi / 180, nil
}

func round3(val float64) float64 {
	return math.Round(val*1000) / 1000
}
