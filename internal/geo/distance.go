package geo

import (
	"math"
	"strconv"
)

// UnknownDistance is returned when no estimate is possible. It sorts after every real
// distance.
const UnknownDistance = 9999.0

const earthRadiusMiles = 3958.8

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HaversineMiles returns the great-circle distance between a and b.
func HaversineMiles(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}

// EstimateZIPDistance is a coarse estimate from ZIP prefixes, used when geocoding is
// unavailable: 500 miles per first-digit step plus 10 miles per step of the three-digit
// sectional prefix, capped at UnknownDistance.
func EstimateZIPDistance(zip1, zip2 string) float64 {
	z1, z2 := NormalizeZIP(zip1), NormalizeZIP(zip2)
	if len(z1) < 3 || len(z2) < 3 {
		return UnknownDistance
	}

	p1, err1 := strconv.Atoi(z1[:3])
	p2, err2 := strconv.Atoi(z2[:3])
	if err1 != nil || err2 != nil {
		return UnknownDistance
	}

	firstDigit := math.Abs(float64(p1/100-p2/100)) * 500
	prefix := math.Abs(float64(p1-p2)) * 10
	return math.Min(firstDigit+prefix, UnknownDistance)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
