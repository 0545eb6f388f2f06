package model

import "math"

const earthRadiusM = 6371000.0

// DistanceM returns the haversine great-circle distance between two
// coordinates, in meters.
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBox returns the lat/lng rectangle enclosing a circle of radiusM
// around the center. Used as a cheap SQL prefilter before the exact
// haversine check.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func BoundingBoxFor(lat, lng float64, radiusM int) BoundingBox {
	dLat := float64(radiusM) / earthRadiusM * 180 / math.Pi
	// cos(lat) vanishes at the poles; widen to the full longitude range there
	// instead of dividing towards infinity.
	dLng := 180.0
	if cosLat := math.Cos(lat * math.Pi / 180); cosLat > 0 {
		if d := dLat / cosLat; d < 180 {
			dLng = d
		}
	}
	return BoundingBox{
		MinLat: lat - dLat,
		MaxLat: lat + dLat,
		MinLng: lng - dLng,
		MaxLng: lng + dLng,
	}
}
