package model

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Radius bounds for a targeting geofence, in meters.
const (
	MinRadiusM = 100
	MaxRadiusM = 50000
)

// ReachDensityPerKm2 is the assumed customer density used by the reach
// estimation policy. Display-only approximation, never an input to billing
// or targeting decisions.
const ReachDensityPerKm2 = 800

var (
	ErrEmptyLocationName = errors.New("targeting location name is required")
	ErrRadiusOutOfRange  = errors.New("radius must be between 100 and 50000 meters")
	ErrInvalidLatitude   = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude  = errors.New("longitude must be between -180 and 180")
)

// TargetingLocation is a named circular geofence used to select customers
// by proximity.
type TargetingLocation struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Memo      string    `json:"memo,omitempty"`
	CenterLat float64   `json:"centerLat"`
	CenterLng float64   `json:"centerLng"`
	RadiusM   int       `json:"radiusM"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (l *TargetingLocation) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyLocationName
	}
	if l.RadiusM < MinRadiusM || l.RadiusM > MaxRadiusM {
		return ErrRadiusOutOfRange
	}
	if l.CenterLat < -90 || l.CenterLat > 90 {
		return ErrInvalidLatitude
	}
	if l.CenterLng < -180 || l.CenterLng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// CoverageAreaM2 returns the geofence area in square meters.
func (l *TargetingLocation) CoverageAreaM2() float64 {
	return CoverageAreaM2(l.RadiusM)
}

func CoverageAreaM2(radiusM int) float64 {
	r := float64(radiusM)
	return math.Pi * r * r
}

// EstimateReach is the single reach estimation policy:
// floor(coverage area in km2 x ReachDensityPerKm2).
func EstimateReach(radiusM int) int64 {
	areaKm2 := CoverageAreaM2(radiusM) / 1e6
	return int64(math.Floor(areaKm2 * ReachDensityPerKm2))
}

// TargetingLocationFilter controls List queries.
type TargetingLocationFilter struct {
	Name   *string
	Limit  int
	Offset int
	Desc   bool
}
