package domain

import (
	"context"
	"errors"
	"math"
	"regexp"
)

// cityCodeRe matches a 7-digit IBGE municipality code, e.g. "3509502" (Campinas).
var cityCodeRe = regexp.MustCompile(`^\d{7}$`)

// City is a monitored municipality and its representative point.
type City struct {
	Code      string  `json:"code" yaml:"code"`
	Name      string  `json:"name,omitempty" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// HasCoordinates reports whether a representative point is known.
func (c City) HasCoordinates() bool {
	return c.Latitude != 0 || c.Longitude != 0
}

// CityResolver looks up municipality details by code.
type CityResolver interface {
	// LookupCity returns ErrUnknownCity when the code does not exist upstream.
	LookupCity(ctx context.Context, code string) (City, error)
}

// ValidateCityCode returns a ConfigurationError for codes that are not 7-digit
// IBGE municipality codes.
func ValidateCityCode(code string) error {
	if !cityCodeRe.MatchString(code) {
		return &ConfigurationError{Field: "city code", Value: code, Err: errors.New("expected a 7-digit IBGE municipality code")}
	}
	return nil
}

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// DistanceKm returns the haversine distance in kilometres between two WGS-84 points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
