package route

import (
	"strings"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
)

// DistanceUnit is the unit tag an upstream service may attach to a distance.
type DistanceUnit string

const (
	UnitUnknown    DistanceUnit = ""
	UnitMeters     DistanceUnit = "m"
	UnitKilometers DistanceUnit = "km"
)

// ParseDistanceUnit accepts the spellings seen from routing backends. Unrecognized values are UnitUnknown.
func ParseDistanceUnit(s string) DistanceUnit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "meter", "meters", "metre", "metres":
		return UnitMeters
	case "km", "kilometer", "kilometers", "kilometre", "kilometres":
		return UnitKilometers
	default:
		return UnitUnknown
	}
}

// metersThreshold is the raw value above which an untagged distance is read as meters.
const metersThreshold = 1000.0

// NormalizeDistance converts an untagged upstream distance to kilometers.
// Values above 1000 are taken as meters, anything else as kilometers. A non-positive
// result is an InvalidDistance error.
func NormalizeDistance(rawValue float64) (float64, error) {
	km := rawValue
	if rawValue > metersThreshold {
		km = rawValue / 1000
	}
	if !(km > 0) {
		return 0, domain.NewInvalidDistanceError(rawValue)
	}
	return km, nil
}

// NormalizeDistanceWithUnit prefers an explicit unit tag and only falls back to the
// threshold heuristic when the tag is missing. heuristic reports which path was taken.
func NormalizeDistanceWithUnit(rawValue float64, unit DistanceUnit) (km float64, heuristic bool, err error) {
	switch unit {
	case UnitMeters:
		km = rawValue / 1000
	case UnitKilometers:
		km = rawValue
	default:
		km, err = NormalizeDistance(rawValue)
		return km, true, err
	}
	if !(km > 0) {
		return 0, false, domain.NewInvalidDistanceError(rawValue)
	}
	return km, false, nil
}
