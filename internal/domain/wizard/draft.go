package wizard

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/go-playground/validator/v10"
)

// ExpenseDraft accumulates a mileage expense while the wizard runs.
type ExpenseDraft struct {
	StartLocation *route.Place         `json:"start_location"`
	EndLocation   *route.Place         `json:"end_location"`
	Waypoints     []route.Waypoint     `json:"waypoints"`
	DistanceInKm  float64              `json:"distance_in_km"`
	CostPerKm     float64              `json:"cost_per_km"`
	TotalCost     float64              `json:"total_cost"`
	RouteSnapshot *route.RouteSnapshot `json:"route_snapshot"`
	Description   string               `json:"description"`
	TripDate      *time.Time           `json:"trip_date"`
}

// Clone deep-copies the draft. The snapshot is shared since it is immutable.
func (d ExpenseDraft) Clone() ExpenseDraft {
	c := d
	c.StartLocation = d.StartLocation.Clone()
	c.EndLocation = d.EndLocation.Clone()
	c.Waypoints = route.CloneWaypoints(d.Waypoints)
	if d.TripDate != nil {
		t := *d.TripDate
		c.TripDate = &t
	}
	return c
}

// submission is the flattened shape checked before handing a draft to persistence.
type submission struct {
	StartLocation string    `json:"start_location" validate:"required"`
	EndLocation   string    `json:"end_location" validate:"required"`
	DistanceInKm  float64   `json:"distance_in_km" validate:"gt=0"`
	CostPerKm     float64   `json:"cost_per_km" validate:"gt=0"`
	RouteSnapshot string    `json:"route_snapshot" validate:"required"`
	Description   string    `json:"description" validate:"max=500"`
	TripDate      time.Time `json:"trip_date" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate returns one message per failing field. An empty map means the draft can be submitted.
func (d ExpenseDraft) Validate() map[string]string {
	s := submission{
		DistanceInKm: d.DistanceInKm,
		CostPerKm:    d.CostPerKm,
		Description:  d.Description,
	}
	if d.StartLocation.IsResolved() {
		s.StartLocation = d.StartLocation.PlaceID
	}
	if d.EndLocation.IsResolved() {
		s.EndLocation = d.EndLocation.PlaceID
	}
	if d.RouteSnapshot != nil {
		s.RouteSnapshot = d.RouteSnapshot.ID.String()
	}
	if d.TripDate != nil {
		s.TripDate = *d.TripDate
	}

	fields := make(map[string]string)
	if err := validate.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[fe.Field()] = fieldMessage(fe)
			}
		} else {
			fields["draft"] = err.Error()
		}
	}

	if d.RouteSnapshot != nil && d.DistanceInKm > 0 && d.RouteSnapshot.DistanceKm() != d.DistanceInKm {
		fields["distance_in_km"] = "does not match the calculated route"
	}
	if _, bad := fields["distance_in_km"]; !bad {
		if _, bad := fields["cost_per_km"]; !bad {
			want, err := route.DeriveCost(d.DistanceInKm, d.CostPerKm)
			if err != nil {
				fields["total_cost"] = err.Error()
			} else if d.TotalCost != want {
				fields["total_cost"] = "does not equal distance times cost per km"
			}
		}
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
