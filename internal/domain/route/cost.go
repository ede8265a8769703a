package route

import (
	"fmt"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
)

// DeriveCost returns distanceInKm * costPerKm. Both inputs must be strictly positive.
func DeriveCost(distanceInKm, costPerKm float64) (float64, error) {
	if !(distanceInKm > 0) {
		return 0, domain.NewInvalidCostInputError(fmt.Sprintf("distance must be positive, got %v", distanceInKm))
	}
	if !(costPerKm > 0) {
		return 0, domain.NewInvalidCostInputError(fmt.Sprintf("cost per km must be positive, got %v", costPerKm))
	}
	return distanceInKm * costPerKm, nil
}
