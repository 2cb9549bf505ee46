package service

import (
	"context"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
	"ride-dispatch/internal/ports"
)

// baseWaitMinutes is the per-tier pickup wait shown in estimates. Premium
// cars are the scarcest, so they carry the longest wait.
var baseWaitMinutes = map[pricing.ServiceType]int{
	pricing.ServiceEconomy:  5,
	pricing.ServiceStandard: 7,
	pricing.ServicePremium:  10,
}

// GetRideEstimates quotes all three tiers for a pickup/destination pair
// without persisting anything.
func (service *lifecycleService) GetRideEstimates(ctx context.Context, pickup, destination geo.Location) ([]ports.RideEstimate, error) {
	if err := pickup.Validate(); err != nil {
		return nil, err
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}

	distance := geo.DistanceKM(pickup.Coordinates, destination.Coordinates)

	// tier availability follows supply: any available driver means all tiers
	// are quotable. A failed count degrades to unavailable, never to an error.
	available := false
	drivers, err := service.store.Query(ctx, ports.CollectionDrivers,
		[]ports.Filter{ports.Eq("is_available", true)}, nil, 1)
	if err != nil {
		service.logger.Error(ctx, "estimate_supply_check_failed", "Failed to count available drivers", err, nil)
	} else {
		available = len(drivers) > 0
	}

	estimates := make([]ports.RideEstimate, 0, 3)
	for _, tier := range []pricing.ServiceType{pricing.ServiceEconomy, pricing.ServiceStandard, pricing.ServicePremium} {
		wait := 0
		if available {
			wait = baseWaitMinutes[tier]
		}
		estimates = append(estimates, ports.RideEstimate{
			ServiceType:      tier,
			Pricing:          pricing.PriceFor(distance, tier),
			EstimatedWaitMin: wait,
			Available:        available,
		})
	}
	return estimates, nil
}
