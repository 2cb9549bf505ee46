package service

import (
	"context"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// HistoryForDriver returns the driver's terminal orders, newest first.
func (service *earningsService) HistoryForDriver(ctx context.Context, driverID string, limit int) ([]*ride.Order, error) {
	return service.history(ctx, ports.Eq("driver_id", driverID), limit)
}

// HistoryForCustomer returns the customer's terminal orders, newest first.
func (service *earningsService) HistoryForCustomer(ctx context.Context, customerID string, limit int) ([]*ride.Order, error) {
	return service.history(ctx, ports.Eq("customer_id", customerID), limit)
}

func (service *earningsService) history(ctx context.Context, owner ports.Filter, limit int) ([]*ride.Order, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	records, err := service.store.Query(ctx, ports.CollectionOrders, []ports.Filter{
		owner,
		{Field: "status", Op: ports.OpIn, Value: []string{
			ride.StatusCompleted.String(),
			ride.StatusCancelled.String(),
		}},
	}, &ports.OrderBy{Field: "updated_at", Desc: true}, limit)
	if err != nil {
		return nil, err
	}

	orders := service.decodeOrders(ctx, records)
	sortNewestFirst(orders)
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}
