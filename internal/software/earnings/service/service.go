package service

import (
	"context"
	"sort"
	"time"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"
)

// defaultHistoryLimit bounds history pages when the caller passes none.
const defaultHistoryLimit = 20

// earningsService derives read-only projections over terminal orders. It
// holds no state of its own; everything is recomputed from the order log.
type earningsService struct {
	logger *logger.Logger
	store  ports.Store
}

// NewEarningsService creates the earnings and history read side.
func NewEarningsService(logger *logger.Logger, store ports.Store) ports.EarningsService {
	return &earningsService{logger: logger, store: store}
}

// decodeOrders turns raw records into orders, dropping undecodable ones.
func (service *earningsService) decodeOrders(ctx context.Context, records []ports.Record) []*ride.Order {
	orders := make([]*ride.Order, 0, len(records))
	for _, record := range records {
		var order ride.Order
		if err := ports.DecodeRecord(record, &order); err != nil {
			service.logger.Error(ctx, "order_decode_failed", "Skipping malformed order record", err, map[string]any{
				"order_id": record.ID(),
			})
			continue
		}
		orders = append(orders, &order)
	}
	return orders
}

// sortNewestFirst orders by last activity, most recent first.
func sortNewestFirst(orders []*ride.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].UpdatedAt.After(orders[j].UpdatedAt)
	})
}

// dayStart truncates an instant to UTC midnight.
func dayStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart returns the preceding Sunday's UTC midnight.
func weekStart(now time.Time) time.Time {
	day := dayStart(now)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// monthStart returns the first of the month, UTC midnight.
func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
