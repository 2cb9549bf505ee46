package service

import (
	"context"
	"time"

	"ride-dispatch/internal/domain/pricing"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// EarningsFor sums a driver's completed fares over the day, week (Sunday
// start) and calendar month containing now. A failed query degrades to an
// all-zeros summary so driver dashboards render instead of erroring.
func (service *earningsService) EarningsFor(ctx context.Context, driverID string, now time.Time) (ports.EarningsSummary, error) {
	summary := ports.EarningsSummary{Currency: pricing.DefaultCurrency}

	day := dayStart(now)
	week := weekStart(now)
	month := monthStart(now)

	// the week window can reach into the previous month
	since := month
	if week.Before(since) {
		since = week
	}

	records, err := service.store.Query(ctx, ports.CollectionOrders, []ports.Filter{
		ports.Eq("driver_id", driverID),
		ports.Eq("status", ride.StatusCompleted.String()),
		{Field: "completed_at", Op: ports.OpGe, Value: since},
	}, nil, 0)
	if err != nil {
		service.logger.Error(ctx, "earnings_query_failed", "Failed to load completed orders, reporting zeros", err, map[string]any{
			"driver_id": driverID,
		})
		return summary, nil
	}

	for _, order := range service.decodeOrders(ctx, records) {
		if order.CompletedAt == nil {
			continue
		}
		completed := order.CompletedAt.UTC()
		fare := order.Pricing.Total
		if !completed.Before(day) {
			summary.Today += fare
		}
		if !completed.Before(week) {
			summary.Week += fare
		}
		if !completed.Before(month) {
			summary.Month += fare
		}
	}

	summary.Today = pricing.Round2(summary.Today)
	summary.Week = pricing.Round2(summary.Week)
	summary.Month = pricing.Round2(summary.Month)
	return summary, nil
}
