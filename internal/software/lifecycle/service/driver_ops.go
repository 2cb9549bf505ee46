package service

import (
	"context"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/ports"
)

// UpdateDriverStatus applies an explicit driver status change and keeps the
// candidate index in sync with availability.
func (service *lifecycleService) UpdateDriverStatus(ctx context.Context, driverID string, status driver.Status) error {
	d, err := service.loadDriver(ctx, driverID)
	if err != nil {
		return err
	}
	if err := d.SetStatus(status); err != nil {
		return err
	}

	record, err := ports.EncodeRecord(d)
	if err != nil {
		return err
	}
	if err := service.store.Update(ctx, ports.CollectionDrivers, driverID, record); err != nil {
		return err
	}

	// the candidate index mirrors availability, best-effort
	if service.selector == nil {
		service.logger.Info(ctx, "driver_status_updated", "Driver status changed", map[string]any{
			"driver_id": driverID,
			"status":    status.String(),
		})
		return nil
	}
	if d.IsAvailable && d.Location != nil {
		if err := service.selector.UpsertCandidate(ctx, driverID, *d.Location); err != nil {
			service.logger.Error(ctx, "candidate_upsert_failed", "Failed to index driver", err, map[string]any{
				"driver_id": driverID,
			})
		}
	} else {
		if err := service.selector.RemoveCandidate(ctx, driverID); err != nil {
			service.logger.Error(ctx, "candidate_remove_failed", "Failed to drop driver from index", err, map[string]any{
				"driver_id": driverID,
			})
		}
	}

	service.logger.Info(ctx, "driver_status_updated", "Driver status changed", map[string]any{
		"driver_id": driverID,
		"status":    status.String(),
	})
	return nil
}

// UpdateDriverLocation stores the latest reported position. The stream is
// best-effort: updates may be dropped or overwritten without ordering
// guarantees, so this path never participates in ride transactions.
func (service *lifecycleService) UpdateDriverLocation(ctx context.Context, driverID string, location geo.Coordinates) error {
	if err := location.Validate(); err != nil {
		return err
	}

	d, err := service.loadDriver(ctx, driverID)
	if err != nil {
		return err
	}
	d.UpdateLocation(location)

	record, err := ports.EncodeRecord(d)
	if err != nil {
		return err
	}
	if err := service.store.Update(ctx, ports.CollectionDrivers, driverID, record); err != nil {
		return err
	}

	if d.IsAvailable && service.selector != nil {
		if err := service.selector.UpsertCandidate(ctx, driverID, location); err != nil {
			service.logger.Error(ctx, "candidate_upsert_failed", "Failed to index driver", err, map[string]any{
				"driver_id": driverID,
			})
		}
	}
	return nil
}
