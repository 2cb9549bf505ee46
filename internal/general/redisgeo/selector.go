// Package redisgeo implements candidate selection on Redis GEO commands.
// The index is best-effort by contract: it is fed by the driver location
// stream and never participates in ride transactions, so losing it costs
// fan-out quality, not correctness.
package redisgeo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/ports"
)

const defaultKey = "drivers_geo"

// Selector is a Redis-GEO-backed ports.CandidateSelector.
type Selector struct {
	client *redis.Client
	key    string
}

var _ ports.CandidateSelector = (*Selector)(nil)

// New creates a selector on an existing Redis client. An empty key uses the
// default index name.
func New(client *redis.Client, key string) *Selector {
	if key == "" {
		key = defaultKey
	}
	return &Selector{client: client, key: key}
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// UpsertCandidate records a driver's latest position in the index.
func (selector *Selector) UpsertCandidate(ctx context.Context, driverID string, at geo.Coordinates) error {
	return selector.client.GeoAdd(ctx, selector.key, &redis.GeoLocation{
		Name:      driverID,
		Latitude:  at.Lat,
		Longitude: at.Lng,
	}).Err()
}

// RemoveCandidate drops a driver from the index.
func (selector *Selector) RemoveCandidate(ctx context.Context, driverID string) error {
	return selector.client.ZRem(ctx, selector.key, driverID).Err()
}

// Nearby returns up to limit driver ids within radiusKM of at, closest first.
func (selector *Selector) Nearby(ctx context.Context, at geo.Coordinates, radiusKM float64, limit int) ([]string, error) {
	locations, err := selector.client.GeoSearchLocation(ctx, selector.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   at.Lat,
			Longitude:  at.Lng,
			Radius:     radiusKM,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
	}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(locations))
	for _, location := range locations {
		ids = append(ids, location.Name)
	}
	return ids, nil
}
