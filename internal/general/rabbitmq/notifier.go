package rabbitmq

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/contracts"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"
)

// Notifier publishes lifecycle notifications to RabbitMQ. Strictly
// fire-and-forget: publish failures are logged and swallowed so state
// transitions are never blocked on the broker.
type Notifier struct {
	logger   *logger.Logger
	pub      *Publisher
	producer string
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier creates an MQ-backed notifier tagged with a producer name.
func NewNotifier(logger *logger.Logger, pub *Publisher, producer string) *Notifier {
	return &Notifier{logger: logger, pub: pub, producer: producer}
}

// OfferCreated publishes "driver.offer.{driver_id}" on the driver topic.
func (notifier *Notifier) OfferCreated(ctx context.Context, offer *ride.Offer) {
	msg := contracts.RideOfferMessage{
		OfferID:             offer.ID,
		RideID:              offer.RideID,
		DriverID:            offer.DriverID,
		Pickup:              toGeoPoint(offer.Pickup),
		Destination:         toGeoPoint(offer.Destination),
		EstimatedFare:       offer.Pricing.Total,
		EstimatedDistanceKM: offer.EstimatedDistanceKM,
		EstimatedRideMin:    offer.EstimatedDuration,
		Envelope:            notifier.envelope(),
	}
	notifier.publish(ctx, contracts.ExchangeDriverTopic,
		contracts.RouteDriverOfferPrefix+offer.DriverID, msg, "offer_published")
}

// OfferAccepted publishes the assigned transition of the new order.
func (notifier *Notifier) OfferAccepted(ctx context.Context, order *ride.Order) {
	notifier.publishOrderStatus(ctx, order, "")
}

// RideStatusChanged publishes each order transition on the ride topic.
func (notifier *Notifier) RideStatusChanged(ctx context.Context, order *ride.Order, _ ride.Status) {
	notifier.publishOrderStatus(ctx, order, "")
}

// RideCompleted publishes the completed transition with the final fare.
func (notifier *Notifier) RideCompleted(ctx context.Context, order *ride.Order) {
	notifier.publishOrderStatus(ctx, order, "")
}

// RideCancelled publishes the cancelled transition with its reason.
func (notifier *Notifier) RideCancelled(ctx context.Context, order *ride.Order, reason string) {
	notifier.publishOrderStatus(ctx, order, reason)
}

func (notifier *Notifier) publishOrderStatus(ctx context.Context, order *ride.Order, reason string) {
	msg := contracts.RideStatusMessage{
		OrderID:    order.ID,
		RideID:     order.RequestID,
		CustomerID: order.CustomerID,
		Status:     order.Status.String(),
		Timestamp:  order.UpdatedAt,
		DriverInfo: toDriverBrief(order.Driver),
		Reason:     reason,
		Envelope:   notifier.envelope(),
	}
	if order.Status == ride.StatusCompleted {
		fare := order.Pricing.Total
		msg.FinalFare = &fare
	}

	routingKey := contracts.RouteRideStatusPrefix + strings.ToLower(order.Status.String())
	notifier.publish(ctx, contracts.ExchangeRideTopic, routingKey, msg, "ride_status_published")
}

func (notifier *Notifier) publish(ctx context.Context, exchange, routingKey string, msg any, action string) {
	body, err := json.Marshal(msg)
	if err != nil {
		notifier.logger.Error(ctx, action+"_marshal_failed", "Failed to encode notification", err, map[string]any{
			"routing_key": routingKey,
		})
		return
	}
	if err := notifier.pub.Publish(exchange, routingKey, body); err != nil {
		notifier.logger.Error(ctx, action+"_failed", "Failed to publish notification", err, map[string]any{
			"routing_key": routingKey,
		})
		return
	}
	notifier.logger.Debug(ctx, action, "Notification published", map[string]any{
		"routing_key": routingKey,
	})
}

func (notifier *Notifier) envelope() contracts.Envelope {
	return contracts.Envelope{
		Producer: notifier.producer,
		SentAt:   time.Now().UTC(),
	}
}

func toGeoPoint(location geo.Location) contracts.GeoPoint {
	return contracts.GeoPoint{
		Lat:     location.Coordinates.Lat,
		Lng:     location.Coordinates.Lng,
		Address: location.Address,
	}
}

func toDriverBrief(info ride.DriverInfo) *contracts.DriverBrief {
	if info.ID == "" {
		return nil
	}
	return &contracts.DriverBrief{
		DriverID: info.ID,
		Name:     info.Name,
		Rating:   info.Rating,
		Vehicle: &contracts.VehicleInfo{
			Make:  info.Vehicle.Make,
			Model: info.Vehicle.Model,
			Color: info.Vehicle.Color,
			Plate: info.Vehicle.Plate,
		},
	}
}
