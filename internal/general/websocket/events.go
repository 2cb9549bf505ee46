package websocket

import (
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/contracts"
	"ride-dispatch/internal/ports"
)

// Record-to-frame conversion. A record that fails to decode yields a nil
// frame and is skipped; a malformed row must never kill a feed.

func riderRequestFrame(record ports.Record) *contracts.WSRiderRequestUpdate {
	var request ride.Request
	if err := ports.DecodeRecord(record, &request); err != nil {
		return nil
	}
	return &contracts.WSRiderRequestUpdate{
		Type:      "ride_request_update",
		RequestID: request.ID,
		Status:    request.EffectiveStatus(time.Now().UTC()).String(),
		Timestamp: time.Now().UTC(),
	}
}

func riderOrderFrame(record ports.Record) *contracts.WSRiderOrderUpdate {
	var order ride.Order
	if err := ports.DecodeRecord(record, &order); err != nil {
		return nil
	}
	return &contracts.WSRiderOrderUpdate{
		Type:       "ride_status_update",
		OrderID:    order.ID,
		RideID:     order.RequestID,
		Status:     order.Status.String(),
		DriverInfo: driverBrief(order.Driver),
		Timestamp:  order.UpdatedAt,
	}
}

func driverOfferFrame(record ports.Record) *contracts.WSDriverRideOffer {
	var offer ride.Offer
	if err := ports.DecodeRecord(record, &offer); err != nil {
		return nil
	}
	return &contracts.WSDriverRideOffer{
		Type:             "ride_offer",
		OfferID:          offer.ID,
		RideID:           offer.RideID,
		Pickup:           geoPoint(offer.Pickup),
		Destination:      geoPoint(offer.Destination),
		EstimatedFare:    offer.Pricing.Total,
		EstimatedRideMin: offer.EstimatedDuration,
	}
}

func driverOrderFrame(record ports.Record) *contracts.WSDriverOrderUpdate {
	var order ride.Order
	if err := ports.DecodeRecord(record, &order); err != nil {
		return nil
	}
	return &contracts.WSDriverOrderUpdate{
		Type:      "order_status_update",
		OrderID:   order.ID,
		RideID:    order.RequestID,
		Status:    order.Status.String(),
		Timestamp: order.UpdatedAt,
	}
}

func geoPoint(location geo.Location) contracts.GeoPoint {
	return contracts.GeoPoint{
		Lat:     location.Coordinates.Lat,
		Lng:     location.Coordinates.Lng,
		Address: location.Address,
	}
}

func driverBrief(info ride.DriverInfo) *contracts.DriverBrief {
	if info.ID == "" {
		return nil
	}
	brief := &contracts.DriverBrief{
		DriverID: info.ID,
		Name:     info.Name,
		Rating:   info.Rating,
	}
	if info.Vehicle != (ride.Vehicle{}) {
		brief.Vehicle = &contracts.VehicleInfo{
			Make:  info.Vehicle.Make,
			Model: info.Vehicle.Model,
			Color: info.Vehicle.Color,
			Plate: info.Vehicle.Plate,
		}
	}
	return brief
}
