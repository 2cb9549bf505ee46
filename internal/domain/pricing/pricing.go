package pricing

import (
	"errors"
	"math"
	"strings"
)

// ServiceType is the pricing class a rider selects when requesting a ride.
type ServiceType string

const (
	ServiceEconomy  ServiceType = "economy"
	ServiceStandard ServiceType = "standard"
	ServicePremium  ServiceType = "premium"
)

// PaymentMethod is how the rider intends to pay.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
)

var (
	ErrInvalidServiceType   = errors.New("invalid service type")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// DefaultCurrency is used for every fare until multi-currency support lands.
const DefaultCurrency = "USD"

// ParseServiceType normalizes (lowercases+trims) and validates a service type string.
func ParseServiceType(in string) (ServiceType, error) {
	serviceType := ServiceType(strings.ToLower(strings.TrimSpace(in)))
	if serviceType.Valid() {
		return serviceType, nil
	}
	return "", ErrInvalidServiceType
}

// Valid reports whether the service type is one of the allowed constants.
func (serviceType ServiceType) Valid() bool {
	switch serviceType {
	case ServiceEconomy, ServiceStandard, ServicePremium:
		return true
	default:
		return false
	}
}

// String returns the string representation of the ServiceType.
func (serviceType ServiceType) String() string {
	return string(serviceType)
}

// ParsePaymentMethod normalizes and validates a payment method string.
func ParsePaymentMethod(in string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(in)))
	if method.Valid() {
		return method, nil
	}
	return "", ErrInvalidPaymentMethod
}

// Valid reports whether the payment method is one of the allowed constants.
func (method PaymentMethod) Valid() bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentWallet:
		return true
	default:
		return false
	}
}

// String returns the string representation of the PaymentMethod.
func (method PaymentMethod) String() string {
	return string(method)
}

// Pricing is the full fare breakdown computed once at request time and frozen
// for the life of the ride. TimeFare, Surcharge and Discount are extension
// hooks and stay zero in the base tariff.
type Pricing struct {
	BaseFare             float64 `json:"base_fare"`
	DistanceFare         float64 `json:"distance_fare"`
	TimeFare             float64 `json:"time_fare"`
	Surcharge            float64 `json:"surcharge"`
	Discount             float64 `json:"discount"`
	Total                float64 `json:"total"`
	Currency             string  `json:"currency"`
	EstimatedDistanceKM  float64 `json:"estimated_distance_km"`
	EstimatedDurationMin int     `json:"estimated_duration_min"`
}

// rate holds the fixed per-tier tariff constants.
type rate struct {
	baseFare   float64
	pricePerKM float64
}

var rates = map[ServiceType]rate{
	ServiceEconomy:  {baseFare: 1.5, pricePerKM: 0.5},
	ServiceStandard: {baseFare: 2.0, pricePerKM: 0.7},
	ServicePremium:  {baseFare: 3.0, pricePerKM: 1.0},
}

// PriceFor computes the fare breakdown for a trip of the given distance and
// tier. Deterministic; a zero-distance trip prices at the base fare.
func PriceFor(distanceKM float64, serviceType ServiceType) Pricing {
	if distanceKM < 0 {
		distanceKM = 0
	}

	tariff, ok := rates[serviceType]
	if !ok {
		tariff = rates[ServiceStandard]
	}

	pricing := Pricing{
		BaseFare:             tariff.baseFare,
		DistanceFare:         Round2(distanceKM * tariff.pricePerKM),
		Currency:             DefaultCurrency,
		EstimatedDistanceKM:  distanceKM,
		EstimatedDurationMin: EstimateDurationMinutes(distanceKM),
	}
	pricing.Total = Round2(pricing.BaseFare + pricing.DistanceFare + pricing.TimeFare + pricing.Surcharge - pricing.Discount)
	return pricing
}

// EstimateDurationMinutes converts a trip distance into a rough duration.
func EstimateDurationMinutes(distanceKM float64) int {
	if distanceKM <= 0 {
		return 0
	}
	return int(math.Ceil(distanceKM * 2))
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}
