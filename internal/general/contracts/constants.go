package contracts

// Exchanges
const (
	ExchangeRideTopic   = "ride_topic"
	ExchangeDriverTopic = "driver_topic"
)

// Queues
const (
	QueueRideStatus   = "ride_status"
	QueueDriverOffers = "driver_offers"
)

// Routing patterns
const (
	RouteRideStatusPrefix  = "ride.status."  // {status}
	RouteDriverOfferPrefix = "driver.offer." // {driver_id}
)
