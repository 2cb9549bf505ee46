package ride

import "errors"

// Sentinel errors shared by the lifecycle engine and dispatch arbitration.
// Every engine operation returns the expected value or exactly one of these
// kinds (store failures propagate wrapped and are retryable by the caller).
var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrRequestNotFound  = errors.New("ride request not found")
	ErrOfferNotFound    = errors.New("ride offer not found")
	ErrOrderNotFound    = errors.New("ride order not found")

	// ErrInvalidTransition is a state-machine violation: the target entity is
	// not in a status that permits the requested operation.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOfferAlreadyResolved means the caller lost a dispatch race; an
	// expected, non-fatal outcome ("ride no longer available").
	ErrOfferAlreadyResolved = errors.New("offer already resolved")

	// ErrDriverMismatch means the calling driver does not own the target
	// order or offer.
	ErrDriverMismatch = errors.New("driver does not own this ride")

	// ErrCustomerMismatch means the calling rider does not own the target
	// request or order.
	ErrCustomerMismatch = errors.New("customer does not own this ride")
)
