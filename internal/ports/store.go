package ports

import (
	"context"
	"errors"
)

// Collection names used by the engine. Any store implementation must treat
// them as independent namespaces of records.
const (
	CollectionCustomers = "customers"
	CollectionDrivers   = "drivers"
	CollectionRequests  = "ride_requests"
	CollectionOffers    = "ride_offers"
	CollectionOrders    = "ride_orders"
)

// Record is one JSON-shaped document as stored. The "id" field always holds
// the record identity.
type Record map[string]any

// ID returns the record identity, if present.
func (record Record) ID() string {
	id, _ := record["id"].(string)
	return id
}

// FilterOp is a comparison operator applied to one record field.
type FilterOp string

const (
	OpEq FilterOp = "=="
	OpIn FilterOp = "in" // value must be a []string
	OpGe FilterOp = ">="
	OpLe FilterOp = "<="
)

// Filter restricts a query or subscription to records whose field satisfies
// the comparison. Filters on a query are ANDed.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Eq is shorthand for an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// OrderBy sorts query results by one field.
type OrderBy struct {
	Field string
	Desc  bool
}

// Condition is a precondition on a batch operation's target record, checked
// atomically at commit time. Only field equality is needed: acceptance races
// are decided by comparing status fields inside the commit.
type Condition struct {
	Field  string
	Equals any
}

// BatchOp is one operation of an atomic multi-record commit. Exactly one of
// Insert or Patch must be set. Require lists preconditions on the target
// record; a failed required precondition aborts the whole batch with
// ErrConflict unless Optional is set, in which case the single op is skipped
// and the rest of the batch proceeds.
type BatchOp struct {
	Collection string
	ID         string
	Insert     Record // create; fails the batch if the id already exists
	Patch      Record // shallow field merge into the existing record
	Require    []Condition
	Optional   bool
}

// Store-level sentinel errors. Anything else returned by a store is a
// substrate failure, propagated wrapped and retryable by the caller.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict means a required batch precondition failed at commit time
	// (the caller lost a race) or an insert hit an existing id.
	ErrConflict = errors.New("store: conflict")
	// ErrClosed means the store has been shut down.
	ErrClosed = errors.New("store: closed")
)

// UnsubscribeFunc tears down one live subscription.
type UnsubscribeFunc func()

// SubscribeFunc receives the collection name and a matching record, once for
// every record of the initial snapshot and then on every subsequent change
// matching the filter. Delivery order per subscription follows the store's
// natural change order; no cross-subscription ordering is guaranteed.
type SubscribeFunc func(collection string, record Record)

// Store abstracts the persistence substrate: a document store with atomic
// multi-record commits and filtered live queries. The engine depends on this
// contract only, never on a concrete database.
type Store interface {
	// Create persists a new record and returns its id (taken from the
	// record's "id" field, which must be set by the caller).
	Create(ctx context.Context, collection string, record Record) (string, error)

	// Get returns one record by id or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Record, error)

	// Update applies a shallow field merge to an existing record.
	Update(ctx context.Context, collection, id string, patch Record) error

	// Query returns all records matching every filter, optionally sorted and
	// capped. limit <= 0 means no cap.
	Query(ctx context.Context, collection string, filters []Filter, order *OrderBy, limit int) ([]Record, error)

	// Subscribe registers a live filtered feed. The callback fires for the
	// initial snapshot and every later matching change until unsubscribed.
	Subscribe(ctx context.Context, collection string, filters []Filter, fn SubscribeFunc) (UnsubscribeFunc, error)

	// AtomicBatch applies all ops or none. Required preconditions are
	// evaluated against current record state inside the commit, which is the
	// single mechanism deciding concurrent-acceptance races.
	AtomicBatch(ctx context.Context, ops []BatchOp) error
}
