// Package memstore is the in-memory reference implementation of the record
// store contract. A single mutex serializes every commit, which makes its
// AtomicBatch trivially all-or-nothing; it backs tests and embedded runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ride-dispatch/internal/ports"
)

type subscription struct {
	id         int
	collection string
	filters    []ports.Filter
	fn         ports.SubscribeFunc
}

type change struct {
	collection string
	record     ports.Record
}

// Store is a mutex-guarded in-memory document store.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]ports.Record
	subs        map[int]*subscription
	nextSubID   int
	queue       []change
	closed      bool

	// dispatchMu serializes change delivery so each subscription observes
	// commits in store order.
	dispatchMu sync.Mutex
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]ports.Record),
		subs:        make(map[int]*subscription),
	}
}

var _ ports.Store = (*Store)(nil)

// Close shuts the store down; every later call fails with ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[int]*subscription)
}

// Create persists a new record under its "id" field.
func (s *Store) Create(ctx context.Context, collection string, record ports.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := record.ID()
	if id == "" {
		return "", fmt.Errorf("memstore: record has no id")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ports.ErrClosed
	}
	coll := s.coll(collection)
	if _, exists := coll[id]; exists {
		s.mu.Unlock()
		return "", ports.ErrConflict
	}
	coll[id] = ports.CloneRecord(record)
	s.enqueue(collection, coll[id])
	s.mu.Unlock()

	s.flush()
	return id, nil
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, collection, id string) (ports.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ports.ErrClosed
	}
	record, ok := s.coll(collection)[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return ports.CloneRecord(record), nil
}

// Update applies a shallow field merge to an existing record.
func (s *Store) Update(ctx context.Context, collection, id string, patch ports.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ports.ErrClosed
	}
	coll := s.coll(collection)
	record, ok := coll[id]
	if !ok {
		s.mu.Unlock()
		return ports.ErrNotFound
	}
	merge(record, patch)
	s.enqueue(collection, record)
	s.mu.Unlock()

	s.flush()
	return nil
}

// Query returns all records matching every filter.
func (s *Store) Query(ctx context.Context, collection string, filters []ports.Filter, order *ports.OrderBy, limit int) ([]ports.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ports.ErrClosed
	}
	var out []ports.Record
	for _, record := range s.coll(collection) {
		if ports.MatchRecord(record, filters) {
			out = append(out, ports.CloneRecord(record))
		}
	}
	s.mu.Unlock()

	if order != nil {
		sort.SliceStable(out, func(i, j int) bool {
			c := ports.CompareValues(out[i][order.Field], out[j][order.Field])
			if order.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Subscribe registers a live filtered feed; the initial snapshot is
// delivered synchronously before Subscribe returns.
func (s *Store) Subscribe(ctx context.Context, collection string, filters []ports.Filter, fn ports.SubscribeFunc) (ports.UnsubscribeFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ports.ErrClosed
	}
	s.nextSubID++
	sub := &subscription{id: s.nextSubID, collection: collection, filters: filters, fn: fn}
	s.subs[sub.id] = sub

	var snapshot []ports.Record
	for _, record := range s.coll(collection) {
		if ports.MatchRecord(record, filters) {
			snapshot = append(snapshot, ports.CloneRecord(record))
		}
	}
	s.mu.Unlock()

	for _, record := range snapshot {
		fn(collection, record)
	}

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.mu.Unlock()
	}
	return unsubscribe, nil
}

// AtomicBatch applies all ops or none. Required preconditions are evaluated
// against current state before anything is written.
func (s *Store) AtomicBatch(ctx context.Context, ops []ports.BatchOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ports.ErrClosed
	}

	// phase 1: validate every op against current state
	skip := make([]bool, len(ops))
	for i, op := range ops {
		if err := s.checkOp(op); err != nil {
			if op.Optional {
				skip[i] = true
				continue
			}
			s.mu.Unlock()
			return err
		}
	}

	// phase 2: apply
	for i, op := range ops {
		if skip[i] {
			continue
		}
		coll := s.coll(op.Collection)
		if op.Insert != nil {
			record := ports.CloneRecord(op.Insert)
			record["id"] = op.ID
			coll[op.ID] = record
			s.enqueue(op.Collection, record)
			continue
		}
		record := coll[op.ID]
		merge(record, op.Patch)
		s.enqueue(op.Collection, record)
	}
	s.mu.Unlock()

	s.flush()
	return nil
}

// checkOp validates one batch op without mutating state. Caller holds mu.
func (s *Store) checkOp(op ports.BatchOp) error {
	coll := s.coll(op.Collection)
	existing, exists := coll[op.ID]

	if op.Insert != nil {
		if exists {
			return ports.ErrConflict
		}
		return nil
	}
	if !exists {
		return ports.ErrNotFound
	}
	for _, cond := range op.Require {
		if ports.CompareValues(existing[cond.Field], cond.Equals) != 0 {
			return ports.ErrConflict
		}
	}
	return nil
}

// ----- internals -----

// coll returns the named collection map, creating it lazily. Caller holds mu.
func (s *Store) coll(name string) map[string]ports.Record {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]ports.Record)
		s.collections[name] = c
	}
	return c
}

// enqueue records a committed change for delivery. Caller holds mu, which
// guarantees the queue reflects commit order.
func (s *Store) enqueue(collection string, record ports.Record) {
	s.queue = append(s.queue, change{collection: collection, record: ports.CloneRecord(record)})
}

// flush drains the change queue to matching subscriptions.
func (s *Store) flush() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		pending := s.queue
		s.queue = nil
		subs := make([]*subscription, 0, len(s.subs))
		for _, sub := range s.subs {
			subs = append(subs, sub)
		}
		s.mu.Unlock()

		for _, ch := range pending {
			for _, sub := range subs {
				if sub.collection == ch.collection && ports.MatchRecord(ch.record, sub.filters) {
					sub.fn(ch.collection, ports.CloneRecord(ch.record))
				}
			}
		}
	}
}

// merge applies a shallow field merge of patch into dst.
func merge(dst, patch ports.Record) {
	for k, v := range ports.CloneRecord(patch) {
		dst[k] = v
	}
}
