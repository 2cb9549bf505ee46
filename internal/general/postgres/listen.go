package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ride-dispatch/internal/ports"
)

// changeNote is the payload the notify trigger sends: just enough to re-fetch
// the changed row. The full document never travels through NOTIFY because the
// payload is capped at 8000 bytes.
type changeNote struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Subscribe registers a live filtered feed. The shared notification listener
// is started on first use; the initial snapshot is delivered synchronously, so
// a change committed between the listener start and the snapshot read may be
// observed twice. Callers must tolerate duplicate delivery.
func (s *DocStore) Subscribe(ctx context.Context, collection string, filters []ports.Filter, fn ports.SubscribeFunc) (ports.UnsubscribeFunc, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ports.ErrClosed
	}
	if !s.listening {
		listenCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.listening = true
		go s.listen(listenCtx)
	}
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = &docSubscription{collection: collection, filters: filters, fn: fn}
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}

	snapshot, err := s.Query(ctx, collection, filters, nil, 0)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	for _, record := range snapshot {
		fn(collection, record)
	}
	return unsubscribe, nil
}

// listen holds one dedicated connection on LISTEN and redistributes change
// notes to the registered subscriptions. Connection loss is retried with a
// flat backoff until the store closes.
func (s *DocStore) listen(ctx context.Context) {
	for {
		if err := s.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error(ctx, "store_listener_down", "Notification listener lost, retrying", err, nil)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *DocStore) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	s.logger.Info(ctx, "store_listener_up", "Listening for document changes", map[string]any{
		"channel": notifyChannel,
	})

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var note changeNote
		if err := json.Unmarshal([]byte(notification.Payload), &note); err != nil {
			s.logger.Error(ctx, "store_listener_payload", "Malformed change notification", err, map[string]any{
				"payload": notification.Payload,
			})
			continue
		}
		s.dispatch(ctx, note)
	}
}

func (s *DocStore) dispatch(ctx context.Context, note changeNote) {
	s.mu.Lock()
	targets := make([]*docSubscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.collection == note.Collection {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	record, err := s.Get(ctx, note.Collection, note.ID)
	if errors.Is(err, ports.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Error(ctx, "store_listener_fetch", "Failed to load changed document", err, map[string]any{
			"collection": note.Collection,
			"id":         note.ID,
		})
		return
	}
	for _, sub := range targets {
		if ports.MatchRecord(record, sub.filters) {
			sub.fn(note.Collection, ports.CloneRecord(record))
		}
	}
}
