package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notifyChannel is raised by the trigger installed in migrations/0001_init.sql
// on every insert or update of the documents table.
const notifyChannel = "documents_changed"

// DocStore implements ports.Store on a single jsonb documents table. Every
// record lives as one row keyed by (collection, id); atomic batches map to a
// transaction with row locks, and live subscriptions ride LISTEN/NOTIFY.
type DocStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger

	mu        sync.Mutex
	subs      map[int]*docSubscription
	nextSubID int
	listening bool
	closed    bool
	cancel    context.CancelFunc
}

type docSubscription struct {
	collection string
	filters    []ports.Filter
	fn         ports.SubscribeFunc
}

// NewDocStore wraps an established pool. The notification listener starts
// lazily on the first Subscribe call.
func NewDocStore(pool *pgxpool.Pool, logger *logger.Logger) *DocStore {
	return &DocStore{
		pool:   pool,
		logger: logger,
		subs:   make(map[int]*docSubscription),
	}
}

// Close stops the notification listener and rejects further calls. The
// underlying pool is owned by the caller and stays open.
func (s *DocStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.subs = make(map[int]*docSubscription)
}

// ----- CRUD -----

func (s *DocStore) Create(ctx context.Context, collection string, record ports.Record) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	id := record.ID()
	if id == "" {
		return "", fmt.Errorf("postgres create: record has no id")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("postgres create marshal: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, data)
	if err != nil {
		return "", fmt.Errorf("postgres create: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", ports.ErrConflict
	}
	return id, nil
}

func (s *DocStore) Get(ctx context.Context, collection, id string) (ports.Record, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return decodeDocument(data)
}

func (s *DocStore) Update(ctx context.Context, collection, id string, patch ports.Record) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.AtomicBatch(ctx, []ports.BatchOp{{
		Collection: collection,
		ID:         id,
		Patch:      patch,
	}})
}

// ----- queries -----

// Query compiles the filters into jsonb predicates so the database does the
// narrowing. Range filters cast through text: fields ending in "_at" compare
// as timestamps, everything else as numeric.
func (s *DocStore) Query(ctx context.Context, collection string, filters []ports.Filter, order *ports.OrderBy, limit int) ([]ports.Record, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT data FROM documents WHERE collection = $1`)
	args = append(args, collection)

	for _, f := range filters {
		switch f.Op {
		case ports.OpEq:
			probe, err := json.Marshal(map[string]any{f.Field: f.Value})
			if err != nil {
				return nil, fmt.Errorf("postgres query marshal: %w", err)
			}
			args = append(args, probe)
			fmt.Fprintf(&sb, ` AND data @> $%d::jsonb`, len(args))
		case ports.OpIn:
			values, ok := f.Value.([]string)
			if !ok {
				return nil, fmt.Errorf("postgres query: in-filter on %q needs a []string value", f.Field)
			}
			args = append(args, f.Field, values)
			fmt.Fprintf(&sb, ` AND data->>$%d = ANY($%d)`, len(args)-1, len(args))
		case ports.OpGe, ports.OpLe:
			cmp := ">="
			if f.Op == ports.OpLe {
				cmp = "<="
			}
			cast := "numeric"
			if strings.HasSuffix(f.Field, "_at") {
				cast = "timestamptz"
			}
			args = append(args, f.Field, rangeArg(f.Value))
			fmt.Fprintf(&sb, ` AND (data->>$%d)::%s %s $%d::%s`, len(args)-1, cast, cmp, len(args), cast)
		default:
			return nil, fmt.Errorf("postgres query: unsupported filter op %q", f.Op)
		}
	}

	if order != nil {
		cast := "numeric"
		if strings.HasSuffix(order.Field, "_at") {
			cast = "timestamptz"
		}
		direction := "ASC"
		if order.Desc {
			direction = "DESC"
		}
		args = append(args, order.Field)
		fmt.Fprintf(&sb, ` ORDER BY (data->>$%d)::%s %s`, len(args), cast, direction)
	}
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	var out []ports.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres query scan: %w", err)
		}
		record, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres query rows: %w", err)
	}
	return out, nil
}

// ----- atomic batches -----

// AtomicBatch runs every op inside one transaction. Target rows are locked
// with SELECT ... FOR UPDATE before any precondition is evaluated, so the
// checks and the writes are a single serialized step per record.
func (s *DocStore) AtomicBatch(ctx context.Context, ops []ports.BatchOp) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, op := range ops {
			if err := s.applyOp(ctx, tx, op); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DocStore) applyOp(ctx context.Context, tx pgx.Tx, op ports.BatchOp) error {
	var data []byte
	err := tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		op.Collection, op.ID).Scan(&data)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if op.Insert == nil {
			if op.Optional {
				return nil
			}
			return ports.ErrNotFound
		}
		encoded, merr := json.Marshal(op.Insert)
		if merr != nil {
			return fmt.Errorf("postgres batch marshal: %w", merr)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
			op.Collection, op.ID, encoded); err != nil {
			return fmt.Errorf("postgres batch insert: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("postgres batch lock: %w", err)
	}

	if op.Insert != nil {
		return ports.ErrConflict
	}

	current, err := decodeDocument(data)
	if err != nil {
		return err
	}
	for _, req := range op.Require {
		if ports.CompareValues(current[req.Field], req.Equals) != 0 {
			if op.Optional {
				return nil
			}
			return ports.ErrConflict
		}
	}
	for k, v := range op.Patch {
		current[k] = v
	}
	encoded, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("postgres batch marshal: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE documents SET data = $3, updated_at = now()
		 WHERE collection = $1 AND id = $2`,
		op.Collection, op.ID, encoded); err != nil {
		return fmt.Errorf("postgres batch update: %w", err)
	}
	return nil
}

// withTx wraps fn in a transaction with rollback on error or panic.
func (s *DocStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres begin: %w", err)
	}

	done := false
	defer func() {
		if !done {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres commit: %w", err)
	}
	done = true
	return nil
}

// ----- helpers -----

func (s *DocStore) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ports.ErrClosed
	}
	return nil
}

func decodeDocument(data []byte) (ports.Record, error) {
	var record ports.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("postgres decode document: %w", err)
	}
	return record, nil
}

// rangeArg renders a range-filter value as the text Postgres will cast.
func rangeArg(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", x)
	}
}
