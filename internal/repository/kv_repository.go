package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/cartstate/internal/db"
	"github.com/nikolayk812/cartstate/internal/logger"
	"github.com/nikolayk812/cartstate/internal/port"
)

const DefaultChannel = "cart_kv_changes"

// notification is the pg_notify payload. The value itself is re-read by the
// listener since NOTIFY payloads are capped at 8000 bytes.
type notification struct {
	Key     string `json:"key"`
	Origin  string `json:"origin"`
	Deleted bool   `json:"deleted"`
}

type kvRepository struct {
	q       *db.Queries
	pool    *pgxpool.Pool
	origin  string
	channel string
	logg    *logger.Logger
}

// NewKV returns a substrate handle over the cart_kv table. Every handle gets
// its own origin; LISTEN/NOTIFY on channel carries changes between handles.
func NewKV(pool *pgxpool.Pool, channel string, logg *logger.Logger) (port.Substrate, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if logg == nil {
		logg = logger.Nop()
	}

	return &kvRepository{
		q:       db.New(pool),
		pool:    pool,
		origin:  uuid.NewString(),
		channel: channel,
		logg:    logg,
	}, nil
}

func (r *kvRepository) Origin() string {
	return r.origin
}

func (r *kvRepository) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is empty")
	}

	row, err := r.q.GetValue(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("q.GetValue: %w", err)
	}

	return row.Value, true, nil
}

func (r *kvRepository) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	_, err := withTx(ctx, r.pool, func(q *db.Queries) (struct{}, error) {
		err := q.UpsertValue(ctx, db.UpsertValueParams{
			Key:    key,
			Value:  value,
			Origin: r.origin,
		})
		if err != nil {
			return struct{}{}, fmt.Errorf("q.UpsertValue: %w", err)
		}

		return struct{}{}, r.notify(ctx, q, notification{Key: key, Origin: r.origin})
	})

	return err
}

func (r *kvRepository) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	_, err := withTx(ctx, r.pool, func(q *db.Queries) (struct{}, error) {
		if _, err := q.DeleteValue(ctx, key); err != nil {
			return struct{}{}, fmt.Errorf("q.DeleteValue: %w", err)
		}

		return struct{}{}, r.notify(ctx, q, notification{Key: key, Origin: r.origin, Deleted: true})
	})

	return err
}

func (r *kvRepository) notify(ctx context.Context, q *db.Queries, n notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := q.Notify(ctx, db.NotifyParams{Channel: r.channel, Payload: string(payload)}); err != nil {
		return fmt.Errorf("q.Notify: %w", err)
	}

	return nil
}

// Subscribe holds a dedicated pooled connection in LISTEN mode until
// unsubscribe is called or ctx is done. The connection is closed afterwards
// rather than returned, so no LISTEN state leaks back into the pool.
func (r *kvRepository) Subscribe(ctx context.Context, key string, fn func(port.Change)) (func(), error) {
	if key == "" {
		return nil, fmt.Errorf("key is empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("fn is nil")
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool.Acquire: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{r.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("conn.Exec LISTEN: %w", err)
	}

	listenCtx, cancel := context.WithCancel(ctx)
	logCtx := r.logg.WithFields(context.WithoutCancel(ctx), map[string]any{
		"channel": r.channel,
		"key":     key,
	})
	done := make(chan struct{})

	go func() {
		defer close(done)

		raw := conn.Hijack()
		defer func() {
			_ = raw.Close(context.Background())
		}()

		for {
			n, err := raw.WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					r.logg.Error(logCtx, "listen connection lost", err)
				}
				return
			}

			r.dispatch(listenCtx, logCtx, key, n.Payload, fn)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (r *kvRepository) dispatch(ctx, logCtx context.Context, key, payload string, fn func(port.Change)) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		r.logg.Warn(logCtx, "ignoring malformed notification", err)
		return
	}

	if n.Key != key || n.Origin == r.origin {
		return
	}

	change := port.Change{Key: n.Key, Origin: n.Origin}
	if !n.Deleted {
		value, found, err := r.Get(ctx, key)
		if err != nil {
			r.logg.Error(logCtx, "failed to read changed value", err)
			return
		}
		change.Value = value
		change.Present = found
	}

	fn(change)
}
