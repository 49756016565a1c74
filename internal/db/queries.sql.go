package db

import (
	"context"
	"time"
)

const deleteValue = `-- name: DeleteValue :execrows
DELETE
FROM cart_kv
WHERE key = $1
`

func (q *Queries) DeleteValue(ctx context.Context, key string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteValue, key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getValue = `-- name: GetValue :one
SELECT value, origin, updated_at
FROM cart_kv
WHERE key = $1
`

type GetValueRow struct {
	Value     string
	Origin    string
	UpdatedAt time.Time
}

func (q *Queries) GetValue(ctx context.Context, key string) (GetValueRow, error) {
	row := q.db.QueryRow(ctx, getValue, key)
	var i GetValueRow
	err := row.Scan(&i.Value, &i.Origin, &i.UpdatedAt)
	return i, err
}

const notify = `-- name: Notify :exec
SELECT pg_notify($1::text, $2::text)
`

type NotifyParams struct {
	Channel string
	Payload string
}

func (q *Queries) Notify(ctx context.Context, arg NotifyParams) error {
	_, err := q.db.Exec(ctx, notify, arg.Channel, arg.Payload)
	return err
}

const upsertValue = `-- name: UpsertValue :exec
INSERT INTO cart_kv (key, value, origin, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE
    SET value      = EXCLUDED.value,
        origin     = EXCLUDED.origin,
        updated_at = EXCLUDED.updated_at
`

type UpsertValueParams struct {
	Key    string
	Value  string
	Origin string
}

func (q *Queries) UpsertValue(ctx context.Context, arg UpsertValueParams) error {
	_, err := q.db.Exec(ctx, upsertValue, arg.Key, arg.Value, arg.Origin)
	return err
}
