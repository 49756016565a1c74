package port

import "context"

// KVStore is the durable key/value substrate the cart is persisted to.
type KVStore interface {
	// Get returns found=false for an absent key.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Change describes a write made through another handle of the same substrate.
type Change struct {
	Key     string
	Value   string
	Present bool
	Origin  string
}

// Subscriber delivers changes to key made by other handles. Changes made
// through the subscribing handle itself are never delivered.
type Subscriber interface {
	Subscribe(ctx context.Context, key string, fn func(Change)) (unsubscribe func(), err error)
}

// Substrate is a handle that is both storage and change feed, as a browser
// tab sees its local storage.
type Substrate interface {
	KVStore
	Subscriber
	Origin() string
}
