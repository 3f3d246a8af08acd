package store

import "errors"

var (
	ErrKeyNotFound = errors.New("store: key not found")
	ErrEmptyKey    = errors.New("store: empty key")
)

// Adapter is the backing key-value boundary the medium dispatches into.
// Implementations must be safe for concurrent use. Get reports a missing
// key with ErrKeyNotFound; Delete of a missing key succeeds.
type Adapter interface {
	Name() string
	Get(key string) (string, error)
	Set(key string, value string) error
	Delete(key string) error
}
