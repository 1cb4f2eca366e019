// Package credstore persists the console's credential record: the access
// token, the cached administrator profile and the optional remembered login.
package credstore

import "errors"

// Fixed keys of the persisted credential record.
const (
	KeyToken    = "admin_token"
	KeyUserInfo = "admin_user_info"
	KeyRemember = "admin_remember"
)

// ErrNotConfigured reports use of a nil or closed store.
var ErrNotConfigured = errors.New("credential store is not configured")

// KV is the byte-level contract every backend implements. Get reports a
// missing key as (nil, false, nil). Delete removes all keys atomically and
// ignores keys that are absent.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(keys ...string) error
	Close() error
}
