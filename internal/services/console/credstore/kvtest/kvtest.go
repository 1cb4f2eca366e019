// Package kvtest holds the behavior every credential KV backend must share.
package kvtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// KV mirrors credstore.KV so backends can be tested without importing the
// credstore package.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(keys ...string) error
	Close() error
}

// Run exercises a fresh backend returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) KV) {
	t.Helper()

	t.Run("missing key", func(t *testing.T) {
		kv := open(t)
		value, ok, err := kv.Get("admin_token")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, value)
	})

	t.Run("put then get", func(t *testing.T) {
		kv := open(t)
		require.NoError(t, kv.Put("admin_token", []byte("abc")))
		value, ok, err := kv.Get("admin_token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", string(value))
	})

	t.Run("overwrite", func(t *testing.T) {
		kv := open(t)
		require.NoError(t, kv.Put("admin_token", []byte("abc")))
		require.NoError(t, kv.Put("admin_token", []byte("xyz")))
		value, _, err := kv.Get("admin_token")
		require.NoError(t, err)
		assert.Equal(t, "xyz", string(value))
	})

	t.Run("returned value is detached", func(t *testing.T) {
		kv := open(t)
		require.NoError(t, kv.Put("admin_token", []byte("abc")))
		value, _, err := kv.Get("admin_token")
		require.NoError(t, err)
		value[0] = 'z'
		again, _, err := kv.Get("admin_token")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(again))
	})

	t.Run("delete many and absent", func(t *testing.T) {
		kv := open(t)
		require.NoError(t, kv.Put("admin_token", []byte("abc")))
		require.NoError(t, kv.Put("admin_user_info", []byte(`{}`)))
		require.NoError(t, kv.Put("admin_remember", []byte(`{}`)))

		require.NoError(t, kv.Delete("admin_token", "admin_user_info", "never_set"))

		_, ok, err := kv.Get("admin_token")
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = kv.Get("admin_user_info")
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = kv.Get("admin_remember")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
