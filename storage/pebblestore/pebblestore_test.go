package pebblestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/embargo/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "a", []byte("1")))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, s.Delete(ctx, "a"))

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Delete(context.Background(), "missing"))
}

func TestAscendOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	// Zero-padded decimal deadlines must iterate numerically
	require.NoError(t, s.Put(ctx, "00000000000000010000", []byte("later")))
	require.NoError(t, s.Put(ctx, "00000000000000005000", []byte("sooner")))
	require.NoError(t, s.Put(ctx, "00000000000000006000", []byte("middle")))

	var values []string
	err := s.Ascend(ctx, func(_ string, value []byte) (bool, error) {
		values = append(values, string(value))
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sooner", "middle", "later"}, values)
}

func TestAscendEarlyStop(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, k, nil))
	}

	var keys []string
	err := s.Ascend(ctx, func(key string, _ []byte) (bool, error) {
		keys = append(keys, key)
		return key != "b", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestReopenPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a", []byte("survives")))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("survives"), got)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close must be idempotent")

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, errors.ErrStoreClosed)
	assert.ErrorIs(t, s.Put(ctx, "a", nil), errors.ErrStoreClosed)
}
