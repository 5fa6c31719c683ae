package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/embargo/errors"
)

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Put(ctx, "a", []byte("1")))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, s.Delete(ctx, "a"))

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	s := New()
	assert.NoError(t, s.Delete(context.Background(), "missing"))
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "a", []byte("2")))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
	assert.Equal(t, 1, s.Len())
}

func TestAscendOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	// Insert out of order
	require.NoError(t, s.Put(ctx, "c", []byte("3")))
	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "b", []byte("2")))

	var keys []string
	err := s.Ascend(ctx, func(key string, _ []byte) (bool, error) {
		keys = append(keys, key)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestAscendEarlyStop(t *testing.T) {
	ctx := context.Background()
	s := New()

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

func TestAscendAllowsWritesFromCallback(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Put(ctx, "a", nil))
	require.NoError(t, s.Put(ctx, "b", nil))

	err := s.Ascend(ctx, func(key string, _ []byte) (bool, error) {
		// The snapshot iteration must not deadlock on writes
		return true, s.Delete(ctx, key)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Put(ctx, "a", []byte("abc")))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, errors.ErrStoreClosed)
	assert.ErrorIs(t, s.Put(ctx, "a", nil), errors.ErrStoreClosed)
	assert.ErrorIs(t, s.Delete(ctx, "a"), errors.ErrStoreClosed)
	assert.ErrorIs(t, s.Ascend(ctx, nil), errors.ErrStoreClosed)
}
