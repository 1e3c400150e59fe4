// Package kvtest holds a behavioral test suite shared by kv.Store
// implementations.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-audit/internal/kv"
)

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()

	t.Run("GetMissingKey", func(t *testing.T) {
		s := newStore(t)
		value, found, err := s.Get(context.Background(), "job:missing")
		require.NoError(t, err)
		require.False(t, found)
		require.Nil(t, value)
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "job:1", []byte(`{"id":"1"}`)))
		value, found, err := s.Get(ctx, "job:1")
		require.NoError(t, err)
		require.True(t, found)
		require.JSONEq(t, `{"id":"1"}`, string(value))

		n, err := s.Delete(ctx, "job:1", "job:nope")
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
		_, found, err = s.Get(ctx, "job:1")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("PushPopOrdering", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		n, err := s.PushEnd(ctx, "audit:queue", "a", "b", "c")
		require.NoError(t, err)
		require.Equal(t, int64(3), n)
		n, err = s.PushStart(ctx, "audit:queue", "z")
		require.NoError(t, err)
		require.Equal(t, int64(4), n)

		items, err := s.Range(ctx, "audit:queue", 0, -1)
		require.NoError(t, err)
		require.Equal(t, []string{"z", "a", "b", "c"}, items)

		head, err := s.PopStart(ctx, "audit:queue", 2)
		require.NoError(t, err)
		require.Equal(t, []string{"z", "a"}, head)

		tail, err := s.PopEnd(ctx, "audit:queue", 1)
		require.NoError(t, err)
		require.Equal(t, []string{"c"}, tail)

		length, err := s.Length(ctx, "audit:queue")
		require.NoError(t, err)
		require.Equal(t, int64(1), length)
	})

	t.Run("PopFromEmptyList", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		items, err := s.PopStart(ctx, "audit:queue", 3)
		require.NoError(t, err)
		require.Empty(t, items)

		_, err = s.PushEnd(ctx, "audit:queue", "only")
		require.NoError(t, err)
		items, err = s.PopStart(ctx, "audit:queue", 3)
		require.NoError(t, err)
		require.Equal(t, []string{"only"}, items)

		length, err := s.Length(ctx, "audit:queue")
		require.NoError(t, err)
		require.Zero(t, length)
	})

	t.Run("RangeBounds", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, err := s.PushEnd(ctx, "l", "0", "1", "2", "3")
		require.NoError(t, err)

		items, err := s.Range(ctx, "l", 1, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"1", "2"}, items)

		items, err = s.Range(ctx, "l", -2, -1)
		require.NoError(t, err)
		require.Equal(t, []string{"2", "3"}, items)

		items, err = s.Range(ctx, "l", 2, 100)
		require.NoError(t, err)
		require.Equal(t, []string{"2", "3"}, items)

		items, err = s.Range(ctx, "l", 5, 10)
		require.NoError(t, err)
		require.Empty(t, items)

		items, err = s.Range(ctx, "absent", 0, -1)
		require.NoError(t, err)
		require.Empty(t, items)
	})

	t.Run("ScanKeys", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, key := range []string{"job:a", "job:b", "other:c"} {
			require.NoError(t, s.Set(ctx, key, []byte("x")))
		}
		_, err := s.PushEnd(ctx, "audit:queue", "a")
		require.NoError(t, err)

		keys, err := s.ScanKeys(ctx, "job:*")
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"job:a", "job:b"}, keys)

		keys, err = s.ScanKeys(ctx, "nothing:*")
		require.NoError(t, err)
		require.Empty(t, keys)
	})
}
