package hamt

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage/memcas"
)

func value(t *testing.T, s string) cid.Cid {
	t.Helper()
	c, err := cidutil.CIDv1RawSHA256CID([]byte(s))
	require.NoError(t, err)
	return c
}

func key(i int) []byte { return []byte(fmt.Sprintf("key-%04d", i)) }

func TestPutGetRemove(t *testing.T) {
	ctx := context.Background()
	h, err := New(ctx, memcas.New())
	require.NoError(t, err)

	const n = 300
	for i := 0; i < n; i++ {
		h, err = h.Put(ctx, key(i), value(t, fmt.Sprint(i)))
		require.NoError(t, err)
	}
	for i := 0; i < n; i++ {
		vals, err := h.Get(ctx, key(i))
		require.NoError(t, err)
		require.Len(t, vals, 1)
		assert.True(t, vals[0].Equals(value(t, fmt.Sprint(i))))
	}
	_, err = h.Get(ctx, []byte("absent"))
	require.ErrorIs(t, err, ErrNotFound)

	h2, removed, err := h.Remove(ctx, key(7))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	ok, err := h2.Has(ctx, key(7))
	require.NoError(t, err)
	assert.False(t, ok)

	// The previous version is untouched.
	ok, err = h.Has(ctx, key(7))
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = h2.Remove(ctx, key(7))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValuesAreASet(t *testing.T) {
	ctx := context.Background()
	h, err := New(ctx, memcas.New())
	require.NoError(t, err)

	a, b := value(t, "a"), value(t, "b")
	h, err = h.Put(ctx, []byte("k"), a)
	require.NoError(t, err)
	h, err = h.Put(ctx, []byte("k"), b)
	require.NoError(t, err)
	before := h.Root()
	h, err = h.Put(ctx, []byte("k"), a)
	require.NoError(t, err)
	assert.True(t, before.Equals(h.Root()), "re-adding a value must not change the root")

	vals, err := h.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Len(t, vals, 2)
}

func TestShapeIsIndependentOfHistory(t *testing.T) {
	ctx := context.Background()
	store := memcas.New()

	build := func(order []int) *HAMT {
		h, err := New(ctx, store)
		require.NoError(t, err)
		for _, i := range order {
			h, err = h.Put(ctx, key(i), value(t, fmt.Sprint(i)))
			require.NoError(t, err)
		}
		return h
	}

	const n = 120
	order := rand.New(rand.NewSource(1)).Perm(n)
	a := build(order)
	sorted := make([]int, n)
	for i := range sorted {
		sorted[i] = i
	}
	b := build(sorted)
	assert.True(t, a.Root().Equals(b.Root()))

	// Inserting extra keys and removing them again returns the same root.
	c := a
	var err error
	for i := n; i < n+40; i++ {
		c, err = c.Put(ctx, key(i), value(t, fmt.Sprint(i)))
		require.NoError(t, err)
	}
	for i := n; i < n+40; i++ {
		c, _, err = c.Remove(ctx, key(i))
		require.NoError(t, err)
	}
	assert.True(t, a.Root().Equals(c.Root()))
}

func TestForEachVisitsEverything(t *testing.T) {
	ctx := context.Background()
	h, err := New(ctx, memcas.New())
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		h, err = h.Put(ctx, key(i), value(t, fmt.Sprint(i)))
		require.NoError(t, err)
	}
	seen := map[string]bool{}
	require.NoError(t, h.ForEach(ctx, func(k []byte, vals []cid.Cid) error {
		seen[string(k)] = true
		return nil
	}))
	assert.Len(t, seen, 50)

	reopened := Load(memcasWith(t, h), h.Root())
	ok, err := reopened.Has(ctx, key(3))
	require.NoError(t, err)
	assert.True(t, ok)
}

func memcasWith(t *testing.T, h *HAMT) *memcas.CAS {
	t.Helper()
	dst := memcas.New()
	src := h.store.(*memcas.CAS)
	_, err := src.Flush(context.Background(), dst)
	require.NoError(t, err)
	return dst
}

type countingStore struct {
	*memcas.CAS
	gets int
}

func (s *countingStore) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	s.gets++
	return s.CAS.Get(ctx, id)
}

func TestDiff(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{CAS: memcas.New()}
	base, err := New(ctx, store)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		base, err = base.Put(ctx, key(i), value(t, fmt.Sprint(i)))
		require.NoError(t, err)
	}

	next, err := base.Put(ctx, key(500), value(t, "new"))
	require.NoError(t, err)
	next, removed, err := next.Remove(ctx, key(3))
	require.NoError(t, err)
	next, err = next.Put(ctx, key(42), value(t, "second writer"))
	require.NoError(t, err)

	changes, err := next.Diff(ctx, base)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, Removed, changes[0].Kind)
	assert.Equal(t, key(3), changes[0].Key)
	assert.Equal(t, removed, changes[0].Old)
	assert.Nil(t, changes[0].New)

	assert.Equal(t, Modified, changes[1].Kind)
	assert.Equal(t, key(42), changes[1].Key)
	assert.Len(t, changes[1].Old, 1)
	assert.Len(t, changes[1].New, 2)

	assert.Equal(t, Added, changes[2].Kind)
	assert.Equal(t, key(500), changes[2].Key)
	assert.Nil(t, changes[2].Old)

	// The reverse diff swaps additions and removals.
	back, err := base.Diff(ctx, next)
	require.NoError(t, err)
	require.Len(t, back, 3)
	assert.Equal(t, Added, back[0].Kind)
	assert.Equal(t, Modified, back[1].Kind)
	assert.Equal(t, Removed, back[2].Kind)
}

func TestDiffSkipsSharedSubtrees(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{CAS: memcas.New()}
	base, err := New(ctx, store)
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		base, err = base.Put(ctx, key(i), value(t, fmt.Sprint(i)))
		require.NoError(t, err)
	}
	next, err := base.Put(ctx, key(1000), value(t, "one more"))
	require.NoError(t, err)

	store.gets = 0
	changes, err := next.Diff(ctx, base)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Added, changes[0].Kind)
	assert.Less(t, store.gets, 20)

	store.gets = 0
	same, err := next.Diff(ctx, next)
	require.NoError(t, err)
	assert.Empty(t, same)
	assert.Zero(t, store.gets)
}
