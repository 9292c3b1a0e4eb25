package private

import (
	"context"
	"crypto/rand"
	"runtime"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/ratchet"
)

func TestSearchLatestCatchesUp(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)

	stale := root
	latest := root
	var err error
	for i := 0; i < 5; i++ {
		latest, err = tree.Write(ctx, latest, p("/f"), []byte{byte(i)}, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	// Another writer published latest.Forest; our ref is five revisions old.
	found, err := tree.SearchLatest(ctx, Root{Forest: latest.Forest, Ref: stale.Ref})
	require.NoError(t, err)
	assert.Equal(t, latest, found)

	again, err := tree.SearchLatest(ctx, latest)
	require.NoError(t, err)
	assert.Equal(t, latest, again)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)

	root, err := tree.Write(ctx, root, p("/notes/todo"), []byte("v0"), t0)
	require.NoError(t, err)
	since := headerAt(t, tree, root, "/notes/todo").Ratchet
	for _, v := range []string{"v1", "v2", "v3"} {
		root, err = tree.Write(ctx, root, p("/notes/todo"), []byte(v), t0.Add(time.Minute))
		require.NoError(t, err)
	}

	revs, err := tree.History(ctx, root, p("/notes/todo"), since, 0)
	require.NoError(t, err)
	require.Len(t, revs, 4)
	for i, rev := range revs {
		assert.Equal(t, uint64(i), rev.Offset)
		data, err := tree.ReadFile(ctx, rev.Node.(*File))
		require.NoError(t, err)
		assert.Equal(t, []byte{'v', byte('0' + i)}, data)
	}
	assert.True(t, revs[3].Node.Previous().Equals(revs[2].Ref.ContentCID))

	newest, err := tree.History(ctx, root, p("/notes/todo"), since, 2)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, uint64(2), newest[0].Offset)
	assert.Equal(t, uint64(3), newest[1].Offset)

	other, err := ratchet.New(rand.Reader)
	require.NoError(t, err)
	_, err = tree.History(ctx, root, p("/notes/todo"), other, 0)
	require.ErrorIs(t, err, common.ErrDivergence)
}

func TestCompareRoots(t *testing.T) {
	ctx := context.Background()
	tree, _, r1 := newTree(t)

	r2, err := tree.Mkdir(ctx, r1, p("/a"), t0)
	require.NoError(t, err)
	r3, err := tree.Mkdir(ctx, r2, p("/b"), t0)
	require.NoError(t, err)

	// The forest only grows, so the newest forest can open every older ref.
	older := Root{Forest: r3.Forest, Ref: r1.Ref}

	o, err := tree.CompareRoots(ctx, older, r3)
	require.NoError(t, err)
	assert.Equal(t, ratchet.ABeforeB, o)

	o, err = tree.CompareRoots(ctx, r3, older)
	require.NoError(t, err)
	assert.Equal(t, ratchet.BBeforeA, o)

	o, err = tree.CompareRoots(ctx, r3, r3)
	require.NoError(t, err)
	assert.Equal(t, ratchet.Equal, o)

	unrelated, err := NewTree(tree.store, WithSetup(testSetup(t))).NewRoot(ctx, t0)
	require.NoError(t, err)
	o, err = tree.CompareRoots(ctx, r3, unrelated)
	require.NoError(t, err)
	assert.Equal(t, ratchet.Incomparable, o)
}

func TestHistoryOpensDirectoryBackLinks(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)

	root, err := tree.Mkdir(ctx, root, p("/d"), t0)
	require.NoError(t, err)
	since := headerAt(t, tree, root, "/d").Ratchet
	for _, name := range []string{"/d/x", "/d/y"} {
		root, err = tree.Write(ctx, root, p(name), []byte(name), t0)
		require.NoError(t, err)
	}

	revs, err := tree.History(ctx, root, p("/d"), since, 0)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	assert.False(t, revs[0].Node.Previous().Defined())
	for i := 1; i < len(revs); i++ {
		assert.True(t, revs[i].Node.Previous().Equals(revs[i-1].Ref.ContentCID), "revision %d", i)
	}

	n, err := tree.GetNode(ctx, root, p("/d"))
	require.NoError(t, err)
	_, err = tree.OpenPrevious(n, revs[2].Ref.TemporalKey)
	require.ErrorIs(t, err, common.ErrAuthenticationFailure)
}

type zeroReader struct{}

func (zeroReader) Read(b []byte) (int, error) {
	clear(b)
	return len(b), nil
}

func TestHistoryFromFarBackDoesNotPreallocate(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t, WithRand(zeroReader{}))

	// The root ratchet is seeded with zeros and sits at its hidden offset,
	// thousands of steps past the seed's zero state. None of those
	// positions hold a revision.
	since := ratchet.Zero([32]byte{})
	steps, err := ratchet.Steps(since, headerAt(t, tree, root, "/").Ratchet)
	require.NoError(t, err)
	require.Greater(t, steps, uint64(1000))

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err = tree.History(ctx, root, p("/"), since, 0)
	runtime.ReadMemStats(&after)
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, steps*uint64(unsafe.Sizeof(Revision{})))
}
