package public

import (
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/common"
	"xdao.co/dagfs/storage/memcas"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTree(t *testing.T) (*Tree, *memcas.CAS, cid.Cid) {
	t.Helper()
	store := memcas.New()
	tree := NewTree(store)
	root, err := tree.NewRoot(context.Background(), t0)
	require.NoError(t, err)
	return tree, store, root
}

func contentCID(t *testing.T, s string) cid.Cid {
	t.Helper()
	c, err := cidutil.CIDv1RawSHA256CID([]byte(s))
	require.NoError(t, err)
	return c
}

func p(s string) common.Path { return common.MustParsePath(s) }

func TestScenarioMkdirWriteLsRm(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)
	tabby := contentCID(t, "tabby")

	root, err := tree.Mkdir(ctx, root, p("/pictures/cats"), t0.Add(time.Second))
	require.NoError(t, err)
	root, err = tree.Write(ctx, root, p("/pictures/cats/tabby.png"), tabby, t0.Add(2*time.Second))
	require.NoError(t, err)

	entries, err := tree.Ls(ctx, root, p("/pictures"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cats", entries[0].Name)
	assert.True(t, entries[0].Metadata.IsDir())

	got, err := tree.Read(ctx, root, p("/pictures/cats/tabby.png"))
	require.NoError(t, err)
	assert.True(t, got.Equals(tabby))

	root, err = tree.Rm(ctx, root, p("/pictures/cats"), t0.Add(3*time.Second))
	require.NoError(t, err)
	entries, err = tree.Ls(ctx, root, p("/pictures"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMkdirIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)

	once, err := tree.Mkdir(ctx, root, p("/a/b"), t0)
	require.NoError(t, err)
	twice, err := tree.Mkdir(ctx, once, p("/a/b"), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, once.Equals(twice))

	prefix, err := tree.Mkdir(ctx, once, p("/a"), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, once.Equals(prefix))
}

func TestWriteSharesUntouchedSubtrees(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)

	root, err := tree.Write(ctx, root, p("/docs/a.txt"), contentCID(t, "a"), t0)
	require.NoError(t, err)
	root, err = tree.Write(ctx, root, p("/music/song.mp3"), contentCID(t, "song"), t0)
	require.NoError(t, err)

	musicBefore, err := tree.Lookup(ctx, root, p("/music"))
	require.NoError(t, err)
	docsBefore, err := tree.Lookup(ctx, root, p("/docs"))
	require.NoError(t, err)

	next, err := tree.Write(ctx, root, p("/docs/b.txt"), contentCID(t, "b"), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, next.Equals(root))

	musicAfter, err := tree.Lookup(ctx, next, p("/music"))
	require.NoError(t, err)
	assert.True(t, musicBefore.Equals(musicAfter), "untouched sibling must keep its CID")

	docsAfter, err := tree.Lookup(ctx, next, p("/docs"))
	require.NoError(t, err)
	assert.False(t, docsBefore.Equals(docsAfter))

	// The old root is still a valid snapshot.
	_, err = tree.Read(ctx, root, p("/docs/b.txt"))
	require.ErrorIs(t, err, common.ErrNotFound)
	entries, err := tree.Ls(ctx, root, p("/docs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteOverwriteKeepsCreationTime(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)

	root, err := tree.Write(ctx, root, p("/f"), contentCID(t, "v1"), t0)
	require.NoError(t, err)
	root, err = tree.Write(ctx, root, p("/f"), contentCID(t, "v2"), t0.Add(time.Hour))
	require.NoError(t, err)

	md, err := tree.Stat(ctx, root, p("/f"))
	require.NoError(t, err)
	assert.Equal(t, t0, md.CreatedAt())
	assert.Equal(t, t0.Add(time.Hour), md.ModifiedAt())

	hist, err := tree.History(ctx, root, p("/f"), 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	old, err := tree.Load(ctx, hist[1])
	require.NoError(t, err)
	assert.True(t, old.(*File).Content.Equals(contentCID(t, "v1")))
}

func TestMutationsTouchAncestors(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)
	later := t0.Add(5 * time.Minute)

	root, err := tree.Mkdir(ctx, root, p("/x/y"), t0)
	require.NoError(t, err)
	root, err = tree.Write(ctx, root, p("/x/y/z"), contentCID(t, "z"), later)
	require.NoError(t, err)

	for _, path := range []string{"/", "/x", "/x/y"} {
		md, err := tree.Stat(ctx, root, p(path))
		require.NoError(t, err)
		assert.Equal(t, later, md.ModifiedAt(), path)
	}
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)

	root, err := tree.Write(ctx, root, p("/file"), contentCID(t, "f"), t0)
	require.NoError(t, err)
	root, err = tree.Mkdir(ctx, root, p("/dir"), t0)
	require.NoError(t, err)

	_, err = tree.Mkdir(ctx, root, p("/file/sub"), t0)
	assert.ErrorIs(t, err, common.ErrNotADirectory)
	_, err = tree.Mkdir(ctx, root, p("/file"), t0)
	assert.ErrorIs(t, err, common.ErrNotADirectory)
	_, err = tree.Write(ctx, root, p("/file/x"), contentCID(t, "x"), t0)
	assert.ErrorIs(t, err, common.ErrNotADirectory)
	_, err = tree.Write(ctx, root, p("/dir"), contentCID(t, "x"), t0)
	assert.ErrorIs(t, err, common.ErrNotAFile)

	_, err = tree.Read(ctx, root, p("/missing"))
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = tree.Read(ctx, root, p("/dir"))
	assert.ErrorIs(t, err, common.ErrNotAFile)
	_, err = tree.Ls(ctx, root, p("/file"))
	assert.ErrorIs(t, err, common.ErrNotADirectory)
	_, err = tree.Ls(ctx, root, p("/nope"))
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = tree.Rm(ctx, root, p("/nope"), t0)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = tree.Rm(ctx, root, p("/"), t0)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = tree.Write(ctx, root, common.Path{"a", ".."}, contentCID(t, "x"), t0)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	// A failed operation leaves the caller's root usable.
	entries, err := tree.Ls(ctx, root, p("/"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBasicMv(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)
	c := contentCID(t, "payload")

	root, err := tree.Write(ctx, root, p("/a/inner.txt"), c, t0)
	require.NoError(t, err)
	root, err = tree.BasicMv(ctx, root, p("/a"), p("/b"), t0.Add(time.Second))
	require.NoError(t, err)

	entries, err := tree.Ls(ctx, root, p("/"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)

	got, err := tree.Read(ctx, root, p("/b/inner.txt"))
	require.NoError(t, err)
	assert.True(t, got.Equals(c))
}

func TestBasicMvErrors(t *testing.T) {
	ctx := context.Background()
	tree, _, root := newTree(t)

	root, err := tree.Write(ctx, root, p("/a/f"), contentCID(t, "f"), t0)
	require.NoError(t, err)
	root, err = tree.Write(ctx, root, p("/b"), contentCID(t, "b"), t0)
	require.NoError(t, err)

	_, err = tree.BasicMv(ctx, root, p("/missing"), p("/c"), t0)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = tree.BasicMv(ctx, root, p("/a"), p("/nodir/c"), t0)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = tree.BasicMv(ctx, root, p("/a"), p("/b"), t0)
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
	_, err = tree.BasicMv(ctx, root, p("/a"), p("/a/sub"), t0)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestMissingBlockSurfacesAsBlockNotFound(t *testing.T) {
	tree := NewTree(memcas.New())
	_, err := tree.Ls(context.Background(), contentCID(t, "no such root"), p("/"))
	assert.ErrorIs(t, err, common.ErrBlockNotFound)
}

func TestNodeEncodingRoundTrip(t *testing.T) {
	d := NewDirectory(t0)
	d.Entries["x"] = contentCID(t, "x")
	d.Previous = []cid.Cid{contentCID(t, "prev")}
	b, err := encodeNode(d)
	require.NoError(t, err)
	n, err := decodeNode(b)
	require.NoError(t, err)
	back := n.(*Directory)
	assert.Equal(t, d.Metadata, back.Metadata)
	assert.Equal(t, d.Entries, back.Entries)
	assert.Equal(t, d.Previous, back.Previous)
	assert.NotEqual(t, d.ID(), back.ID())

	again, err := encodeNode(back)
	require.NoError(t, err)
	assert.Equal(t, b, again)
}
