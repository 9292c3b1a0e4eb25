// Package private is the encrypted file tree. Its operations mirror package
// public, but every node is stored as two sealed blocks (header and content)
// filed in a forest under a label derived from the node's name accumulator
// and its current ratchet. Every mutation advances the ratchet of each node
// it touches, so each revision has its own keys.
package private

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/hamt"
	"xdao.co/dagfs/nameaccumulator"
	"xdao.co/dagfs/storage"
)

const (
	// InlineLimit is the largest file kept inside its content block.
	InlineLimit = 4 << 10
	// ChunkSize is the plaintext size of each external content block.
	ChunkSize = 256 << 10
)

// Tree runs private path operations against a block store. The caller owns
// the Root.
type Tree struct {
	store  storage.CAS
	setup  *nameaccumulator.Setup
	rand   io.Reader
	cipher Cipher
	log    *zap.Logger
}

type Option func(*Tree)

func WithLogger(l *zap.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.log = l
		}
	}
}

// WithSetup overrides the accumulator group. All readers of a tree must use
// the same setup.
func WithSetup(s *nameaccumulator.Setup) Option {
	return func(t *Tree) {
		if s != nil {
			t.setup = s
		}
	}
}

// WithRand sets the source for nonces, inumbers and ratchet seeds.
func WithRand(r io.Reader) Option {
	return func(t *Tree) {
		if r != nil {
			t.rand = r
		}
	}
}

func WithCipher(c Cipher) Option {
	return func(t *Tree) { t.cipher = c }
}

func NewTree(store storage.CAS, opts ...Option) *Tree {
	t := &Tree{
		store:  store,
		setup:  nameaccumulator.SetupFromRSA2048(),
		rand:   rand.Reader,
		cipher: AES256GCM,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NewRoot creates an empty forest holding one empty root directory.
func (t *Tree) NewRoot(ctx context.Context, now time.Time) (Root, error) {
	forest, err := hamt.New(ctx, t.store)
	if err != nil {
		return Root{}, err
	}
	h, err := newHeader(t.rand, nameaccumulator.NewName())
	if err != nil {
		return Root{}, err
	}
	ref, forest, err := t.storeNode(ctx, forest, newDirectory(h, common.NewMetadata(common.KindDir, now)))
	if err != nil {
		return Root{}, err
	}
	return Root{Forest: forest.Root(), Ref: ref}, nil
}

func (t *Tree) forest(root Root) *hamt.HAMT {
	return hamt.Load(t.store, root.Forest)
}

func (t *Tree) putSealed(ctx context.Context, key [32]byte, plaintext []byte) (cid.Cid, error) {
	sealed, err := t.cipher.seal(t.rand, key, plaintext)
	if err != nil {
		return cid.Undef, err
	}
	id, err := t.store.Put(ctx, sealed)
	if err != nil {
		return cid.Undef, fmt.Errorf("private: store block: %w", err)
	}
	return id, nil
}

func (t *Tree) getSealed(ctx context.Context, key [32]byte, id cid.Cid) ([]byte, error) {
	b, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("private: load %s: %w", id, err)
	}
	return t.cipher.open(key, b)
}

// storeNode seals and stores n at its current revision and files the
// content block in the forest under the revision's label.
func (t *Tree) storeNode(ctx context.Context, forest *hamt.HAMT, n Node) (PrivateRef, *hamt.HAMT, error) {
	h := n.Header()
	tk := h.TemporalKey()

	hb, err := h.encode()
	if err != nil {
		return PrivateRef{}, nil, err
	}
	headerCID, err := t.putSealed(ctx, tk, hb)
	if err != nil {
		return PrivateRef{}, nil, err
	}

	var sealedPrev []byte
	switch prev := previousOf(n); {
	case prev.cid.Defined():
		if prev.key == (TemporalKey{}) {
			return PrivateRef{}, nil, fmt.Errorf("%w: key of the previous revision is unknown", common.ErrInvalidArgument)
		}
		if sealedPrev, err = t.cipher.seal(t.rand, prev.key, prev.cid.Bytes()); err != nil {
			return PrivateRef{}, nil, err
		}
	case len(prev.sealed) > 0:
		sealedPrev = prev.sealed
	}
	cb, err := encodeContent(n, headerCID, sealedPrev)
	if err != nil {
		return PrivateRef{}, nil, err
	}
	contentCID, err := t.putSealed(ctx, tk.SnapshotKey(), cb)
	if err != nil {
		return PrivateRef{}, nil, err
	}

	label := h.label(t.setup)
	if forest, err = forest.Put(ctx, label[:], contentCID); err != nil {
		return PrivateRef{}, nil, err
	}
	return PrivateRef{Label: label, TemporalKey: tk, ContentCID: contentCID}, forest, nil
}

// loadNode opens ref and checks that it is what it claims to be: the header
// must produce ref's key and label, the forest must list the revision, and
// when parent is given the node must be mounted under it.
func (t *Tree) loadNode(ctx context.Context, forest *hamt.HAMT, ref PrivateRef, parent *nameaccumulator.Name) (Node, error) {
	cb, err := t.getSealed(ctx, ref.TemporalKey.SnapshotKey(), ref.ContentCID)
	if err != nil {
		return nil, err
	}
	dc, err := decodeContent(cb)
	if err != nil {
		return nil, err
	}
	hb, err := t.getSealed(ctx, ref.TemporalKey, dc.headerCID)
	if err != nil {
		return nil, err
	}
	h, err := decodeHeader(hb)
	if err != nil {
		return nil, err
	}

	if !h.TemporalKey().Equal(ref.TemporalKey) {
		return nil, fmt.Errorf("%w: header ratchet does not match key", common.ErrAuthenticationFailure)
	}
	if h.label(t.setup) != ref.Label {
		return nil, fmt.Errorf("%w: label does not match header", common.ErrAuthenticationFailure)
	}
	if parent != nil && !h.mountedUnder(*parent) {
		return nil, fmt.Errorf("%w: node is not mounted under its parent", common.ErrAuthenticationFailure)
	}
	if err := t.checkFiled(ctx, forest, ref); err != nil {
		return nil, err
	}

	attach(dc.node, h, dc.sealedPrevious)
	return dc.node, nil
}

// OpenPrevious opens n's link to the revision it replaced with that
// revision's temporal key and returns its content CID. A node with no
// previous revision yields cid.Undef.
func (t *Tree) OpenPrevious(n Node, older TemporalKey) (cid.Cid, error) {
	l := previousOf(n)
	if len(l.sealed) == 0 {
		return l.cid, nil
	}
	pb, err := t.cipher.open(older, l.sealed)
	if err != nil {
		return cid.Undef, err
	}
	c, err := cid.Cast(pb)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: previous link: %v", common.ErrInvalidArgument, err)
	}
	l.cid, l.key = c, older
	return c, nil
}

func (t *Tree) checkFiled(ctx context.Context, forest *hamt.HAMT, ref PrivateRef) error {
	values, err := forest.Get(ctx, ref.Label[:])
	if err != nil {
		if errors.Is(err, hamt.ErrNotFound) {
			return fmt.Errorf("%w: revision is not in the forest", common.ErrBlockNotFound)
		}
		return err
	}
	for _, v := range values {
		if v.Equals(ref.ContentCID) {
			return nil
		}
	}
	return fmt.Errorf("%w: revision content is not in the forest", common.ErrBlockNotFound)
}

func (t *Tree) loadDir(ctx context.Context, forest *hamt.HAMT, ref PrivateRef, parent *nameaccumulator.Name) (*Directory, error) {
	n, err := t.loadNode(ctx, forest, ref, parent)
	if err != nil {
		return nil, err
	}
	d, ok := n.(*Directory)
	if !ok {
		return nil, common.ErrNotADirectory
	}
	return d, nil
}

// frame is one directory on the walk from the root. prev is the content
// CID it was loaded from, undefined if it is being created.
type frame struct {
	dir  *Directory
	prev cid.Cid
}

// walk resolves dirs as directories below the root, creating missing ones
// in memory when create is set.
func (t *Tree) walk(ctx context.Context, forest *hamt.HAMT, root Root, dirs common.Path, create bool, now time.Time) (frames []frame, created bool, err error) {
	rootDir, err := t.loadDir(ctx, forest, root.Ref, nil)
	if err != nil {
		return nil, false, err
	}
	frames = make([]frame, 0, len(dirs)+1)
	frames = append(frames, frame{dir: rootDir.clone(), prev: root.Ref.ContentCID})

	for i, seg := range dirs {
		parent := frames[len(frames)-1].dir
		ref, ok := parent.Entries[seg]
		if !ok {
			if !create {
				return nil, false, fmt.Errorf("%w: %s", common.ErrNotFound, dirs[:i+1])
			}
			h, err := newHeader(t.rand, parent.header.Name)
			if err != nil {
				return nil, false, err
			}
			frames = append(frames, frame{dir: newDirectory(h, common.NewMetadata(common.KindDir, now))})
			created = true
			continue
		}
		parentName := parent.header.Name
		child, err := t.loadDir(ctx, forest, ref, &parentName)
		if err != nil {
			if errors.Is(err, common.ErrNotADirectory) {
				return nil, false, fmt.Errorf("%w: %s", common.ErrNotADirectory, dirs[:i+1])
			}
			return nil, false, err
		}
		frames = append(frames, frame{dir: child.clone(), prev: ref.ContentCID})
	}
	return frames, created, nil
}

// fixUp stores the frames deepest first. Directories that already existed
// advance their ratchet exactly once and link the revision they replace.
func (t *Tree) fixUp(ctx context.Context, forest *hamt.HAMT, frames []frame, dirs common.Path, now time.Time) (Root, error) {
	var child PrivateRef
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if i < len(frames)-1 {
			f.dir.Entries[dirs[i]] = child
		}
		if f.prev.Defined() {
			f.dir.previous = backLink{cid: f.prev, key: f.dir.header.TemporalKey()}
			f.dir.header = f.dir.header.advance()
		}
		f.dir.Metadata = f.dir.Metadata.Touch(now)
		ref, next, err := t.storeNode(ctx, forest, f.dir)
		if err != nil {
			return Root{}, err
		}
		child, forest = ref, next
	}
	return Root{Forest: forest.Root(), Ref: child}, nil
}

// resolve walks path and returns the node at its end with its ref.
func (t *Tree) resolve(ctx context.Context, root Root, path common.Path) (Node, PrivateRef, error) {
	if err := path.Validate(); err != nil {
		return nil, PrivateRef{}, err
	}
	forest := t.forest(root)
	ref := root.Ref
	n, err := t.loadNode(ctx, forest, ref, nil)
	if err != nil {
		return nil, PrivateRef{}, err
	}
	for i, seg := range path {
		d, ok := n.(*Directory)
		if !ok {
			return nil, PrivateRef{}, fmt.Errorf("%w: %s", common.ErrNotADirectory, path[:i])
		}
		if ref, ok = d.Entries[seg]; !ok {
			return nil, PrivateRef{}, fmt.Errorf("%w: %s", common.ErrNotFound, path[:i+1])
		}
		parentName := d.header.Name
		if n, err = t.loadNode(ctx, forest, ref, &parentName); err != nil {
			return nil, PrivateRef{}, err
		}
	}
	return n, ref, nil
}

// storeFileData seals data into f, inline or as chunk blocks under a fresh
// content key.
func (t *Tree) storeFileData(ctx context.Context, f *File, data []byte) error {
	f.Size = int64(len(data))
	f.inline, f.chunks = nil, nil
	if len(data) <= InlineLimit {
		f.inline = append([]byte(nil), data...)
		return nil
	}
	if _, err := io.ReadFull(t.rand, f.contentKey[:]); err != nil {
		return fmt.Errorf("private: reading content key: %w", err)
	}
	for off := 0; off < len(data); off += ChunkSize {
		end := off + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		id, err := t.putSealed(ctx, f.contentKey, data[off:end])
		if err != nil {
			return err
		}
		f.chunks = append(f.chunks, id)
	}
	return nil
}

// ReadFile returns the plaintext content of f.
func (t *Tree) ReadFile(ctx context.Context, f *File) ([]byte, error) {
	if len(f.chunks) == 0 {
		return append([]byte(nil), f.inline...), nil
	}
	var buf bytes.Buffer
	buf.Grow(int(f.Size))
	for _, id := range f.chunks {
		chunk, err := t.getSealed(ctx, f.contentKey, id)
		if err != nil {
			return nil, err
		}
		buf.Write(chunk)
	}
	if int64(buf.Len()) != f.Size {
		return nil, fmt.Errorf("%w: file size mismatch", common.ErrAuthenticationFailure)
	}
	return buf.Bytes(), nil
}
