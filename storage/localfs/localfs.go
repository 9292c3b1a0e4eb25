// Package localfs keeps blocks as files, one per CID, on an afero
// filesystem. Files are sharded into directories named by the last two
// characters of the CID string and are written read-only.
package localfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/spf13/afero"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
)

type CAS struct {
	fs   afero.Fs
	root string
}

var _ storage.CAS = (*CAS)(nil)

// New opens a store rooted at root on the host filesystem, creating it.
func New(root string) (*CAS, error) {
	return NewWithFs(afero.NewOsFs(), root)
}

// NewWithFs opens a store rooted at root on fs, creating it.
func NewWithFs(fs afero.Fs, root string) (*CAS, error) {
	if fs == nil {
		return nil, errors.New("localfs: filesystem is required")
	}
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("localfs: %w", err)
	}
	return &CAS{fs: fs, root: root}, nil
}

// Put writes the block to a temporary file in its shard and renames it into
// place, so readers never observe a partial block. An existing file must
// hold the same bytes or Put reports storage.ErrImmutable.
func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	path := c.pathFor(id)
	if ok, _ := afero.Exists(c.fs, path); ok {
		if err := c.checkExisting(ctx, id, data); err != nil {
			return cid.Undef, err
		}
		return id, nil
	}

	dir := filepath.Dir(path)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return cid.Undef, fmt.Errorf("localfs: %w", err)
	}
	tmp, err := afero.TempFile(c.fs, dir, ".put-*")
	if err != nil {
		return cid.Undef, fmt.Errorf("localfs: %w", err)
	}
	cleanup := func(err error) (cid.Cid, error) {
		_ = tmp.Close()
		_ = c.fs.Remove(tmp.Name())
		return cid.Undef, fmt.Errorf("localfs: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}
	_ = c.fs.Chmod(tmp.Name(), 0o444)
	if err := c.fs.Rename(tmp.Name(), path); err != nil {
		_ = c.fs.Remove(tmp.Name())
		return cid.Undef, fmt.Errorf("localfs: %w", err)
	}
	return id, nil
}

func (c *CAS) checkExisting(ctx context.Context, id cid.Cid, data []byte) error {
	existing, err := c.Get(ctx, id)
	if err != nil || !bytes.Equal(existing, data) {
		return storage.ErrImmutable
	}
	return nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := afero.ReadFile(c.fs, c.pathFor(id))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("localfs: %w", err)
	}
	if cidutil.Verify(id, b) != nil {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *CAS) Has(_ context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	ok, err := afero.Exists(c.fs, c.pathFor(id))
	return err == nil && ok
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	return filepath.Join(c.root, s[len(s)-2:], s)
}
