// Package badgercas stores blocks in an embedded badger key-value database.
package badgercas

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/ipfs/go-cid"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
)

var blockPref = [6]byte{'b', 'l', 'o', 'c', 'k', ':'}

// CAS is a badger-backed block store. Keys are the binary CID prefixed with
// "block:"; values are the raw block bytes.
type CAS struct {
	db    *badger.DB
	close sync.Once
}

var _ storage.CAS = (*CAS)(nil)

// Open opens (or creates) a badger database in dir.
func Open(dir string) (*CAS, error) {
	if dir == "" {
		return nil, errors.New("badgercas: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &CAS{db: db}, nil
}

// Close releases the database. It is safe to call more than once.
func (c *CAS) Close() error {
	var err error
	c.close.Do(func() {
		err = c.db.Close()
	})
	return err
}

func blockKey(id cid.Cid) []byte {
	return append(blockPref[:], id.Bytes()...)
}

func rewriteError(err error) error {
	switch err {
	case badger.ErrKeyNotFound:
		return storage.ErrNotFound
	default:
		return err
	}
}

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	key := blockKey(id)
	err = c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch err {
		case nil:
			existing, err := item.Value()
			if err != nil {
				return err
			}
			if !bytes.Equal(existing, data) {
				return storage.ErrImmutable
			}
			return nil
		case badger.ErrKeyNotFound:
			return txn.Set(key, append([]byte(nil), data...))
		default:
			return err
		}
	})
	if err != nil {
		return cid.Undef, err
	}
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(id))
		if err != nil {
			return rewriteError(err)
		}
		v, err := item.Value()
		if err != nil {
			return rewriteError(err)
		}
		// Values are only valid inside the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := cidutil.Verify(id, out); err != nil {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(_ context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(blockKey(id))
		return err
	})
	return err == nil
}
