package rootlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/dagfs/keys"
	"xdao.co/dagfs/storage"
)

// Log reads and appends records through a Pointer.
type Log struct {
	store   storage.CAS
	ptr     Pointer
	trusted map[string]bool
	log     *zap.Logger
}

type Option func(*Log)

func WithLogger(l *zap.Logger) Option {
	return func(g *Log) {
		if l != nil {
			g.log = l
		}
	}
}

// WithTrustedSigners restricts accepted records to the given signer IDs.
// With no trusted set, any validly signed record is accepted.
func WithTrustedSigners(ids ...string) Option {
	return func(g *Log) {
		if g.trusted == nil {
			g.trusted = make(map[string]bool, len(ids))
		}
		for _, id := range ids {
			g.trusted[id] = true
		}
	}
}

func New(store storage.CAS, ptr Pointer, opts ...Option) *Log {
	g := &Log{store: store, ptr: ptr, log: zap.NewNop()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Publish appends a record for root on top of the current head and moves
// the pointer to it.
func (g *Log) Publish(ctx context.Context, s keys.Signer, kind Kind, root cid.Cid, now time.Time) (cid.Cid, Record, error) {
	if !root.Defined() {
		return cid.Undef, Record{}, fmt.Errorf("%w: undefined root", ErrBadRecord)
	}
	r := Record{Kind: kind, Root: root, Seq: 1, Time: now.UTC().Truncate(time.Microsecond)}
	prev, head, err := g.Head(ctx)
	switch {
	case err == nil:
		r.Seq = prev.Seq + 1
		r.Prev = head
	case !errors.Is(err, ErrEmpty):
		return cid.Undef, Record{}, err
	}

	if r, err = Sign(r, s); err != nil {
		return cid.Undef, Record{}, err
	}
	b, err := r.Encode()
	if err != nil {
		return cid.Undef, Record{}, err
	}
	id, err := g.store.Put(ctx, b)
	if err != nil {
		return cid.Undef, Record{}, err
	}
	if err := g.ptr.Set(ctx, id); err != nil {
		return cid.Undef, Record{}, err
	}
	g.log.Info("published root",
		zap.String("kind", string(kind)),
		zap.Stringer("root", root),
		zap.Uint64("seq", r.Seq),
		zap.Stringer("record", id))
	return id, r, nil
}

// Head returns the newest record, verified.
func (g *Log) Head(ctx context.Context) (Record, cid.Cid, error) {
	head, err := g.ptr.Head(ctx)
	if err != nil {
		return Record{}, cid.Undef, err
	}
	if !head.Defined() {
		return Record{}, cid.Undef, ErrEmpty
	}
	r, err := g.Load(ctx, head)
	if err != nil {
		return Record{}, cid.Undef, err
	}
	return r, head, nil
}

// Latest returns the newest record of the given kind.
func (g *Log) Latest(ctx context.Context, kind Kind) (Record, error) {
	var found *Record
	err := g.Walk(ctx, 0, func(_ cid.Cid, r Record) error {
		if r.Kind == kind {
			found = &r
			return errStop
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	if found == nil {
		return Record{}, ErrEmpty
	}
	return *found, nil
}

// Load fetches and verifies one record.
func (g *Log) Load(ctx context.Context, id cid.Cid) (Record, error) {
	b, err := g.store.Get(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("rootlog: load %s: %w", id, err)
	}
	r, err := Decode(b)
	if err != nil {
		return Record{}, err
	}
	if err := Verify(r); err != nil {
		return Record{}, err
	}
	if g.trusted != nil && !g.trusted[r.SignerID()] {
		return Record{}, fmt.Errorf("%w: %s", ErrUntrusted, r.SignerID())
	}
	return r, nil
}

var errStop = errors.New("stop")

// Walk visits records newest first, following Prev links, and checks that
// sequence numbers count down by one. A positive limit bounds the number
// of records visited.
func (g *Log) Walk(ctx context.Context, limit int, fn func(id cid.Cid, r Record) error) error {
	id, err := g.ptr.Head(ctx)
	if err != nil {
		return err
	}
	var next uint64
	for n := 0; id.Defined() && (limit <= 0 || n < limit); n++ {
		r, err := g.Load(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 && r.Seq != next {
			return fmt.Errorf("%w: %s has seq %d, want %d", ErrBadRecord, id, r.Seq, next)
		}
		if r.Seq == 0 || (r.Seq == 1) == r.Prev.Defined() {
			return fmt.Errorf("%w: %s is mis-linked", ErrBadRecord, id)
		}
		if err := fn(id, r); err != nil {
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		}
		next = r.Seq - 1
		id = r.Prev
	}
	return nil
}
