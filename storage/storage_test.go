package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/memcas"
	"xdao.co/dagfs/storage/testkit"
)

func TestMultiCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.MultiCAS{Adapters: []storage.CAS{memcas.New(), memcas.New()}}
	})
}

func TestMultiCAS_ReadsFallBackInOrder(t *testing.T) {
	ctx := context.Background()
	first, second := memcas.New(), memcas.New()
	id, err := second.Put(ctx, []byte("only in second"))
	require.NoError(t, err)

	m := storage.MultiCAS{Adapters: []storage.CAS{first, second}}
	got, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "only in second", string(got))
	require.True(t, m.Has(ctx, id))

	written, err := m.Put(ctx, []byte("new"))
	require.NoError(t, err)
	require.True(t, first.Has(ctx, written))
	require.False(t, second.Has(ctx, written))
}

func TestReplicatingCAS_WritesAll(t *testing.T) {
	ctx := context.Background()
	a, b := memcas.New(), memcas.New()
	r := storage.ReplicatingCAS{Backends: []storage.NamedCAS{{Name: "a", CAS: a}, {Name: "b", CAS: b}}}

	id, per, err := r.PutAll(ctx, []byte("replicated"))
	require.NoError(t, err)
	require.Len(t, per, 2)
	require.True(t, a.Has(ctx, id))
	require.True(t, b.Has(ctx, id))
}

type lyingCAS struct{ storage.CAS }

func (l lyingCAS) Put(ctx context.Context, _ []byte) (cid.Cid, error) {
	return cidutil.CIDv1RawSHA256CID([]byte("something else"))
}

func TestReplicatingCAS_DetectsMismatch(t *testing.T) {
	r := storage.ReplicatingCAS{Backends: []storage.NamedCAS{
		{Name: "good", CAS: memcas.New()},
		{Name: "bad", CAS: lyingCAS{memcas.New()}},
	}}
	_, err := r.Put(context.Background(), []byte("payload"))
	require.ErrorIs(t, err, storage.ErrCIDMismatch)
}

func TestMultiCAS_ReadRepair(t *testing.T) {
	ctx := context.Background()
	local, remote := memcas.New(), memcas.New()
	id, err := remote.Put(ctx, []byte("remote block"))
	require.NoError(t, err)

	m := storage.MultiCAS{Adapters: []storage.CAS{local, remote}, ReadRepair: true}
	_, err = m.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, local.Has(ctx, id))
}

func TestReplicatingCAS_Repair(t *testing.T) {
	ctx := context.Background()
	a, b := memcas.New(), memcas.New()
	id, err := b.Put(ctx, []byte("only b"))
	require.NoError(t, err)

	r := storage.ReplicatingCAS{Backends: []storage.NamedCAS{{Name: "a", CAS: a}, {Name: "b", CAS: b}}}
	repaired, err := r.Repair(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, repaired)
	require.True(t, a.Has(ctx, id))

	repaired, err = r.Repair(ctx, id)
	require.NoError(t, err)
	require.Empty(t, repaired)
}

func TestCached_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.NewCached(memcas.New(), time.Minute)
	})
}

func TestCached_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	backend := memcas.New()
	id, err := backend.Put(ctx, []byte("warm"))
	require.NoError(t, err)

	c := storage.NewCached(backend, 0)
	_, err = c.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	// A cancelled context would fail the backend; the cache answers anyway.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	got, err := c.Get(cancelled, id)
	require.NoError(t, err)
	require.Equal(t, "warm", string(got))
}

func TestInstrument_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.Instrument("mem", mocktracer.New(), zap.NewNop(), memcas.New())
	})
}

func TestInstrument_RecordsSpans(t *testing.T) {
	tr := mocktracer.New()
	cas := storage.Instrument("mem", tr, nil, memcas.New())
	ctx := context.Background()

	id, err := cas.Put(ctx, []byte("traced"))
	require.NoError(t, err)
	_, err = cas.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, cas.Has(ctx, id))

	spans := tr.FinishedSpans()
	require.Len(t, spans, 3)
	require.Equal(t, "storage.mem.Put", spans[0].OperationName)
	require.Equal(t, "storage.mem.Get", spans[1].OperationName)
	require.Equal(t, "storage.mem.Has", spans[2].OperationName)
}
