package badgercas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/testkit"
)

func TestBadger_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = cas.Close() })
		return cas
	})
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cas, err := Open(dir)
	require.NoError(t, err)
	id, err := cas.Put(ctx, []byte("durable"))
	require.NoError(t, err)
	require.NoError(t, cas.Close())
	require.NoError(t, cas.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "durable", string(got))
}
