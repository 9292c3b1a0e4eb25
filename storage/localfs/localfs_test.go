package localfs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := NewWithFs(afero.NewMemMapFs(), "/blocks")
		require.NoError(t, err)
		return cas
	})
}

func TestLocalFS_OsConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := New(t.TempDir())
		require.NoError(t, err)
		return cas
	})
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	cas, err := NewWithFs(fs, "/blocks")
	require.NoError(t, err)

	orig := []byte("original")
	id, err := cas.Put(ctx, orig)
	require.NoError(t, err)

	// Corrupt the stored object out-of-band.
	require.NoError(t, afero.WriteFile(fs, cas.pathFor(id), []byte("corrupted"), 0o644))

	// Get must detect hash mismatch.
	_, err = cas.Get(ctx, id)
	require.ErrorIs(t, err, storage.ErrCIDMismatch)

	// Put must not "repair" or overwrite the corrupted object.
	_, err = cas.Put(ctx, orig)
	require.ErrorIs(t, err, storage.ErrImmutable)

	wantID, err := cidutil.CIDv1RawSHA256CID(orig)
	require.NoError(t, err)
	require.Equal(t, wantID, id)
}

func TestLocalFS_RequiresRoot(t *testing.T) {
	_, err := NewWithFs(afero.NewMemMapFs(), "")
	require.Error(t, err)
}

func TestLocalFS_LeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	cas, err := NewWithFs(fs, "/blocks")
	require.NoError(t, err)

	id, err := cas.Put(ctx, []byte("atomic"))
	require.NoError(t, err)

	entries, err := afero.ReadDir(fs, filepath.Dir(cas.pathFor(id)))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, id.String(), entries[0].Name())
}
