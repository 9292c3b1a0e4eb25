package casconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/casregistry"
	_ "xdao.co/dagfs/storage/localfs"
	_ "xdao.co/dagfs/storage/memcas"
)

func TestParseRejectsBadConfigs(t *testing.T) {
	_, err := Parse([]byte(`backends: []`))
	require.Error(t, err)

	_, err = Parse([]byte(`
backends:
  - name: memory
  - name: memory
`))
	require.ErrorContains(t, err, "duplicate backend id")

	_, err = Parse([]byte(`
write_policy: sometimes
backends:
  - name: memory
`))
	require.ErrorContains(t, err, "invalid write_policy")

	_, err = Parse([]byte(`
backends:
  - name: memory
    bogus: field
`))
	require.Error(t, err)
}

func TestParseAcceptsJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"write_policy":"all","backends":[{"name":"memory","id":"a"},{"name":"memory","id":"b"}]}`))
	require.NoError(t, err)
	require.Equal(t, WriteAll, cfg.WritePolicy)
	require.Len(t, cfg.Backends, 2)
}

func TestOpenReplicating(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	doc := "write_policy: all\nbackends:\n  - name: memory\n  - name: localfs\n    config:\n      localfs-dir: " + filepath.Join(dir, "blocks") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadFile(nil, path)
	require.NoError(t, err)

	cas, closeFn, err := cfg.Open(casregistry.UsageCLI, "")
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	r, ok := cas.(storage.ReplicatingCAS)
	require.True(t, ok)
	require.Len(t, r.Backends, 2)

	ctx := context.Background()
	id, err := cas.Put(ctx, []byte("both"))
	require.NoError(t, err)
	for _, b := range r.Backends {
		require.True(t, b.CAS.Has(ctx, id), b.Name)
	}
}

func TestOpenPreferredBackendFirst(t *testing.T) {
	cfg := Config{Backends: []BackendConfig{
		{Name: "memory", ID: "cold"},
		{Name: "memory", ID: "hot"},
	}}
	cas, _, err := cfg.Open(casregistry.UsageCLI, "hot")
	require.NoError(t, err)
	m, ok := cas.(storage.MultiCAS)
	require.True(t, ok)
	require.Len(t, m.Adapters, 2)

	require.True(t, cfg.Contains("hot"))
	require.True(t, cfg.Contains("memory"))
	require.False(t, cfg.Contains("lukewarm"))
	_, _, err = cfg.Open(casregistry.UsageCLI, "lukewarm")
	require.Error(t, err)
}

func TestOpenReadRepair(t *testing.T) {
	cfg, err := Parse([]byte(`
read_repair: true
backends:
  - name: memory
    id: cache
  - name: memory
    id: origin
`))
	require.NoError(t, err)
	require.True(t, cfg.ReadRepair)

	cas, closeFn, err := cfg.Open(casregistry.UsageCLI, "")
	require.NoError(t, err)
	require.NoError(t, closeFn())
	m, ok := cas.(storage.MultiCAS)
	require.True(t, ok)
	require.True(t, m.ReadRepair)

	ctx := context.Background()
	id, err := m.Adapters[1].Put(ctx, []byte("from origin"))
	require.NoError(t, err)
	_, err = m.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, m.Adapters[0].Has(ctx, id))
}

func TestOpenWithCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/store.yaml", []byte("cache_ttl: 1m\nbackends:\n  - name: memory\n"), 0o600))
	cfg, err := LoadFile(fs, "/store.yaml")
	require.NoError(t, err)

	cas, _, err := cfg.Open(casregistry.UsageCLI, "")
	require.NoError(t, err)
	_, ok := cas.(*storage.Cached)
	require.True(t, ok)

	_, err = Parse([]byte("cache_ttl: soon\nbackends:\n  - name: memory\n"))
	require.ErrorContains(t, err, "cache_ttl")
}
