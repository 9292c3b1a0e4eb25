package grpccas

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/memcas"
	"xdao.co/dagfs/storage/testkit"
)

func newBufconnClient(t *testing.T, backend storage.CAS) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(zap.NewNop())))
	NewServer(backend, nil).Register(srv)

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	client, err := Dial("passthrough:///bufnet",
		WithTimeout(2*time.Second),
		WithDialOptions(grpc.WithContextDialer(dialer)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return newBufconnClient(t, memcas.New())
	})
}

func TestGRPCCAS_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newBufconnClient(t, memcas.New())

	payload := []byte("hello grpccas")
	id, err := client.Put(ctx, payload)
	require.NoError(t, err)
	require.True(t, id.Defined())
	require.True(t, client.Has(ctx, id))

	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestGRPCCAS_NotFoundMapsToStorageError(t *testing.T) {
	client := newBufconnClient(t, memcas.New())
	id, err := cidutil.CIDv1RawSHA256CID([]byte("absent"))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), id)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

type corruptCAS struct{ storage.CAS }

func (c corruptCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	b, err := c.CAS.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return append(b, 0), nil
}

func TestGRPCCAS_CorruptBackendIsDetected(t *testing.T) {
	ctx := context.Background()
	backend := memcas.New()
	client := newBufconnClient(t, corruptCAS{backend})

	id, err := backend.Put(ctx, []byte("payload"))
	require.NoError(t, err)
	_, err = client.Get(ctx, id)
	require.ErrorIs(t, err, storage.ErrCIDMismatch)
}

func TestStatusMapping(t *testing.T) {
	for _, err := range []error{storage.ErrNotFound, storage.ErrInvalidCID, storage.ErrCIDMismatch, context.Canceled} {
		require.ErrorIs(t, fromStatus(toStatus(err)), err)
	}
	other := errors.New("disk on fire")
	require.Equal(t, codes.Internal, status.Code(toStatus(other)))
	require.Nil(t, toStatus(nil))
}
