package grpccas

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
)

// Client is a storage.CAS backed by a remote block store service. Every
// block it returns or accepts is checked against its CID locally, so a
// misbehaving server cannot substitute content.
type Client struct {
	cc      *grpc.ClientConn
	rpc     BlockStoreClient
	timeout time.Duration
}

var _ storage.CAS = (*Client)(nil)

type clientConfig struct {
	timeout  time.Duration
	maxMsg   int
	dialOpts []grpc.DialOption
}

// Option configures Dial.
type Option func(*clientConfig)

// WithTimeout bounds every RPC, on top of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithMaxMsgBytes raises the send and receive message limits.
func WithMaxMsgBytes(n int) Option {
	return func(c *clientConfig) { c.maxMsg = n }
}

// WithDialOptions appends raw grpc dial options, e.g. a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *clientConfig) { c.dialOpts = append(c.dialOpts, opts...) }
}

// Dial creates a client for target. The connection is established lazily on
// the first call.
func Dial(target string, opts ...Option) (*Client, error) {
	cfg := clientConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, cfg.dialOpts...)
	if cfg.maxMsg > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.maxMsg),
			grpc.MaxCallSendMsgSize(cfg.maxMsg),
		))
	}
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, rpc: NewBlockStoreClient(cc), timeout: cfg.timeout}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	reply, err := c.rpc.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return cid.Undef, fromStatus(err)
	}
	got, err := cid.Decode(reply.GetValue())
	if err != nil {
		return cid.Undef, storage.ErrInvalidCID
	}
	if !got.Equals(want) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return got, nil
}

func (c *Client) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	reply, err := c.rpc.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, fromStatus(err)
	}
	if err := cidutil.Verify(id, reply.GetValue()); err != nil {
		return nil, storage.ErrCIDMismatch
	}
	return reply.GetValue(), nil
}

// Has reports false on any transport error.
func (c *Client) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	reply, err := c.rpc.Has(ctx, wrapperspb.String(id.String()))
	return err == nil && reply.GetValue()
}

func (c *Client) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.timeout)
}
