package grpccas

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
)

// Server serves a storage.CAS as the block store service.
type Server struct {
	UnimplementedBlockStoreServer

	cas storage.CAS
	log *zap.Logger
}

// NewServer wraps cas. A nil logger disables logging.
func NewServer(cas storage.CAS, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{cas: cas, log: log}
}

// Register installs the server on s.
func (s *Server) Register(r grpc.ServiceRegistrar) { RegisterBlockStoreServer(r, s) }

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	b := in.GetValue()
	want, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	id, err := s.cas.Put(ctx, b)
	if err != nil {
		s.log.Warn("put failed", zap.Error(err))
		return nil, toStatus(err)
	}
	if !id.Equals(want) {
		return nil, toStatus(storage.ErrCIDMismatch)
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	id, err := decodeCID(in)
	if err != nil {
		return nil, err
	}
	b, err := s.cas.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := cidutil.Verify(id, b); err != nil {
		s.log.Error("backend returned corrupt block", zap.Stringer("cid", id))
		return nil, toStatus(storage.ErrCIDMismatch)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	id, err := decodeCID(in)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(s.cas.Has(ctx, id)), nil
}

func decodeCID(in *wrapperspb.StringValue) (cid.Cid, error) {
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return cid.Undef, toStatus(storage.ErrInvalidCID)
	}
	return id, nil
}

// LoggingInterceptor logs every call at Debug with its status code and
// duration.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("rpc",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("took", time.Since(start)),
		)
		return resp, err
	}
}
