package storage

import (
	"context"
	"strings"

	"github.com/ipfs/go-cid"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"
)

// Instrument wraps a CAS so that every call is logged at debug level and
// traced as a span. A nil tracer uses the opentracing global tracer.
func Instrument(name string, tr opentracing.Tracer, logger *zap.Logger, cas CAS) CAS {
	if tr == nil {
		tr = opentracing.GlobalTracer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedCAS{
		name:   name,
		tr:     tr,
		cas:    cas,
		logger: logger.With(zap.String("cas", name)),
	}
}

type instrumentedCAS struct {
	name   string
	tr     opentracing.Tracer
	cas    CAS
	logger *zap.Logger
}

func (i *instrumentedCAS) opName(op string) string {
	return strings.Join([]string{"storage", i.name, op}, ".")
}

func (i *instrumentedCAS) span(ctx context.Context, op string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContextWithTracer(ctx, i.tr, i.opName(op))
}

func (i *instrumentedCAS) Put(ctx context.Context, bytes []byte) (cid.Cid, error) {
	span, ctx := i.span(ctx, "Put")
	defer span.Finish()

	id, err := i.cas.Put(ctx, bytes)
	if err != nil {
		ext.Error.Set(span, true)
		i.logger.Debug("storage put failed", zap.Int("size", len(bytes)), zap.Error(err))
		return id, err
	}
	span.SetTag("cid", id.String())
	i.logger.Debug("storage put", zap.Stringer("cid", id), zap.Int("size", len(bytes)))
	return id, nil
}

func (i *instrumentedCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	span, ctx := i.span(ctx, "Get")
	defer span.Finish()
	span.SetTag("cid", id.String())

	b, err := i.cas.Get(ctx, id)
	if err != nil {
		ext.Error.Set(span, true)
		i.logger.Debug("storage get failed", zap.Stringer("cid", id), zap.Error(err))
		return nil, err
	}
	i.logger.Debug("storage get", zap.Stringer("cid", id), zap.Int("size", len(b)))
	return b, nil
}

func (i *instrumentedCAS) Has(ctx context.Context, id cid.Cid) bool {
	span, ctx := i.span(ctx, "Has")
	defer span.Finish()

	ok := i.cas.Has(ctx, id)
	i.logger.Debug("storage has", zap.Stringer("cid", id), zap.Bool("found", ok))
	return ok
}
