package grpccas

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/dagfs/storage"
)

// statusErrors pairs each status code the service emits with the error it
// stands for on the client side.
var statusErrors = []struct {
	code codes.Code
	err  error
}{
	{codes.NotFound, storage.ErrNotFound},
	{codes.InvalidArgument, storage.ErrInvalidCID},
	{codes.DataLoss, storage.ErrCIDMismatch},
	{codes.Canceled, context.Canceled},
	{codes.DeadlineExceeded, context.DeadlineExceeded},
}

// toStatus converts a backend error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return status.Error(se.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus converts a gRPC status error back into the storage taxonomy.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, se := range statusErrors {
		if st.Code() == se.code {
			return se.err
		}
	}
	return err
}
