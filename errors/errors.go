package errors

import (
	goerrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrEmptySender       = fmt.Errorf("sender is empty")
	ErrEmptyBody         = fmt.Errorf("message body is empty")
	ErrMalformedRecord   = fmt.Errorf("malformed record")
	ErrEmptyCollection   = fmt.Errorf("collection key is empty")
	ErrInvalidCollection = fmt.Errorf("invalid collection key")

	ErrWriteFailed      = fmt.Errorf("log write failed")
	ErrFeedDisconnected = fmt.Errorf("feed disconnected")
	ErrFeedClosed       = fmt.Errorf("feed is closed")
	ErrUnknownCursor    = fmt.Errorf("unknown cursor")
	ErrLogClosed        = fmt.Errorf("log is closed")

	ErrUnknownBackend = fmt.Errorf("unknown log backend")
)

// MapToGRPCError translates domain errors into gRPC status errors.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case goerrors.Is(err, ErrEmptyCollection),
		goerrors.Is(err, ErrInvalidCollection),
		goerrors.Is(err, ErrMalformedRecord),
		goerrors.Is(err, ErrEmptySender),
		goerrors.Is(err, ErrEmptyBody):
		return status.Error(codes.InvalidArgument, err.Error())
	case goerrors.Is(err, ErrUnknownCursor):
		return status.Error(codes.NotFound, err.Error())
	case goerrors.Is(err, ErrLogClosed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
