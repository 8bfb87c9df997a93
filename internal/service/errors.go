package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/splitbill/internal/auth"
	"github.com/mmynk/splitbill/internal/ledger"
	"github.com/mmynk/splitbill/internal/receipts"
	"github.com/mmynk/splitbill/internal/session"
)

// toConnectError maps ledger errors onto Connect codes.
func toConnectError(err error) error {
	var (
		notFound *ledger.NotFoundError
		invalid  *ledger.InvalidSplitError
		partial  *ledger.PartialWriteError
		trans    *ledger.TransportError
	)
	switch {
	case errors.As(err, &notFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.As(err, &invalid),
		errors.Is(err, ledger.ErrSelfFriend),
		errors.Is(err, receipts.ErrEmptyImage),
		errors.Is(err, receipts.ErrImageTooLarge),
		errors.Is(err, receipts.ErrNotAnImage):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrNoImageStore):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.As(err, &partial):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.As(err, &trans):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// sessionFrom returns the caller attached by the auth interceptor.
func sessionFrom(ctx context.Context) (session.Context, error) {
	sc, ok := session.FromContext(ctx)
	if !ok {
		return session.Context{}, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return sc, nil
}
