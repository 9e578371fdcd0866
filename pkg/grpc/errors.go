package grpc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/order"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps order errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, order.ErrEmptyCart), errors.Is(err, order.ErrInvalidLine), errors.Is(err, order.ErrInvalidPayment):
		code = codes.InvalidArgument
	case errors.Is(err, order.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		code = codes.Unauthenticated
	case errors.Is(err, order.ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, order.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, order.ErrStatusConflict):
		code = codes.Aborted
	case errors.Is(err, order.ErrInvalidTransition):
		code = codes.FailedPrecondition
	case errors.Is(err, order.ErrPersistence):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// fromStatus turns a gRPC status back into the matching order error so
// callers can keep using errors.Is.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	msg := st.Message()
	switch st.Code() {
	case codes.InvalidArgument:
		if msg == order.ErrEmptyCart.Error() {
			return order.ErrEmptyCart
		}
		if strings.HasPrefix(msg, order.ErrInvalidPayment.Error()) {
			return fmt.Errorf("%w: %s", order.ErrInvalidPayment, msg)
		}
		return fmt.Errorf("%w: %s", order.ErrInvalidLine, msg)
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", order.ErrUnauthenticated, msg)
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", order.ErrForbidden, msg)
	case codes.NotFound:
		return fmt.Errorf("%w: %s", order.ErrNotFound, msg)
	case codes.Aborted:
		return fmt.Errorf("%w: %w: %s", order.ErrInvalidTransition, order.ErrStatusConflict, msg)
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", order.ErrInvalidTransition, msg)
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", order.ErrPersistence, msg)
	}
	return err
}
