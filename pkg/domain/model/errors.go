package model

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrOrderNotFound                  = errors.New("order not found")
	ErrInvalidStateTransition         = errors.New("invalid order state transition")
	ErrInvalidArgument                = errors.New("invalid argument")
	ErrOrderConcurrentModification    = errors.New("order was modified concurrently")
	ErrRestaurantNotAcceptingOrders   = errors.New("restaurant is not accepting orders")
	ErrRestaurantAvailabilityNotFound = errors.New("restaurant availability not found")
)

// InvalidStateTransitionError reports the status an order was in and the
// status that was requested. Operation is set instead of To when the rejected
// call is not a status change.
type InvalidStateTransitionError struct {
	From      OrderStatus
	To        OrderStatus
	Operation string
}

func (e *InvalidStateTransitionError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("cannot %s order in status %s", e.Operation, e.From)
	}
	if e.To == Cancelled {
		return fmt.Sprintf("order cannot be cancelled in status %s", e.From)
	}
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

func invalidArgumentf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
