package model

type OrderStatus string

const (
	Pending        OrderStatus = "PENDING"
	Confirmed      OrderStatus = "CONFIRMED"
	Preparing      OrderStatus = "PREPARING"
	Ready          OrderStatus = "READY"
	OutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	Delivered      OrderStatus = "DELIVERED"
	Cancelled      OrderStatus = "CANCELLED"
)

var transitions = map[OrderStatus][]OrderStatus{
	Pending:        {Confirmed, Cancelled},
	Confirmed:      {Preparing, Cancelled},
	Preparing:      {Ready, Cancelled},
	Ready:          {OutForDelivery, Cancelled},
	OutForDelivery: {Delivered, Cancelled},
	Delivered:      {},
	Cancelled:      {},
}

// Statuses lists every status in lifecycle order.
func Statuses() []OrderStatus {
	return []OrderStatus{Pending, Confirmed, Preparing, Ready, OutForDelivery, Delivered, Cancelled}
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.Valid() {
		return "", invalidArgumentf("unknown order status %q", s)
	}
	return status, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanBeCancelled is narrower than the transition table: once the kitchen
// starts preparing, the order can no longer be cancelled.
func (s OrderStatus) CanBeCancelled() bool {
	return s == Pending || s == Confirmed
}

func (s OrderStatus) IsFinal() bool {
	return s == Delivered || s == Cancelled
}

func (s OrderStatus) String() string {
	return string(s)
}
