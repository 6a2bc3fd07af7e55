package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderCreated struct {
	OrderID      uuid.UUID
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Total        decimal.Decimal
	Status       OrderStatus
	OccurredAt   time.Time
}

func (e OrderCreated) Type() string {
	return "OrderCreated"
}

type OrderStatusChanged struct {
	OrderID        uuid.UUID
	CustomerID     uuid.UUID
	RestaurantID   uuid.UUID
	PreviousStatus OrderStatus
	NewStatus      OrderStatus
	OccurredAt     time.Time
}

func (e OrderStatusChanged) Type() string {
	return "OrderStatusChanged"
}

type OrderCancelled struct {
	OrderID        uuid.UUID
	CustomerID     uuid.UUID
	RestaurantID   uuid.UUID
	PreviousStatus OrderStatus
	Reason         string
	OccurredAt     time.Time
}

func (e OrderCancelled) Type() string {
	return "OrderCancelled"
}

type OrderDiscountApplied struct {
	OrderID    uuid.UUID
	Discount   decimal.Decimal
	Total      decimal.Decimal
	OccurredAt time.Time
}

func (e OrderDiscountApplied) Type() string {
	return "OrderDiscountApplied"
}
