package model

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var now = func() time.Time {
	// MySQL DATETIME(6) keeps microseconds
	return time.Now().UTC().Truncate(time.Microsecond)
}

type Address struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
	Latitude     decimal.NullDecimal
	Longitude    decimal.NullDecimal
}

func (a Address) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"number", a.Number},
		{"neighborhood", a.Neighborhood},
		{"city", a.City},
		{"state", a.State},
		{"zip code", a.ZipCode},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return invalidArgumentf("delivery %s is required", field.name)
		}
	}
	if len(strings.TrimSpace(a.State)) != 2 {
		return invalidArgumentf("delivery state must be 2 characters, got %q", a.State)
	}
	return nil
}

// FullText renders the address as "street, number - complement, neighborhood,
// city - state, zip". Blank parts are skipped together with their separator.
func (a Address) FullText() string {
	var b strings.Builder
	appendPart := func(separator, part string) {
		part = strings.TrimSpace(part)
		if part == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString(separator)
		}
		b.WriteString(part)
	}

	appendPart("", a.Street)
	appendPart(", ", a.Number)
	appendPart(" - ", a.Complement)
	appendPart(", ", a.Neighborhood)
	appendPart(", ", a.City)
	appendPart(" - ", a.State)
	appendPart(", ", a.ZipCode)
	return b.String()
}

// Item is a line of an order. Name and UnitPrice are snapshots of the menu
// item taken when the order was placed.
type Item struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	ProductID  uuid.UUID
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Note       string
	CreatedAt  time.Time
}

func NewItem(id, productID uuid.UUID, name string, quantity int, unitPrice decimal.Decimal, note string) (Item, error) {
	if strings.TrimSpace(name) == "" {
		return Item{}, invalidArgumentf("item name is required")
	}
	if quantity < 1 {
		return Item{}, invalidArgumentf("item %q quantity must be at least 1, got %d", name, quantity)
	}
	if unitPrice.IsNegative() {
		return Item{}, invalidArgumentf("item %q unit price must not be negative", name)
	}

	return Item{
		ID:         id,
		ProductID:  productID,
		Name:       strings.TrimSpace(name),
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Note:       note,
		CreatedAt:  now(),
	}, nil
}

// Totals are derived from the items, the delivery fee and the discount.
type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// Lifecycle holds the status of an order and everything stamped by status changes.
type Lifecycle struct {
	Status                   OrderStatus
	EstimatedDeliveryMinutes *int
	CancellationReason       string
	ConfirmedAt              *time.Time
	PreparingAt              *time.Time
	ReadyAt                  *time.Time
	PickedUpAt               *time.Time
	DeliveredAt              *time.Time
	CancelledAt              *time.Time
}

// Order is the aggregate root of the order service. Status and money fields
// are only changed through its methods.
type Order struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Address      Address
	Items        []Item
	Note         string
	CouponCode   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// Version is the optimistic concurrency token of the stored row.
	Version int

	lifecycle Lifecycle
	totals    Totals
}

type NewOrderParams struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Address      Address
	Items        []Item
	DeliveryFee  decimal.Decimal
	Note         string
	CouponCode   string
}

func NewOrder(params NewOrderParams) (*Order, error) {
	if params.CustomerID == uuid.Nil {
		return nil, invalidArgumentf("customer id is required")
	}
	if params.RestaurantID == uuid.Nil {
		return nil, invalidArgumentf("restaurant id is required")
	}
	if err := params.Address.Validate(); err != nil {
		return nil, err
	}
	if len(params.Items) == 0 {
		return nil, invalidArgumentf("order must have at least one item")
	}
	if params.DeliveryFee.IsNegative() {
		return nil, invalidArgumentf("delivery fee must not be negative")
	}

	currentTime := now()
	order := &Order{
		ID:           params.ID,
		CustomerID:   params.CustomerID,
		RestaurantID: params.RestaurantID,
		Address:      params.Address,
		Note:         params.Note,
		CouponCode:   params.CouponCode,
		CreatedAt:    currentTime,
		UpdatedAt:    currentTime,
		lifecycle:    Lifecycle{Status: Pending},
		totals:       Totals{DeliveryFee: params.DeliveryFee},
	}
	for _, item := range params.Items {
		if err := order.AddItem(item); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// RestoreOrder rebuilds an order from stored state. Totals are recomputed
// from the items when any are given.
func RestoreOrder(order Order, lifecycle Lifecycle, totals Totals) *Order {
	restored := order
	restored.lifecycle = lifecycle
	restored.totals = totals
	if len(restored.Items) > 0 {
		restored.RecomputeTotals()
	}
	return &restored
}

func (o *Order) Status() OrderStatus {
	return o.lifecycle.Status
}

func (o *Order) Lifecycle() Lifecycle {
	return o.lifecycle
}

func (o *Order) Totals() Totals {
	return o.totals
}

func (o *Order) IsActive() bool {
	return !o.lifecycle.Status.IsFinal()
}

func (o *Order) FullAddressText() string {
	return o.Address.FullText()
}

// AddItem appends a line item while the order is still pending.
func (o *Order) AddItem(item Item) error {
	if o.lifecycle.Status != Pending {
		return &InvalidStateTransitionError{From: o.lifecycle.Status, Operation: "add item to"}
	}
	if item.Quantity < 1 {
		return invalidArgumentf("item %q quantity must be at least 1, got %d", item.Name, item.Quantity)
	}
	if item.UnitPrice.IsNegative() {
		return invalidArgumentf("item %q unit price must not be negative", item.Name)
	}

	item.OrderID = o.ID
	item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	o.Items = append(o.Items, item)
	o.RecomputeTotals()
	return nil
}

func (o *Order) Confirm(estimatedDeliveryMinutes int) error {
	if estimatedDeliveryMinutes < 0 {
		return invalidArgumentf("estimated delivery time must not be negative, got %d", estimatedDeliveryMinutes)
	}
	if err := o.validateTransition(Confirmed); err != nil {
		return err
	}

	o.lifecycle.ConfirmedAt = o.enter(Confirmed)
	o.lifecycle.EstimatedDeliveryMinutes = nil
	if estimatedDeliveryMinutes > 0 {
		o.lifecycle.EstimatedDeliveryMinutes = &estimatedDeliveryMinutes
	}
	return nil
}

func (o *Order) StartPreparing() error {
	if err := o.validateTransition(Preparing); err != nil {
		return err
	}
	o.lifecycle.PreparingAt = o.enter(Preparing)
	return nil
}

func (o *Order) MarkReady() error {
	if err := o.validateTransition(Ready); err != nil {
		return err
	}
	o.lifecycle.ReadyAt = o.enter(Ready)
	return nil
}

func (o *Order) StartDelivery() error {
	if err := o.validateTransition(OutForDelivery); err != nil {
		return err
	}
	o.lifecycle.PickedUpAt = o.enter(OutForDelivery)
	return nil
}

func (o *Order) Complete() error {
	if err := o.validateTransition(Delivered); err != nil {
		return err
	}
	o.lifecycle.DeliveredAt = o.enter(Delivered)
	return nil
}

// Cancel moves a pending or confirmed order to CANCELLED. Cancelling an
// already cancelled order changes nothing and succeeds.
func (o *Order) Cancel(reason string) error {
	if o.lifecycle.Status == Cancelled {
		return nil
	}
	if !o.lifecycle.Status.CanBeCancelled() {
		return &InvalidStateTransitionError{From: o.lifecycle.Status, To: Cancelled}
	}

	o.lifecycle.CancellationReason = reason
	o.lifecycle.CancelledAt = o.enter(Cancelled)
	return nil
}

func (o *Order) ApplyDiscount(amount decimal.Decimal) error {
	if o.lifecycle.Status != Pending {
		return &InvalidStateTransitionError{From: o.lifecycle.Status, Operation: "apply discount to"}
	}
	if amount.IsNegative() {
		return invalidArgumentf("discount must not be negative")
	}
	if amount.GreaterThan(o.totals.Subtotal) {
		return invalidArgumentf("discount %s cannot be greater than subtotal %s", amount, o.totals.Subtotal)
	}

	o.totals.Discount = amount
	o.RecomputeTotals()
	o.UpdatedAt = now()
	return nil
}

func (o *Order) RecomputeTotals() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	o.totals.Subtotal = subtotal
	o.totals.Total = subtotal.Add(o.totals.DeliveryFee).Sub(o.totals.Discount)
}

func (o *Order) validateTransition(next OrderStatus) error {
	if !o.lifecycle.Status.CanTransitionTo(next) {
		return &InvalidStateTransitionError{From: o.lifecycle.Status, To: next}
	}
	return nil
}

func (o *Order) enter(status OrderStatus) *time.Time {
	currentTime := now()
	o.lifecycle.Status = status
	o.UpdatedAt = currentTime
	return &currentTime
}

type OrderRepository interface {
	NextID() (uuid.UUID, error)
	// Create inserts a new order together with its items.
	Create(ctx context.Context, order *Order) error
	// Update stores the lifecycle and totals of an existing order if its
	// Version still matches the stored one, and increments Version.
	// Items are never rewritten.
	Update(ctx context.Context, order *Order) error
	Find(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error)
	FindByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*Order, error)
	// FindActiveByRestaurant returns orders that are neither delivered nor
	// cancelled, oldest first.
	FindActiveByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*Order, error)
	FindByStatus(ctx context.Context, status OrderStatus) ([]*Order, error)
}
