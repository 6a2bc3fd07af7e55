package service

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
)

const maxUpdateAttempts = 3

type Event interface {
	Type() string
}

type EventDispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

type ItemInput struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Note      string
}

type CreateOrderInput struct {
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Address      model.Address
	Items        []ItemInput
	Note         string
	DeliveryFee  decimal.Decimal
	CouponCode   string
}

type UpdateStatusInput struct {
	Status                   model.OrderStatus
	EstimatedDeliveryMinutes int
	CancellationReason       string
}

type Order interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.Order, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*model.Order, error)
	ListActiveByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*model.Order, error)
	ListByStatus(ctx context.Context, status model.OrderStatus) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*model.Order, error)
	CancelOrderInStatus(ctx context.Context, orderID uuid.UUID, reason string, statuses []model.OrderStatus) (*model.Order, error)
	ApplyDiscount(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (*model.Order, error)
}

func NewOrderService(
	repo model.OrderRepository,
	availability model.RestaurantAvailabilityRepository,
	dispatcher EventDispatcher,
	logger logrus.FieldLogger,
) Order {
	return &orderService{
		repo:         repo,
		availability: availability,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

type orderService struct {
	repo         model.OrderRepository
	availability model.RestaurantAvailabilityRepository
	dispatcher   EventDispatcher
	logger       logrus.FieldLogger
}

func (o *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*model.Order, error) {
	if err := o.checkRestaurantAcceptsOrders(ctx, input.RestaurantID); err != nil {
		return nil, err
	}

	orderID, err := o.repo.NextID()
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(input.Items))
	for _, in := range input.Items {
		itemID, err := o.repo.NextID()
		if err != nil {
			return nil, err
		}
		item, err := model.NewItem(itemID, in.ProductID, in.Name, in.Quantity, in.UnitPrice, in.Note)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	order, err := model.NewOrder(model.NewOrderParams{
		ID:           orderID,
		CustomerID:   input.CustomerID,
		RestaurantID: input.RestaurantID,
		Address:      input.Address,
		Items:        items,
		DeliveryFee:  input.DeliveryFee,
		Note:         input.Note,
		CouponCode:   input.CouponCode,
	})
	if err != nil {
		return nil, err
	}

	if err := o.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"order_id":      order.ID,
		"customer_id":   order.CustomerID,
		"restaurant_id": order.RestaurantID,
		"total":         order.Totals().Total.StringFixed(2),
	}).Info("order created")

	o.dispatch(ctx, model.OrderCreated{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		Total:        order.Totals().Total,
		Status:       order.Status(),
		OccurredAt:   order.CreatedAt,
	})
	return order, nil
}

func (o *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	return o.repo.Find(ctx, orderID)
}

func (o *orderService) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.Order, error) {
	return o.repo.FindByCustomer(ctx, customerID)
}

func (o *orderService) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*model.Order, error) {
	return o.repo.FindByRestaurant(ctx, restaurantID)
}

func (o *orderService) ListActiveByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*model.Order, error) {
	return o.repo.FindActiveByRestaurant(ctx, restaurantID)
}

func (o *orderService) ListByStatus(ctx context.Context, status model.OrderStatus) ([]*model.Order, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(model.ErrInvalidArgument, "unknown order status %q", status)
	}
	return o.repo.FindByStatus(ctx, status)
}

func (o *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*model.Order, error) {
	if input.Status == model.Cancelled {
		return o.CancelOrder(ctx, orderID, input.CancellationReason)
	}

	var transition func(order *model.Order) error
	switch input.Status {
	case model.Confirmed:
		transition = func(order *model.Order) error { return order.Confirm(input.EstimatedDeliveryMinutes) }
	case model.Preparing:
		transition = (*model.Order).StartPreparing
	case model.Ready:
		transition = (*model.Order).MarkReady
	case model.OutForDelivery:
		transition = (*model.Order).StartDelivery
	case model.Delivered:
		transition = (*model.Order).Complete
	default:
		return nil, errors.Wrapf(model.ErrInvalidArgument, "status %q cannot be requested", input.Status)
	}

	order, previousStatus, err := o.modify(ctx, orderID, func(order *model.Order) (bool, error) {
		return true, transition(order)
	})
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"order_id":        orderID,
		"previous_status": previousStatus,
		"status":          order.Status(),
	}).Info("order status changed")

	o.dispatch(ctx, model.OrderStatusChanged{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		RestaurantID:   order.RestaurantID,
		PreviousStatus: previousStatus,
		NewStatus:      order.Status(),
		OccurredAt:     order.UpdatedAt,
	})
	return order, nil
}

// CancelOrder cancels a pending or confirmed order. An order that is already
// cancelled is returned as is and no event is emitted.
func (o *orderService) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*model.Order, error) {
	return o.CancelOrderInStatus(ctx, orderID, reason, nil)
}

// CancelOrderInStatus is CancelOrder restricted to orders whose freshly loaded
// status is one of statuses. Nil statuses means no restriction.
func (o *orderService) CancelOrderInStatus(
	ctx context.Context,
	orderID uuid.UUID,
	reason string,
	statuses []model.OrderStatus,
) (*model.Order, error) {
	order, previousStatus, err := o.modify(ctx, orderID, func(order *model.Order) (bool, error) {
		status := order.Status()
		if status == model.Cancelled {
			return false, nil
		}
		if statuses != nil && !slices.Contains(statuses, status) {
			return false, &model.InvalidStateTransitionError{From: status, To: model.Cancelled}
		}
		return true, order.Cancel(reason)
	})
	if err != nil {
		return nil, err
	}
	if previousStatus == model.Cancelled {
		return order, nil
	}

	o.logger.WithFields(logrus.Fields{
		"order_id":        orderID,
		"previous_status": previousStatus,
		"reason":          reason,
	}).Info("order cancelled")

	o.dispatch(ctx, model.OrderCancelled{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		RestaurantID:   order.RestaurantID,
		PreviousStatus: previousStatus,
		Reason:         order.Lifecycle().CancellationReason,
		OccurredAt:     order.UpdatedAt,
	})
	return order, nil
}

func (o *orderService) ApplyDiscount(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (*model.Order, error) {
	order, _, err := o.modify(ctx, orderID, func(order *model.Order) (bool, error) {
		return true, order.ApplyDiscount(amount)
	})
	if err != nil {
		return nil, err
	}

	o.dispatch(ctx, model.OrderDiscountApplied{
		OrderID:    order.ID,
		Discount:   order.Totals().Discount,
		Total:      order.Totals().Total,
		OccurredAt: order.UpdatedAt,
	})
	return order, nil
}

// modify loads the order, applies fn and stores the result. When the stored
// order changed in between, it is reloaded and fn is evaluated again against
// the fresh state.
func (o *orderService) modify(
	ctx context.Context,
	orderID uuid.UUID,
	fn func(order *model.Order) (bool, error),
) (*model.Order, model.OrderStatus, error) {
	for attempt := 1; ; attempt++ {
		order, err := o.repo.Find(ctx, orderID)
		if err != nil {
			return nil, "", err
		}

		previousStatus := order.Status()
		changed, err := fn(order)
		if err != nil {
			return nil, previousStatus, err
		}
		if !changed {
			return order, previousStatus, nil
		}

		err = o.repo.Update(ctx, order)
		if errors.Is(err, model.ErrOrderConcurrentModification) && attempt < maxUpdateAttempts {
			o.logger.WithField("order_id", orderID).Debug("order modified concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, previousStatus, err
		}
		return order, previousStatus, nil
	}
}

func (o *orderService) checkRestaurantAcceptsOrders(ctx context.Context, restaurantID uuid.UUID) error {
	availability, err := o.availability.Find(ctx, restaurantID)
	if errors.Is(err, model.ErrRestaurantAvailabilityNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !availability.AcceptsOrders() {
		return errors.Wrapf(model.ErrRestaurantNotAcceptingOrders, "restaurant %s", restaurantID)
	}
	return nil
}

// dispatch never fails the command: the order is already stored.
func (o *orderService) dispatch(ctx context.Context, event Event) {
	if err := o.dispatcher.Dispatch(ctx, event); err != nil {
		o.logger.WithError(err).WithField("event_type", event.Type()).Error("failed to dispatch order event")
	}
}
