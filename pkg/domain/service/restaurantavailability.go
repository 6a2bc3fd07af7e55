package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
)

const (
	ReasonRestaurantClosed      = "restaurant closed"
	ReasonRestaurantSuspended   = "restaurant suspended"
	ReasonRestaurantUnavailable = "restaurant no longer available"
)

type cancellationPolicy struct {
	reason   string
	statuses []model.OrderStatus
}

func (p cancellationPolicy) eligible(status model.OrderStatus) bool {
	for _, s := range p.statuses {
		if s == status {
			return true
		}
	}
	return false
}

var cancellationPolicies = map[model.RestaurantEventType]cancellationPolicy{
	model.RestaurantClosed:    {reason: ReasonRestaurantClosed, statuses: []model.OrderStatus{model.Pending}},
	model.RestaurantSuspended: {reason: ReasonRestaurantSuspended, statuses: []model.OrderStatus{model.Pending, model.Confirmed}},
	model.RestaurantDeleted:   {reason: ReasonRestaurantUnavailable, statuses: []model.OrderStatus{model.Pending, model.Confirmed}},
}

// ProcessedEvents remembers restaurant events that were already handled so
// redeliveries can be skipped early.
type ProcessedEvents interface {
	IsProcessed(ctx context.Context, eventID uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, eventID uuid.UUID) error
}

type ReconcileResult struct {
	Candidates int
	Cancelled  int
	Failed     int
	Duplicate  bool
}

type RestaurantAvailabilityReconciler interface {
	Handle(ctx context.Context, event model.RestaurantEvent) (ReconcileResult, error)
}

func NewRestaurantAvailabilityReconciler(
	repo model.OrderRepository,
	availability model.RestaurantAvailabilityRepository,
	orders Order,
	processed ProcessedEvents,
	parallelism int,
	logger logrus.FieldLogger,
) RestaurantAvailabilityReconciler {
	if parallelism < 1 {
		parallelism = 1
	}
	return &restaurantAvailabilityReconciler{
		repo:         repo,
		availability: availability,
		orders:       orders,
		processed:    processed,
		parallelism:  parallelism,
		logger:       logger,
	}
}

type restaurantAvailabilityReconciler struct {
	repo         model.OrderRepository
	availability model.RestaurantAvailabilityRepository
	orders       Order
	processed    ProcessedEvents
	parallelism  int
	logger       logrus.FieldLogger
}

// Handle cancels the orders a restaurant event makes impossible to fulfil
// and records the new restaurant availability. Per-order failures are
// counted in the result. An error is returned only when the batch itself
// could not run, so that the event gets redelivered.
func (r *restaurantAvailabilityReconciler) Handle(ctx context.Context, event model.RestaurantEvent) (ReconcileResult, error) {
	logger := r.logger.WithFields(logrus.Fields{
		"event_id":      event.EventID,
		"event_type":    event.Type,
		"restaurant_id": event.RestaurantID,
	})
	if event.RestaurantID == uuid.Nil {
		return ReconcileResult{}, errors.Wrap(model.ErrInvalidArgument, "restaurant event without restaurant id")
	}

	if r.processed != nil && event.EventID != uuid.Nil {
		seen, err := r.processed.IsProcessed(ctx, event.EventID)
		if err != nil {
			logger.WithError(err).Warn("failed to check processed restaurant events")
		} else if seen {
			logger.Info("restaurant event already processed")
			return ReconcileResult{Duplicate: true}, nil
		}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var result ReconcileResult
	policy, ok := cancellationPolicies[event.Type]
	if ok {
		var err error
		result, err = r.cancelOrders(ctx, logger, event.RestaurantID, policy)
		if err != nil {
			return result, err
		}
	} else {
		switch event.Type {
		case model.RestaurantOrdersPaused:
			logger.Info("restaurant paused new orders, existing orders continue")
		case model.RestaurantOpened:
			logger.Info("restaurant is now open")
		case model.RestaurantOrdersResumed:
			logger.Info("restaurant resumed accepting orders")
		default:
			logger.Debug("restaurant event ignored")
		}
	}

	if err := r.recordAvailability(ctx, event); err != nil {
		return result, err
	}

	if r.processed != nil && event.EventID != uuid.Nil {
		if err := r.processed.MarkProcessed(ctx, event.EventID); err != nil {
			logger.WithError(err).Warn("failed to mark restaurant event as processed")
		}
	}
	return result, nil
}

func (r *restaurantAvailabilityReconciler) cancelOrders(
	ctx context.Context,
	logger logrus.FieldLogger,
	restaurantID uuid.UUID,
	policy cancellationPolicy,
) (ReconcileResult, error) {
	active, err := r.repo.FindActiveByRestaurant(ctx, restaurantID)
	if err != nil {
		return ReconcileResult{}, errors.Wrapf(err, "failed to find active orders of restaurant %s", restaurantID)
	}

	var candidates []*model.Order
	for _, order := range active {
		if policy.eligible(order.Status()) {
			candidates = append(candidates, order)
		}
	}

	var cancelled, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, order := range candidates {
		orderID := order.ID
		g.Go(func() error {
			if _, err := r.orders.CancelOrderInStatus(gctx, orderID, policy.reason, policy.statuses); err != nil {
				atomic.AddInt64(&failed, 1)
				logger.WithError(err).WithField("order_id", orderID).Warn("failed to cancel order")
				return nil
			}
			atomic.AddInt64(&cancelled, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ReconcileResult{}, err
	}

	result := ReconcileResult{
		Candidates: len(candidates),
		Cancelled:  int(cancelled),
		Failed:     int(failed),
	}
	logger.WithFields(logrus.Fields{
		"candidates": result.Candidates,
		"cancelled":  result.Cancelled,
		"failed":     result.Failed,
		"reason":     policy.reason,
	}).Info("cancelled orders of restaurant")
	return result, nil
}

// recordAvailability keeps the newest snapshot only; events older than the
// stored one do not change it. Restaurants seen for the first time start as
// open and accepting orders, like restaurants never seen at all.
func (r *restaurantAvailabilityReconciler) recordAvailability(ctx context.Context, event model.RestaurantEvent) error {
	current := model.RestaurantAvailability{
		RestaurantID:      event.RestaurantID,
		IsOpen:            true,
		IsAcceptingOrders: true,
	}
	stored, err := r.availability.Find(ctx, event.RestaurantID)
	switch {
	case errors.Is(err, model.ErrRestaurantAvailabilityNotFound):
	case err != nil:
		return err
	default:
		if event.Timestamp.Before(stored.UpdatedAt) {
			return nil
		}
		current = *stored
	}
	return r.availability.Store(ctx, current.Apply(event))
}
