package tests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/service"
)

type reconcilerFixture struct {
	orders       service.Order
	reconciler   service.RestaurantAvailabilityReconciler
	repo         *mockOrderRepository
	availability *mockAvailabilityRepository
	dispatcher   *mockEventDispatcher
	processed    *mockProcessedEvents
}

func newReconcilerFixture() reconcilerFixture {
	repo := newMockOrderRepository()
	availability := newMockAvailabilityRepository()
	dispatcher := &mockEventDispatcher{}
	processed := &mockProcessedEvents{}
	logger, _ := test.NewNullLogger()
	orders := service.NewOrderService(repo, availability, dispatcher, logger)
	return reconcilerFixture{
		orders:       orders,
		reconciler:   service.NewRestaurantAvailabilityReconciler(repo, availability, orders, processed, 4, logger),
		repo:         repo,
		availability: availability,
		dispatcher:   dispatcher,
		processed:    processed,
	}
}

// placeOrders creates one order per status, moving each one along the
// lifecycle until it reaches that status.
func (f reconcilerFixture) placeOrders(t *testing.T, restaurantID uuid.UUID, statuses ...model.OrderStatus) []uuid.UUID {
	ctx := context.Background()
	ids := make([]uuid.UUID, 0, len(statuses))
	for _, status := range statuses {
		order, err := f.orders.CreateOrder(ctx, newCreateOrderInput(uuid.Must(uuid.NewV7()), restaurantID))
		require.NoError(t, err)
		for _, next := range model.Statuses()[1:] {
			if order.Status() == status {
				break
			}
			order, err = f.orders.UpdateStatus(ctx, order.ID, service.UpdateStatusInput{Status: next})
			require.NoError(t, err)
		}
		require.Equal(t, status, order.Status())
		ids = append(ids, order.ID)
	}
	return ids
}

func (f reconcilerFixture) status(t *testing.T, id uuid.UUID) model.OrderStatus {
	order, err := f.repo.Find(context.Background(), id)
	require.NoError(t, err)
	return order.Status()
}

func restaurantEvent(restaurantID uuid.UUID, eventType model.RestaurantEventType) model.RestaurantEvent {
	return model.RestaurantEvent{
		EventID:      uuid.Must(uuid.NewV7()),
		Type:         eventType,
		RestaurantID: restaurantID,
		Timestamp:    time.Now().UTC(),
	}
}

func TestRestaurantAvailabilityReconciler(t *testing.T) {
	ctx := context.Background()

	t.Run("should cancel pending and confirmed orders of a suspended restaurant", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		ids := f.placeOrders(t, restaurantID, model.Pending, model.Confirmed, model.Preparing)
		f.dispatcher.Clear()

		result, err := f.reconciler.Handle(ctx, restaurantEvent(restaurantID, model.RestaurantSuspended))
		require.NoError(t, err)
		require.Equal(t, 2, result.Candidates)
		require.Equal(t, 2, result.Cancelled)
		require.Zero(t, result.Failed)

		for _, id := range ids[:2] {
			order, _ := f.repo.Find(ctx, id)
			require.Equal(t, model.Cancelled, order.Status())
			require.Equal(t, service.ReasonRestaurantSuspended, order.Lifecycle().CancellationReason)
		}
		require.Equal(t, model.Preparing, f.status(t, ids[2]))
		require.Len(t, f.dispatcher.GetEvents(), 2)
	})

	t.Run("should cancel only pending orders of a closed restaurant", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		ids := f.placeOrders(t, restaurantID, model.Pending, model.Confirmed)

		result, err := f.reconciler.Handle(ctx, restaurantEvent(restaurantID, model.RestaurantClosed))
		require.NoError(t, err)
		require.Equal(t, 1, result.Cancelled)

		order, _ := f.repo.Find(ctx, ids[0])
		require.Equal(t, model.Cancelled, order.Status())
		require.Equal(t, service.ReasonRestaurantClosed, order.Lifecycle().CancellationReason)
		require.Equal(t, model.Confirmed, f.status(t, ids[1]))
	})

	t.Run("should cancel every cancellable order of a deleted restaurant", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		ids := f.placeOrders(t, restaurantID, model.Pending, model.Confirmed, model.Ready, model.OutForDelivery)

		result, err := f.reconciler.Handle(ctx, restaurantEvent(restaurantID, model.RestaurantDeleted))
		require.NoError(t, err)
		require.Equal(t, 2, result.Cancelled)

		order, _ := f.repo.Find(ctx, ids[1])
		require.Equal(t, service.ReasonRestaurantUnavailable, order.Lifecycle().CancellationReason)
		require.Equal(t, model.Ready, f.status(t, ids[2]))
		require.Equal(t, model.OutForDelivery, f.status(t, ids[3]))

		availability, err := f.availability.Find(ctx, restaurantID)
		require.NoError(t, err)
		require.True(t, availability.Deleted)
		require.False(t, availability.AcceptsOrders())
	})

	t.Run("should not cancel anything when orders are paused", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		ids := f.placeOrders(t, restaurantID, model.Pending, model.Confirmed, model.Preparing)
		f.dispatcher.Clear()

		result, err := f.reconciler.Handle(ctx, restaurantEvent(restaurantID, model.RestaurantOrdersPaused))
		require.NoError(t, err)
		require.Zero(t, result.Candidates)
		require.Zero(t, result.Cancelled)

		require.Equal(t, model.Pending, f.status(t, ids[0]))
		require.Equal(t, model.Confirmed, f.status(t, ids[1]))
		require.Equal(t, model.Preparing, f.status(t, ids[2]))
		require.Empty(t, f.dispatcher.GetEvents())

		_, err = f.orders.CreateOrder(ctx, newCreateOrderInput(uuid.Must(uuid.NewV7()), restaurantID))
		require.ErrorIs(t, err, model.ErrRestaurantNotAcceptingOrders)
	})

	t.Run("should admit orders again once orders are resumed", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		paused := restaurantEvent(restaurantID, model.RestaurantOrdersPaused)
		resumed := restaurantEvent(restaurantID, model.RestaurantOrdersResumed)
		resumed.Timestamp = paused.Timestamp.Add(time.Second)

		_, err := f.reconciler.Handle(ctx, paused)
		require.NoError(t, err)
		_, err = f.reconciler.Handle(ctx, resumed)
		require.NoError(t, err)

		_, err = f.orders.CreateOrder(ctx, newCreateOrderInput(uuid.Must(uuid.NewV7()), restaurantID))
		require.NoError(t, err)
	})

	t.Run("should ignore an availability event older than the stored one", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		resumed := restaurantEvent(restaurantID, model.RestaurantOrdersResumed)
		stalePause := restaurantEvent(restaurantID, model.RestaurantOrdersPaused)
		stalePause.Timestamp = resumed.Timestamp.Add(-time.Minute)

		_, err := f.reconciler.Handle(ctx, resumed)
		require.NoError(t, err)
		_, err = f.reconciler.Handle(ctx, stalePause)
		require.NoError(t, err)

		availability, err := f.availability.Find(ctx, restaurantID)
		require.NoError(t, err)
		require.True(t, availability.AcceptsOrders())
	})

	t.Run("should skip a redelivered event", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		f.placeOrders(t, restaurantID, model.Pending)
		event := restaurantEvent(restaurantID, model.RestaurantClosed)

		first, err := f.reconciler.Handle(ctx, event)
		require.NoError(t, err)
		require.Equal(t, 1, first.Cancelled)

		second, err := f.reconciler.Handle(ctx, event)
		require.NoError(t, err)
		require.True(t, second.Duplicate)
		require.Zero(t, second.Cancelled)
	})

	t.Run("should tolerate redelivery without deduplication", func(t *testing.T) {
		f := newReconcilerFixture()
		logger, _ := test.NewNullLogger()
		reconciler := service.NewRestaurantAvailabilityReconciler(f.repo, f.availability, f.orders, nil, 1, logger)
		restaurantID := uuid.Must(uuid.NewV7())
		ids := f.placeOrders(t, restaurantID, model.Pending)
		event := restaurantEvent(restaurantID, model.RestaurantSuspended)

		_, err := reconciler.Handle(ctx, event)
		require.NoError(t, err)
		cancelled, _ := f.repo.Find(ctx, ids[0])

		result, err := reconciler.Handle(ctx, event)
		require.NoError(t, err)
		require.Zero(t, result.Candidates)

		again, _ := f.repo.Find(ctx, ids[0])
		require.Equal(t, *cancelled.Lifecycle().CancelledAt, *again.Lifecycle().CancelledAt)
	})

	t.Run("should keep cancelling when one order moved on", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		ids := f.placeOrders(t, restaurantID, model.Confirmed, model.Pending)

		// the first confirmed order goes to the kitchen after the reconciler
		// fetched the active orders
		f.repo.beforeUpdate = func() {
			require.NoError(t, f.repo.forceStatus(ids[0], (*model.Order).StartPreparing))
		}
		logger, _ := test.NewNullLogger()
		reconciler := service.NewRestaurantAvailabilityReconciler(f.repo, f.availability, f.orders, nil, 1, logger)

		result, err := reconciler.Handle(ctx, restaurantEvent(restaurantID, model.RestaurantSuspended))
		require.NoError(t, err)
		require.Equal(t, 2, result.Candidates)
		require.Equal(t, 1, result.Cancelled)
		require.Equal(t, 1, result.Failed)

		require.Equal(t, model.Preparing, f.status(t, ids[0]))
		require.Equal(t, model.Cancelled, f.status(t, ids[1]))
	})

	t.Run("should not cancel an order confirmed after a closed restaurant event was fetched", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		ids := f.placeOrders(t, restaurantID, model.Pending)
		f.dispatcher.Clear()

		f.repo.beforeUpdate = func() {
			require.NoError(t, f.repo.forceStatus(ids[0], func(order *model.Order) error {
				return order.Confirm(30)
			}))
		}
		logger, _ := test.NewNullLogger()
		reconciler := service.NewRestaurantAvailabilityReconciler(f.repo, f.availability, f.orders, nil, 1, logger)

		result, err := reconciler.Handle(ctx, restaurantEvent(restaurantID, model.RestaurantClosed))
		require.NoError(t, err)
		require.Equal(t, 1, result.Candidates)
		require.Equal(t, 0, result.Cancelled)
		require.Equal(t, 1, result.Failed)

		order, err := f.repo.Find(ctx, ids[0])
		require.NoError(t, err)
		require.Equal(t, model.Confirmed, order.Status())
		require.Empty(t, order.Lifecycle().CancellationReason)
		require.Empty(t, f.dispatcher.GetEvents())
	})

	t.Run("should ignore events that require no action", func(t *testing.T) {
		f := newReconcilerFixture()
		restaurantID := uuid.Must(uuid.NewV7())
		ids := f.placeOrders(t, restaurantID, model.Pending)

		for _, eventType := range []model.RestaurantEventType{
			model.RestaurantCreated,
			model.RestaurantUpdated,
			model.RestaurantOpened,
			model.RestaurantActivated,
			model.RestaurantOrdersResumed,
			model.RestaurantEventType("RESTAURANT_RENAMED"),
		} {
			result, err := f.reconciler.Handle(ctx, restaurantEvent(restaurantID, eventType))
			require.NoError(t, err)
			require.Zero(t, result.Cancelled)
		}
		require.Equal(t, model.Pending, f.status(t, ids[0]))
	})

	t.Run("should reject an event without restaurant id", func(t *testing.T) {
		f := newReconcilerFixture()

		_, err := f.reconciler.Handle(ctx, restaurantEvent(uuid.Nil, model.RestaurantClosed))
		require.ErrorIs(t, err, model.ErrInvalidArgument)
	})
}
