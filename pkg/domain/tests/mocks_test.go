package tests

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/service"
)

var _ model.OrderRepository = &mockOrderRepository{}

type mockOrderRepository struct {
	sync.RWMutex
	store map[uuid.UUID]*model.Order
	// beforeUpdate runs once before the next Update, outside the lock.
	beforeUpdate func()
	updates      int
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		store: make(map[uuid.UUID]*model.Order),
	}
}

func (m *mockOrderRepository) NextID() (uuid.UUID, error) {
	return uuid.NewV7()
}

func (m *mockOrderRepository) Create(_ context.Context, order *model.Order) error {
	m.Lock()
	defer m.Unlock()
	order.Version = 1
	m.store[order.ID] = cloneOrder(order)
	return nil
}

func (m *mockOrderRepository) Update(_ context.Context, order *model.Order) error {
	m.Lock()
	hook := m.beforeUpdate
	m.beforeUpdate = nil
	m.Unlock()
	if hook != nil {
		hook()
	}

	m.Lock()
	defer m.Unlock()
	stored, ok := m.store[order.ID]
	if !ok {
		return model.ErrOrderNotFound
	}
	if stored.Version != order.Version {
		return model.ErrOrderConcurrentModification
	}
	order.Version++
	m.store[order.ID] = cloneOrder(order)
	m.updates++
	return nil
}

func (m *mockOrderRepository) Find(_ context.Context, id uuid.UUID) (*model.Order, error) {
	m.RLock()
	defer m.RUnlock()
	order, ok := m.store[id]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (m *mockOrderRepository) FindByCustomer(_ context.Context, customerID uuid.UUID) ([]*model.Order, error) {
	return m.filter(func(o *model.Order) bool { return o.CustomerID == customerID }, true), nil
}

func (m *mockOrderRepository) FindByRestaurant(_ context.Context, restaurantID uuid.UUID) ([]*model.Order, error) {
	return m.filter(func(o *model.Order) bool { return o.RestaurantID == restaurantID }, true), nil
}

func (m *mockOrderRepository) FindActiveByRestaurant(_ context.Context, restaurantID uuid.UUID) ([]*model.Order, error) {
	return m.filter(func(o *model.Order) bool { return o.RestaurantID == restaurantID && o.IsActive() }, false), nil
}

func (m *mockOrderRepository) FindByStatus(_ context.Context, status model.OrderStatus) ([]*model.Order, error) {
	return m.filter(func(o *model.Order) bool { return o.Status() == status }, true), nil
}

func (m *mockOrderRepository) filter(match func(o *model.Order) bool, newestFirst bool) []*model.Order {
	m.RLock()
	defer m.RUnlock()
	var orders []*model.Order
	for _, order := range m.store {
		if match(order) {
			orders = append(orders, cloneOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		// uuid v7 ids grow with creation time
		less := orders[i].ID.String() < orders[j].ID.String()
		if newestFirst {
			return !less
		}
		return less
	})
	return orders
}

// forceStatus moves a stored order along the lifecycle without going
// through the service.
func (m *mockOrderRepository) forceStatus(id uuid.UUID, transition func(o *model.Order) error) error {
	m.Lock()
	defer m.Unlock()
	order, ok := m.store[id]
	if !ok {
		return model.ErrOrderNotFound
	}
	updated := cloneOrder(order)
	if err := transition(updated); err != nil {
		return err
	}
	updated.Version++
	m.store[id] = updated
	return nil
}

// cloneOrder keeps stored orders apart from the ones handed to callers.
func cloneOrder(order *model.Order) *model.Order {
	clone := *order
	clone.Items = append([]model.Item(nil), order.Items...)
	return &clone
}

var _ model.RestaurantAvailabilityRepository = &mockAvailabilityRepository{}

type mockAvailabilityRepository struct {
	sync.Mutex
	store map[uuid.UUID]model.RestaurantAvailability
}

func newMockAvailabilityRepository() *mockAvailabilityRepository {
	return &mockAvailabilityRepository{
		store: make(map[uuid.UUID]model.RestaurantAvailability),
	}
}

func (m *mockAvailabilityRepository) Store(_ context.Context, availability model.RestaurantAvailability) error {
	m.Lock()
	defer m.Unlock()
	m.store[availability.RestaurantID] = availability
	return nil
}

func (m *mockAvailabilityRepository) Find(_ context.Context, restaurantID uuid.UUID) (*model.RestaurantAvailability, error) {
	m.Lock()
	defer m.Unlock()
	availability, ok := m.store[restaurantID]
	if !ok {
		return nil, model.ErrRestaurantAvailabilityNotFound
	}
	return &availability, nil
}

var _ service.EventDispatcher = &mockEventDispatcher{}

type mockEventDispatcher struct {
	sync.Mutex
	events []service.Event
	err    error
}

func (m *mockEventDispatcher) Dispatch(_ context.Context, event service.Event) error {
	m.Lock()
	defer m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventDispatcher) GetEvents() []service.Event {
	m.Lock()
	defer m.Unlock()
	evs := make([]service.Event, len(m.events))
	copy(evs, m.events)
	return evs
}

func (m *mockEventDispatcher) Clear() {
	m.Lock()
	defer m.Unlock()
	m.events = nil
}

func (m *mockEventDispatcher) Fail(err error) {
	m.Lock()
	defer m.Unlock()
	m.err = err
}

var _ service.ProcessedEvents = &mockProcessedEvents{}

type mockProcessedEvents struct {
	sync.Mutex
	seen map[uuid.UUID]bool
}

func (m *mockProcessedEvents) IsProcessed(_ context.Context, eventID uuid.UUID) (bool, error) {
	m.Lock()
	defer m.Unlock()
	return m.seen[eventID], nil
}

func (m *mockProcessedEvents) MarkProcessed(_ context.Context, eventID uuid.UUID) error {
	m.Lock()
	defer m.Unlock()
	if m.seen == nil {
		m.seen = make(map[uuid.UUID]bool)
	}
	m.seen[eventID] = true
	return nil
}

var errBrokerDown = errors.New("broker down")
