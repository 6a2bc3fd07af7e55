package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RestaurantEventType string

const (
	RestaurantCreated       RestaurantEventType = "RESTAURANT_CREATED"
	RestaurantUpdated       RestaurantEventType = "RESTAURANT_UPDATED"
	RestaurantDeleted       RestaurantEventType = "RESTAURANT_DELETED"
	RestaurantOpened        RestaurantEventType = "RESTAURANT_OPENED"
	RestaurantClosed        RestaurantEventType = "RESTAURANT_CLOSED"
	RestaurantActivated     RestaurantEventType = "RESTAURANT_ACTIVATED"
	RestaurantSuspended     RestaurantEventType = "RESTAURANT_SUSPENDED"
	RestaurantOrdersPaused  RestaurantEventType = "RESTAURANT_ORDERS_PAUSED"
	RestaurantOrdersResumed RestaurantEventType = "RESTAURANT_ORDERS_RESUMED"
)

// RestaurantStatus is the administrative status of a restaurant.
type RestaurantStatus string

const (
	RestaurantStatusPendingApproval RestaurantStatus = "PENDING_APPROVAL"
	RestaurantStatusActive          RestaurantStatus = "ACTIVE"
	RestaurantStatusSuspended       RestaurantStatus = "SUSPENDED"
	RestaurantStatusInactive        RestaurantStatus = "INACTIVE"
)

// RestaurantEvent is published by the restaurant service whenever a
// restaurant changes. Delivery is at least once.
type RestaurantEvent struct {
	EventID           uuid.UUID
	Type              RestaurantEventType
	RestaurantID      uuid.UUID
	Status            RestaurantStatus
	IsOpen            *bool
	IsAcceptingOrders *bool
	Timestamp         time.Time
}

// RestaurantAvailability is the last known state of a restaurant as seen
// through its events.
type RestaurantAvailability struct {
	RestaurantID      uuid.UUID
	IsOpen            bool
	IsAcceptingOrders bool
	Deleted           bool
	Suspended         bool
	UpdatedAt         time.Time
}

func (a RestaurantAvailability) AcceptsOrders() bool {
	return !a.Deleted && !a.Suspended && a.IsOpen && a.IsAcceptingOrders
}

// Apply folds an event into the availability snapshot. Status and flags
// carried by the event win over what the event type implies. A restaurant
// that is not ACTIVE is treated as suspended.
func (a RestaurantAvailability) Apply(event RestaurantEvent) RestaurantAvailability {
	next := a
	next.RestaurantID = event.RestaurantID
	next.UpdatedAt = event.Timestamp

	switch event.Type {
	case RestaurantCreated:
		next.Deleted = false
		next.Suspended = false
	case RestaurantDeleted:
		next.Deleted = true
		next.IsOpen = false
		next.IsAcceptingOrders = false
	case RestaurantOpened:
		next.IsOpen = true
	case RestaurantClosed:
		next.IsOpen = false
	case RestaurantActivated:
		next.Suspended = false
	case RestaurantSuspended:
		next.Suspended = true
	case RestaurantOrdersPaused:
		next.IsAcceptingOrders = false
	case RestaurantOrdersResumed:
		next.IsAcceptingOrders = true
	}

	if event.Type != RestaurantDeleted {
		switch event.Status {
		case RestaurantStatusActive:
			next.Suspended = false
		case RestaurantStatusPendingApproval, RestaurantStatusSuspended, RestaurantStatusInactive:
			next.Suspended = true
		}
		if event.IsOpen != nil {
			next.IsOpen = *event.IsOpen
		}
		if event.IsAcceptingOrders != nil {
			next.IsAcceptingOrders = *event.IsAcceptingOrders
		}
	}
	return next
}

type RestaurantAvailabilityRepository interface {
	Store(ctx context.Context, availability RestaurantAvailability) error
	Find(ctx context.Context, restaurantID uuid.UUID) (*RestaurantAvailability, error)
}
