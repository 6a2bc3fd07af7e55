package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
)

type sqlxRestaurantAvailability struct {
	RestaurantID      uuid.UUID `db:"restaurant_id"`
	IsOpen            bool      `db:"is_open"`
	IsAcceptingOrders bool      `db:"is_accepting_orders"`
	Deleted           bool      `db:"deleted"`
	Suspended         bool      `db:"suspended"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func NewRestaurantAvailabilityRepository(db *sqlx.DB) model.RestaurantAvailabilityRepository {
	return &restaurantAvailabilityRepository{db: db}
}

type restaurantAvailabilityRepository struct {
	db *sqlx.DB
}

// Store upserts the snapshot unless a newer one is already stored.
func (r *restaurantAvailabilityRepository) Store(ctx context.Context, availability model.RestaurantAvailability) error {
	row := sqlxRestaurantAvailability(availability)
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO restaurant_availability
		(restaurant_id, is_open, is_accepting_orders, deleted, suspended, updated_at)
		VALUES (:restaurant_id, :is_open, :is_accepting_orders, :deleted, :suspended, :updated_at)
		ON DUPLICATE KEY UPDATE
			is_open = IF(VALUES(updated_at) >= updated_at, VALUES(is_open), is_open),
			is_accepting_orders = IF(VALUES(updated_at) >= updated_at, VALUES(is_accepting_orders), is_accepting_orders),
			deleted = IF(VALUES(updated_at) >= updated_at, VALUES(deleted), deleted),
			suspended = IF(VALUES(updated_at) >= updated_at, VALUES(suspended), suspended),
			updated_at = GREATEST(VALUES(updated_at), updated_at)`, row)
	if err != nil {
		return errors.Wrapf(err, "failed to store availability of restaurant %s", availability.RestaurantID)
	}
	return nil
}

func (r *restaurantAvailabilityRepository) Find(ctx context.Context, restaurantID uuid.UUID) (*model.RestaurantAvailability, error) {
	var row sqlxRestaurantAvailability
	err := r.db.GetContext(ctx, &row, `SELECT restaurant_id, is_open, is_accepting_orders, deleted, suspended, updated_at
		FROM restaurant_availability WHERE restaurant_id = ?`, restaurantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrRestaurantAvailabilityNotFound
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	availability := model.RestaurantAvailability(row)
	return &availability, nil
}
