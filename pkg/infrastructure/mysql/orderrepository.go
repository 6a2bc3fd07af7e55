package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
)

const orderColumns = `id, customer_id, restaurant_id, status,
	delivery_street, delivery_number, delivery_complement, delivery_neighborhood,
	delivery_city, delivery_state, delivery_zip_code, delivery_latitude, delivery_longitude,
	subtotal, delivery_fee, discount, total,
	notes, coupon_code, cancellation_reason, estimated_delivery_time,
	confirmed_at, preparing_at, ready_at, picked_up_at, delivered_at, cancelled_at,
	created_at, updated_at, version`

type sqlxOrder struct {
	ID                    uuid.UUID           `db:"id"`
	CustomerID            uuid.UUID           `db:"customer_id"`
	RestaurantID          uuid.UUID           `db:"restaurant_id"`
	Status                string              `db:"status"`
	DeliveryStreet        string              `db:"delivery_street"`
	DeliveryNumber        string              `db:"delivery_number"`
	DeliveryComplement    string              `db:"delivery_complement"`
	DeliveryNeighborhood  string              `db:"delivery_neighborhood"`
	DeliveryCity          string              `db:"delivery_city"`
	DeliveryState         string              `db:"delivery_state"`
	DeliveryZipCode       string              `db:"delivery_zip_code"`
	DeliveryLatitude      decimal.NullDecimal `db:"delivery_latitude"`
	DeliveryLongitude     decimal.NullDecimal `db:"delivery_longitude"`
	Subtotal              decimal.Decimal     `db:"subtotal"`
	DeliveryFee           decimal.Decimal     `db:"delivery_fee"`
	Discount              decimal.Decimal     `db:"discount"`
	Total                 decimal.Decimal     `db:"total"`
	Notes                 string              `db:"notes"`
	CouponCode            string              `db:"coupon_code"`
	CancellationReason    string              `db:"cancellation_reason"`
	EstimatedDeliveryTime *int                `db:"estimated_delivery_time"`
	ConfirmedAt           *time.Time          `db:"confirmed_at"`
	PreparingAt           *time.Time          `db:"preparing_at"`
	ReadyAt               *time.Time          `db:"ready_at"`
	PickedUpAt            *time.Time          `db:"picked_up_at"`
	DeliveredAt           *time.Time          `db:"delivered_at"`
	CancelledAt           *time.Time          `db:"cancelled_at"`
	CreatedAt             time.Time           `db:"created_at"`
	UpdatedAt             time.Time           `db:"updated_at"`
	Version               int                 `db:"version"`
}

type sqlxItem struct {
	ID          uuid.UUID       `db:"id"`
	OrderID     uuid.UUID       `db:"order_id"`
	ProductID   uuid.UUID       `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	TotalPrice  decimal.Decimal `db:"total_price"`
	Notes       string          `db:"notes"`
	CreatedAt   time.Time       `db:"created_at"`
}

func NewOrderRepository(db *sqlx.DB) model.OrderRepository {
	return &orderRepository{db: db}
}

type orderRepository struct {
	db *sqlx.DB
}

func (r *orderRepository) NextID() (uuid.UUID, error) {
	return uuid.NewV7()
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := toSqlxOrder(order)
	row.Version = 1
	_, err = tx.NamedExecContext(ctx, `INSERT INTO orders (`+orderColumns+`) VALUES (
		:id, :customer_id, :restaurant_id, :status,
		:delivery_street, :delivery_number, :delivery_complement, :delivery_neighborhood,
		:delivery_city, :delivery_state, :delivery_zip_code, :delivery_latitude, :delivery_longitude,
		:subtotal, :delivery_fee, :discount, :total,
		:notes, :coupon_code, :cancellation_reason, :estimated_delivery_time,
		:confirmed_at, :preparing_at, :ready_at, :picked_up_at, :delivered_at, :cancelled_at,
		:created_at, :updated_at, :version)`, row)
	if err != nil {
		return errors.Wrapf(err, "failed to insert order %s", order.ID)
	}

	items := make([]sqlxItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, toSqlxItem(order.ID, item))
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO order_items
		(id, order_id, product_id, product_name, quantity, unit_price, total_price, notes, created_at)
		VALUES (:id, :order_id, :product_id, :product_name, :quantity, :unit_price, :total_price, :notes, :created_at)`, items)
	if err != nil {
		return errors.Wrapf(err, "failed to insert items of order %s", order.ID)
	}

	if err := tx.Commit(); err != nil {
		return errors.WithStack(err)
	}
	order.Version = row.Version
	return nil
}

func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	row := toSqlxOrder(order)
	result, err := r.db.ExecContext(ctx, `UPDATE orders SET
		status = ?, subtotal = ?, delivery_fee = ?, discount = ?, total = ?,
		cancellation_reason = ?, estimated_delivery_time = ?,
		confirmed_at = ?, preparing_at = ?, ready_at = ?, picked_up_at = ?, delivered_at = ?, cancelled_at = ?,
		updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		row.Status, row.Subtotal, row.DeliveryFee, row.Discount, row.Total,
		row.CancellationReason, row.EstimatedDeliveryTime,
		row.ConfirmedAt, row.PreparingAt, row.ReadyAt, row.PickedUpAt, row.DeliveredAt, row.CancelledAt,
		row.UpdatedAt, row.ID, row.Version,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update order %s", order.ID)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if affected == 0 {
		var exists bool
		err = r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)`, order.ID)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return model.ErrOrderNotFound
		}
		return errors.Wrapf(model.ErrOrderConcurrentModification, "order %s version %d", order.ID, order.Version)
	}

	order.Version++
	return nil
}

func (r *orderRepository) Find(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var row sqlxOrder
	err := r.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	orders, err := r.withItems(ctx, []sqlxOrder{row})
	if err != nil {
		return nil, err
	}
	return orders[0], nil
}

func (r *orderRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.Order, error) {
	return r.selectOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
}

func (r *orderRepository) FindByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*model.Order, error) {
	return r.selectOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = ? ORDER BY created_at DESC`, restaurantID)
}

func (r *orderRepository) FindActiveByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]*model.Order, error) {
	return r.selectOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = ? AND status NOT IN (?, ?) ORDER BY created_at ASC`,
		restaurantID, string(model.Delivered), string(model.Cancelled))
}

func (r *orderRepository) FindByStatus(ctx context.Context, status model.OrderStatus) ([]*model.Order, error) {
	return r.selectOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status = ? ORDER BY created_at DESC`, string(status))
}

func (r *orderRepository) selectOrders(ctx context.Context, query string, args ...interface{}) ([]*model.Order, error) {
	var rows []sqlxOrder
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.WithStack(err)
	}
	return r.withItems(ctx, rows)
}

func (r *orderRepository) withItems(ctx context.Context, rows []sqlxOrder) ([]*model.Order, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	query, args, err := sqlx.In(`SELECT id, order_id, product_id, product_name, quantity, unit_price, total_price, notes, created_at
		FROM order_items WHERE order_id IN (?) ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var items []sqlxItem
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, errors.WithStack(err)
	}
	itemsByOrder := make(map[uuid.UUID][]model.Item, len(rows))
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], toModelItem(item))
	}

	orders := make([]*model.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, toModelOrder(row, itemsByOrder[row.ID]))
	}
	return orders, nil
}

func toSqlxOrder(order *model.Order) sqlxOrder {
	lifecycle := order.Lifecycle()
	totals := order.Totals()
	return sqlxOrder{
		ID:                    order.ID,
		CustomerID:            order.CustomerID,
		RestaurantID:          order.RestaurantID,
		Status:                string(lifecycle.Status),
		DeliveryStreet:        order.Address.Street,
		DeliveryNumber:        order.Address.Number,
		DeliveryComplement:    order.Address.Complement,
		DeliveryNeighborhood:  order.Address.Neighborhood,
		DeliveryCity:          order.Address.City,
		DeliveryState:         order.Address.State,
		DeliveryZipCode:       order.Address.ZipCode,
		DeliveryLatitude:      order.Address.Latitude,
		DeliveryLongitude:     order.Address.Longitude,
		Subtotal:              totals.Subtotal,
		DeliveryFee:           totals.DeliveryFee,
		Discount:              totals.Discount,
		Total:                 totals.Total,
		Notes:                 order.Note,
		CouponCode:            order.CouponCode,
		CancellationReason:    lifecycle.CancellationReason,
		EstimatedDeliveryTime: lifecycle.EstimatedDeliveryMinutes,
		ConfirmedAt:           lifecycle.ConfirmedAt,
		PreparingAt:           lifecycle.PreparingAt,
		ReadyAt:               lifecycle.ReadyAt,
		PickedUpAt:            lifecycle.PickedUpAt,
		DeliveredAt:           lifecycle.DeliveredAt,
		CancelledAt:           lifecycle.CancelledAt,
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
		Version:               order.Version,
	}
}

func toSqlxItem(orderID uuid.UUID, item model.Item) sqlxItem {
	return sqlxItem{
		ID:          item.ID,
		OrderID:     orderID,
		ProductID:   item.ProductID,
		ProductName: item.Name,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		TotalPrice:  item.TotalPrice,
		Notes:       item.Note,
		CreatedAt:   item.CreatedAt,
	}
}

func toModelItem(item sqlxItem) model.Item {
	return model.Item{
		ID:         item.ID,
		OrderID:    item.OrderID,
		ProductID:  item.ProductID,
		Name:       item.ProductName,
		Quantity:   item.Quantity,
		UnitPrice:  item.UnitPrice,
		TotalPrice: item.TotalPrice,
		Note:       item.Notes,
		CreatedAt:  item.CreatedAt,
	}
}

func toModelOrder(row sqlxOrder, items []model.Item) *model.Order {
	return model.RestoreOrder(
		model.Order{
			ID:           row.ID,
			CustomerID:   row.CustomerID,
			RestaurantID: row.RestaurantID,
			Address: model.Address{
				Street:       row.DeliveryStreet,
				Number:       row.DeliveryNumber,
				Complement:   row.DeliveryComplement,
				Neighborhood: row.DeliveryNeighborhood,
				City:         row.DeliveryCity,
				State:        row.DeliveryState,
				ZipCode:      row.DeliveryZipCode,
				Latitude:     row.DeliveryLatitude,
				Longitude:    row.DeliveryLongitude,
			},
			Items:      items,
			Note:       row.Notes,
			CouponCode: row.CouponCode,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
			Version:    row.Version,
		},
		model.Lifecycle{
			Status:                   model.OrderStatus(row.Status),
			EstimatedDeliveryMinutes: row.EstimatedDeliveryTime,
			CancellationReason:       row.CancellationReason,
			ConfirmedAt:              row.ConfirmedAt,
			PreparingAt:              row.PreparingAt,
			ReadyAt:                  row.ReadyAt,
			PickedUpAt:               row.PickedUpAt,
			DeliveredAt:              row.DeliveredAt,
			CancelledAt:              row.CancelledAt,
		},
		model.Totals{
			Subtotal:    row.Subtotal,
			DeliveryFee: row.DeliveryFee,
			Discount:    row.Discount,
			Total:       row.Total,
		},
	)
}
