package mysql

import (
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
)

func TestDSN(t *testing.T) {
	dsn := DSN{User: "orders", Password: "secret", Host: "db:3306", Database: "orderservice"}

	cfg, err := mysqldriver.ParseDSN(dsn.String())
	require.NoError(t, err)
	require.Equal(t, "orders", cfg.User)
	require.Equal(t, "secret", cfg.Passwd)
	require.Equal(t, "db:3306", cfg.Addr)
	require.Equal(t, "orderservice", cfg.DBName)
	require.True(t, cfg.ParseTime)
	require.Equal(t, time.UTC, cfg.Loc)
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestOrderRowMapping(t *testing.T) {
	item, err := model.NewItem(uuid.New(), uuid.New(), "Pizza", 2, decimal.RequireFromString("45.90"), "")
	require.NoError(t, err)
	order, err := model.NewOrder(model.NewOrderParams{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		RestaurantID: uuid.New(),
		Address: model.Address{
			Street:       "Rua das Flores",
			Number:       "123",
			Neighborhood: "Centro",
			City:         "São Paulo",
			State:        "SP",
			ZipCode:      "01000-000",
			Latitude:     decimal.NewNullDecimal(decimal.RequireFromString("-23.55052")),
		},
		Items:       []model.Item{item},
		DeliveryFee: decimal.RequireFromString("5.00"),
	})
	require.NoError(t, err)
	require.NoError(t, order.Confirm(30))
	order.Version = 2

	row := toSqlxOrder(order)
	require.Equal(t, "CONFIRMED", row.Status)
	require.Equal(t, 30, *row.EstimatedDeliveryTime)

	restored := toModelOrder(row, []model.Item{toModelItem(toSqlxItem(order.ID, item))})
	require.Equal(t, order.ID, restored.ID)
	require.Equal(t, model.Confirmed, restored.Status())
	require.Equal(t, order.Lifecycle().ConfirmedAt, restored.Lifecycle().ConfirmedAt)
	require.Equal(t, 2, restored.Version)
	require.Equal(t, order.ID, restored.Items[0].OrderID)
	require.True(t, order.Totals().Total.Equal(restored.Totals().Total))
	require.True(t, restored.Address.Latitude.Valid)
}
