package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/service"
)

type OrderItemRequest struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Notes       string          `json:"notes,omitempty"`
}

type CreateOrderRequest struct {
	CustomerID           uuid.UUID           `json:"customerId"`
	RestaurantID         uuid.UUID           `json:"restaurantId"`
	DeliveryStreet       string              `json:"deliveryStreet"`
	DeliveryNumber       string              `json:"deliveryNumber"`
	DeliveryComplement   string              `json:"deliveryComplement,omitempty"`
	DeliveryNeighborhood string              `json:"deliveryNeighborhood"`
	DeliveryCity         string              `json:"deliveryCity"`
	DeliveryState        string              `json:"deliveryState"`
	DeliveryZipCode      string              `json:"deliveryZipCode"`
	DeliveryLatitude     decimal.NullDecimal `json:"deliveryLatitude"`
	DeliveryLongitude    decimal.NullDecimal `json:"deliveryLongitude"`
	Items                []OrderItemRequest  `json:"items"`
	Notes                string              `json:"notes,omitempty"`
	DeliveryFee          decimal.NullDecimal `json:"deliveryFee"`
	CouponCode           string              `json:"couponCode,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status                string `json:"status"`
	EstimatedDeliveryTime *int   `json:"estimatedDeliveryTime,omitempty"`
	CancellationReason    string `json:"cancellationReason,omitempty"`
}

type ApplyDiscountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type OrderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Notes       string          `json:"notes,omitempty"`
}

type OrderResponse struct {
	ID                    uuid.UUID           `json:"id"`
	CustomerID            uuid.UUID           `json:"customerId"`
	RestaurantID          uuid.UUID           `json:"restaurantId"`
	Status                string              `json:"status"`
	DeliveryStreet        string              `json:"deliveryStreet"`
	DeliveryNumber        string              `json:"deliveryNumber"`
	DeliveryComplement    string              `json:"deliveryComplement,omitempty"`
	DeliveryNeighborhood  string              `json:"deliveryNeighborhood"`
	DeliveryCity          string              `json:"deliveryCity"`
	DeliveryState         string              `json:"deliveryState"`
	DeliveryZipCode       string              `json:"deliveryZipCode"`
	FullDeliveryAddress   string              `json:"fullDeliveryAddress"`
	DeliveryLatitude      decimal.NullDecimal `json:"deliveryLatitude"`
	DeliveryLongitude     decimal.NullDecimal `json:"deliveryLongitude"`
	Subtotal              decimal.Decimal     `json:"subtotal"`
	DeliveryFee           decimal.Decimal     `json:"deliveryFee"`
	Discount              decimal.Decimal     `json:"discount"`
	Total                 decimal.Decimal     `json:"total"`
	Items                 []OrderItemResponse `json:"items"`
	Notes                 string              `json:"notes,omitempty"`
	CouponCode            string              `json:"couponCode,omitempty"`
	CancellationReason    string              `json:"cancellationReason,omitempty"`
	EstimatedDeliveryTime *int                `json:"estimatedDeliveryTime,omitempty"`
	ConfirmedAt           *time.Time          `json:"confirmedAt,omitempty"`
	PreparingAt           *time.Time          `json:"preparingAt,omitempty"`
	ReadyAt               *time.Time          `json:"readyAt,omitempty"`
	PickedUpAt            *time.Time          `json:"pickedUpAt,omitempty"`
	DeliveredAt           *time.Time          `json:"deliveredAt,omitempty"`
	CancelledAt           *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
}

type ErrorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (r CreateOrderRequest) ToInput() service.CreateOrderInput {
	items := make([]service.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, service.ItemInput{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Note:      item.Notes,
		})
	}

	deliveryFee := decimal.Zero
	if r.DeliveryFee.Valid {
		deliveryFee = r.DeliveryFee.Decimal
	}

	return service.CreateOrderInput{
		CustomerID:   r.CustomerID,
		RestaurantID: r.RestaurantID,
		Address: model.Address{
			Street:       r.DeliveryStreet,
			Number:       r.DeliveryNumber,
			Complement:   r.DeliveryComplement,
			Neighborhood: r.DeliveryNeighborhood,
			City:         r.DeliveryCity,
			State:        r.DeliveryState,
			ZipCode:      r.DeliveryZipCode,
			Latitude:     r.DeliveryLatitude,
			Longitude:    r.DeliveryLongitude,
		},
		Items:       items,
		Note:        r.Notes,
		DeliveryFee: deliveryFee,
		CouponCode:  r.CouponCode,
	}
}

// ToInput fails with model.ErrInvalidArgument on an unknown status.
func (r UpdateOrderStatusRequest) ToInput() (service.UpdateStatusInput, error) {
	status, err := model.ParseOrderStatus(r.Status)
	if err != nil {
		return service.UpdateStatusInput{}, err
	}

	input := service.UpdateStatusInput{
		Status:             status,
		CancellationReason: r.CancellationReason,
	}
	if r.EstimatedDeliveryTime != nil {
		input.EstimatedDeliveryMinutes = *r.EstimatedDeliveryTime
	}
	return input, nil
}

func NewOrderResponse(order *model.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
			Notes:       item.Note,
		})
	}

	lifecycle := order.Lifecycle()
	totals := order.Totals()
	return OrderResponse{
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
		FullDeliveryAddress:   order.FullAddressText(),
		DeliveryLatitude:      order.Address.Latitude,
		DeliveryLongitude:     order.Address.Longitude,
		Subtotal:              totals.Subtotal,
		DeliveryFee:           totals.DeliveryFee,
		Discount:              totals.Discount,
		Total:                 totals.Total,
		Items:                 items,
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
	}
}

func NewOrderResponses(orders []*model.Order) []OrderResponse {
	responses := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, NewOrderResponse(order))
	}
	return responses
}
