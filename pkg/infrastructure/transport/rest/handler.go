package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/service"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/infrastructure/transport"
)

type Handler struct {
	orders service.Order
	logger logrus.FieldLogger
}

func NewHandler(orders service.Order, logger logrus.FieldLogger) *Handler {
	return &Handler{
		orders: orders,
		logger: logger,
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var request transport.CreateOrderRequest
	if !h.decode(w, r, &request) {
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), request.ToInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transport.NewOrderResponse(order))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transport.NewOrderResponse(order))
}

func (h *Handler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.pathID(w, r, "customerId")
	if !ok {
		return
	}
	orders, err := h.orders.ListByCustomer(r.Context(), customerID)
	h.writeOrders(w, r, orders, err)
}

func (h *Handler) ListByRestaurant(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := h.pathID(w, r, "restaurantId")
	if !ok {
		return
	}
	orders, err := h.orders.ListByRestaurant(r.Context(), restaurantID)
	h.writeOrders(w, r, orders, err)
}

func (h *Handler) ListActiveByRestaurant(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := h.pathID(w, r, "restaurantId")
	if !ok {
		return
	}
	orders, err := h.orders.ListActiveByRestaurant(r.Context(), restaurantID)
	h.writeOrders(w, r, orders, err)
}

func (h *Handler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := model.ParseOrderStatus(chi.URLParam(r, "status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.orders.ListByStatus(r.Context(), status)
	h.writeOrders(w, r, orders, err)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var request transport.UpdateOrderStatusRequest
	if !h.decode(w, r, &request) {
		return
	}
	input, err := request.ToInput()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), orderID, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transport.NewOrderResponse(order))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), orderID, r.URL.Query().Get("reason"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transport.NewOrderResponse(order))
}

func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var request transport.ApplyDiscountRequest
	if !h.decode(w, r, &request) {
		return
	}

	order, err := h.orders.ApplyDiscount(r.Context(), orderID, request.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transport.NewOrderResponse(order))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.writeError(w, r, errors.Wrapf(model.ErrInvalidArgument, "invalid %s %q", param, chi.URLParam(r, param)))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, errors.Wrapf(model.ErrInvalidArgument, "malformed request body: %s", err))
		return false
	}
	return true
}

func (h *Handler) writeOrders(w http.ResponseWriter, r *http.Request, orders []*model.Order, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transport.NewOrderResponses(orders))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	message := err.Error()
	logger := h.logger.WithError(err).WithField("path", r.URL.Path)
	if status == http.StatusInternalServerError {
		logger.Error("request failed")
		message = "an unexpected error occurred"
	} else {
		logger.Warn("request rejected")
	}

	writeJSON(w, status, transport.ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidStateTransition),
		errors.Is(err, model.ErrOrderConcurrentModification),
		errors.Is(err, model.ErrRestaurantNotAcceptingOrders):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
