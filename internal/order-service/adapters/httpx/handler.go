package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/order-inventory/internal/order-service/app"
	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
)

const maxBodyBytes = 1 << 20

// OrderService is the application surface the transport needs.
type OrderService interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

var _ OrderService = (*app.OrderService)(nil)

// Handler serves the orders HTTP API.
type Handler struct {
	orders OrderService
}

// NewHandler returns a Handler backed by orders.
func NewHandler(orders OrderService) *Handler {
	return &Handler{orders: orders}
}

// CreateOrder handles POST /orders and answers 201 with the committed order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	in := app.CreateOrderInput{
		CustomerID: req.CustomerID,
		Products:   make([]domain.RequestedProduct, len(req.Products)),
	}
	for i, p := range req.Products {
		in.Products[i] = domain.RequestedProduct{ProductID: p.ID, Quantity: p.Quantity}
	}

	slog.InfoContext(r.Context(), "creating order",
		"request_id", middleware.GetReqID(r.Context()),
		"customer_id", req.CustomerID,
		"lines", len(req.Products),
	)

	order, err := h.orders.CreateOrder(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrderToResponse(order))
}

// GetOrderByID handles GET /orders/{id}.
func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func mapOrderToResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, it := range order.Items {
		items[i] = OrderItemResponse{
			ProductID: it.ProductID,
			Price:     it.Price.StringFixed(domain.PriceScale),
			Quantity:  it.Quantity,
		}
	}
	return OrderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Items:      items,
		Total:      order.Total().StringFixed(domain.PriceScale),
		CreatedAt:  order.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  order.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// writeDomainError maps the error taxonomy onto status codes. Storage details
// are not echoed to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	var stockErr *domain.StockError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:      "insufficient_stock",
			Message:    domain.ErrInsufficientStock.Error(),
			ProductIDs: stockErr.ProductIDs,
		})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrCustomerNotFound):
		writeError(w, http.StatusNotFound, "customer_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidProducts):
		writeError(w, http.StatusUnprocessableEntity, "invalid_products", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, "persistence_failure", "the order could not be stored, try again")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
