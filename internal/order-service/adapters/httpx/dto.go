package httpx

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	CustomerID string                `json:"customer_id"`
	Products   []RequestedProductDTO `json:"products"`
}

type RequestedProductDTO struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// OrderResponse carries prices and totals as fixed two-decimal strings.
type OrderResponse struct {
	ID         string              `json:"id"`
	CustomerID string              `json:"customer_id"`
	Items      []OrderItemResponse `json:"items"`
	Total      string              `json:"total"`
	CreatedAt  string              `json:"created_at"`
	UpdatedAt  string              `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

// ErrorResponse is returned with every 4xx and 5xx answer. ProductIDs lists
// the offending products when the error concerns them.
type ErrorResponse struct {
	Error      string   `json:"error"`
	Message    string   `json:"message,omitempty"`
	ProductIDs []string `json:"product_ids,omitempty"`
}
