package domain

import "time"

// EventOrderCreated is the type of the event written for every new order.
const EventOrderCreated = "order.created"

// OrderCreatedEvent is the outbox payload for a committed order.
type OrderCreatedEvent struct {
	EventID    string           `json:"event_id"`
	Type       string           `json:"type"`
	OrderID    string           `json:"order_id"`
	CustomerID string           `json:"customer_id"`
	Items      []OrderEventItem `json:"items"`
	Total      string           `json:"total"`
	CreatedAt  time.Time        `json:"created_at"`
}

type OrderEventItem struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

// NewOrderCreatedEvent formats prices and total with PriceScale decimals.
func NewOrderCreatedEvent(eventID string, o *Order) OrderCreatedEvent {
	items := make([]OrderEventItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderEventItem{
			ProductID: it.ProductID,
			Price:     it.Price.StringFixed(PriceScale),
			Quantity:  it.Quantity,
		}
	}
	return OrderCreatedEvent{
		EventID:    eventID,
		Type:       EventOrderCreated,
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Items:      items,
		Total:      o.Total().StringFixed(PriceScale),
		CreatedAt:  o.CreatedAt,
	}
}
