package main

import (
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
)

func demoData() ([]domain.Customer, []domain.Product) {
	customers := []domain.Customer{
		{ID: "c-1", Name: "Ada Lovelace", Email: "ada@example.com"},
		{ID: "c-2", Name: "Alan Turing", Email: "alan@example.com"},
	}
	products := []domain.Product{
		{ID: "p-1", Name: "Mechanical keyboard", Price: decimal.RequireFromString("89.90"), Quantity: 25},
		{ID: "p-2", Name: "USB-C cable", Price: decimal.RequireFromString("9.99"), Quantity: 200},
		{ID: "p-3", Name: "27in monitor", Price: decimal.RequireFromString("249.00"), Quantity: 5},
	}
	return customers, products
}
