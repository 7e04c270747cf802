package demoshop

import (
	"github.com/entrhq/authcache/pkg/accounts"
)

// Item is a product that can be put in a cart.
type Item struct {
	ID    int64   `json:"id,omitempty"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Order is one entry of a user's order history.
type Order struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Total  float64 `json:"total"`
	Status string  `json:"status"`
}

// Catalog is what the "add item" button picks from.
var Catalog = []Item{
	{Name: "Laptop", Price: 999.99},
	{Name: "Mouse", Price: 29.99},
	{Name: "Keyboard", Price: 79.99},
	{Name: "Monitor", Price: 299.99},
	{Name: "Headphones", Price: 149.99},
	{Name: "Webcam", Price: 89.99},
}

var ordersByRole = map[accounts.Role][]Order{
	accounts.RoleAdmin: {
		{ID: "ORD-007", Date: "2024-01-28", Total: 59.98, Status: "Delivered"},
	},
	accounts.RoleStudent: {
		{ID: "ORD-001", Date: "2024-01-15", Total: 129.99, Status: "Delivered"},
	},
	accounts.RolePremium: {
		{ID: "ORD-002", Date: "2024-01-20", Total: 459.98, Status: "Shipped"},
		{ID: "ORD-003", Date: "2024-01-10", Total: 89.99, Status: "Delivered"},
	},
	accounts.RoleVIP: {
		{ID: "ORD-004", Date: "2024-01-25", Total: 1299.97, Status: "Processing"},
		{ID: "ORD-005", Date: "2024-01-18", Total: 349.98, Status: "Shipped"},
		{ID: "ORD-006", Date: "2024-01-05", Total: 199.99, Status: "Delivered"},
	},
}

// OrdersFor returns the mock order history for a role.
func OrdersFor(role accounts.Role) []Order {
	orders := ordersByRole[role]
	out := make([]Order, len(orders))
	copy(out, orders)
	return out
}

// CartTotal sums item prices.
func CartTotal(items []Item) float64 {
	var total float64
	for _, it := range items {
		total += it.Price
	}
	return total
}
