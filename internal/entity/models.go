package entity

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a menu item in the store.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Active      bool            `json:"isActive"`
	Stock       int             `json:"stock"`
	Revision    int64           `json:"revision"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Validate checks the fields an admin write must satisfy.
func (p Product) Validate() error {
	var errs []FieldError
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "Name is required"})
	}
	if p.Price.IsNegative() {
		errs = append(errs, FieldError{Field: "price", Message: "Price must not be negative"})
	}
	if p.Stock < 0 {
		errs = append(errs, FieldError{Field: "stock", Message: "Stock must not be negative"})
	}
	if len(errs) > 0 {
		return &ValidationError{Message: "invalid product", Errors: errs}
	}
	return nil
}

// CustomerInfo is the contact block captured at checkout.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

var phonePattern = regexp.MustCompile(`^\+?[\d\s-]{8,}$`)

// Validate returns field errors for missing or malformed contact data.
func (c CustomerInfo) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, FieldError{Field: "customerInfo.name", Message: "Name is required"})
	}
	if _, err := mail.ParseAddress(c.Email); err != nil || strings.ContainsAny(c.Email, "<> ") {
		errs = append(errs, FieldError{Field: "customerInfo.email", Message: "Invalid email"})
	}
	if !phonePattern.MatchString(c.Phone) {
		errs = append(errs, FieldError{Field: "customerInfo.phone", Message: "Invalid phone number"})
	}
	return errs
}

// OrderItem is a line item within an order. It is a copy of the product
// at order time, not a live reference.
type OrderItem struct {
	ProductID int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is price × quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a customer order.
type Order struct {
	ID        string          `json:"_id"`
	Customer  CustomerInfo    `json:"customerInfo"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	Revision  int64           `json:"revision"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ComputeTotal sums the line subtotals.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// --- Commands ---

// OrderLine asks for a quantity of one product at checkout.
type OrderLine struct {
	ProductID int64 `json:"id"`
	Quantity  int   `json:"quantity"`
}

// PlaceOrder is a command to create a new order. Prices and totals are
// resolved by the server.
type PlaceOrder struct {
	OrderID  string       `json:"-"`
	Customer CustomerInfo `json:"customerInfo"`
	Lines    []OrderLine  `json:"items"`
}

// Validate checks the request shape before any product lookup happens.
func (c PlaceOrder) Validate() error {
	errs := c.Customer.Validate()
	if len(c.Lines) == 0 {
		errs = append(errs, FieldError{Field: "items", Message: "Items are required"})
	}
	for _, line := range c.Lines {
		if line.ProductID <= 0 {
			errs = append(errs, FieldError{Field: "items.id", Message: "Invalid item ID"})
		}
		if line.Quantity < 1 {
			errs = append(errs, FieldError{Field: "items.quantity", Message: "Invalid quantity"})
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Message: "invalid order", Errors: errs}
	}
	return nil
}

// UpdateOrderStatus is a command to move an order through its lifecycle.
type UpdateOrderStatus struct {
	OrderID string      `json:"-"`
	Status  OrderStatus `json:"status"`
}
