package entity

import "fmt"

// OrderStatus is the lifecycle stage of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// position along the forward path; cancelled sits outside it.
var statusRank = map[OrderStatus]int{
	StatusPending:   1,
	StatusConfirmed: 2,
	StatusPreparing: 3,
	StatusReady:     4,
	StatusDelivered: 5,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

// Terminal reports whether no transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition validates moving an order from s to next. Only forward moves
// are allowed, skips included, plus cancellation from any non-terminal state.
func (s OrderStatus) CanTransition(next OrderStatus) error {
	if !next.Valid() {
		return &ValidationError{
			Message: fmt.Sprintf("invalid status %q", next),
			Errors:  []FieldError{{Field: "status", Message: "Invalid status"}},
		}
	}
	if s.Terminal() {
		return &ValidationError{Message: fmt.Sprintf("order is %s and can no longer change status", s)}
	}
	if next == StatusCancelled {
		return nil
	}
	if statusRank[next] <= statusRank[s] {
		return &ValidationError{Message: fmt.Sprintf("cannot move order from %s to %s", s, next)}
	}
	return nil
}
