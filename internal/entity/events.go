package entity

import (
	"errors"
	"fmt"
)

// Topics a session can join.
const (
	TopicProducts = "products"
	TopicAdmin    = "admin"
)

// OrderTopic is the per-order topic a customer joins to track one order.
func OrderTopic(orderID string) string {
	return "order:" + orderID
}

// EventKind discriminates the ChangeEvent variants.
type EventKind string

const (
	ProductCreated EventKind = "product.created"
	ProductUpdated EventKind = "product.updated"
	ProductDeleted EventKind = "product.deleted"
	OrderCreated   EventKind = "order.created"
	OrderUpdated   EventKind = "order.updated"
)

// ChangeEvent describes a single committed create/update/delete of one entity.
// Created and updated variants carry the full entity; deletions carry the id.
type ChangeEvent struct {
	Kind      EventKind `json:"kind"`
	Product   *Product  `json:"product,omitempty"`
	Order     *Order    `json:"order,omitempty"`
	ProductID int64     `json:"productId,omitempty"`
	Revision  int64     `json:"revision"`
}

func (e ChangeEvent) EventType() string { return string(e.Kind) }

func NewProductCreated(p Product) ChangeEvent {
	return ChangeEvent{Kind: ProductCreated, Product: &p, Revision: p.Revision}
}

func NewProductUpdated(p Product) ChangeEvent {
	return ChangeEvent{Kind: ProductUpdated, Product: &p, Revision: p.Revision}
}

func NewProductDeleted(id, revision int64) ChangeEvent {
	return ChangeEvent{Kind: ProductDeleted, ProductID: id, Revision: revision}
}

func NewOrderCreated(o Order) ChangeEvent {
	return ChangeEvent{Kind: OrderCreated, Order: &o, Revision: o.Revision}
}

func NewOrderUpdated(o Order) ChangeEvent {
	return ChangeEvent{Kind: OrderUpdated, Order: &o, Revision: o.Revision}
}

// Validate rejects events whose payload does not match their kind.
func (e ChangeEvent) Validate() error {
	switch e.Kind {
	case ProductCreated, ProductUpdated:
		if e.Product == nil {
			return fmt.Errorf("%s event without product", e.Kind)
		}
	case ProductDeleted:
		if e.ProductID <= 0 {
			return fmt.Errorf("%s event without product id", e.Kind)
		}
	case OrderCreated, OrderUpdated:
		if e.Order == nil || e.Order.ID == "" {
			return fmt.Errorf("%s event without order", e.Kind)
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

// FrameType discriminates messages on the real-time channel.
type FrameType string

const (
	FrameJoin   FrameType = "join"
	FrameLeave  FrameType = "leave"
	FrameJoined FrameType = "joined"
	FrameLeft   FrameType = "left"
	FrameEvent  FrameType = "event"
	FrameError  FrameType = "error"
)

// Frame is the envelope exchanged over the WebSocket connection.
type Frame struct {
	Type    FrameType    `json:"type"`
	Topic   string       `json:"topic,omitempty"`
	Event   *ChangeEvent `json:"event,omitempty"`
	Message string       `json:"message,omitempty"`
}

var ErrEmptyTopic = errors.New("topic must not be empty")
