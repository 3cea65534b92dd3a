package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusReady, true},
		{StatusConfirmed, StatusPreparing, true},
		{StatusReady, StatusDelivered, true},
		{StatusPreparing, StatusCancelled, true},
		{StatusReady, StatusConfirmed, false},
		{StatusPending, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusPending, OrderStatus("completed"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := tt.from.CanTransition(tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestOrderLifecycleScenario(t *testing.T) {
	status := StatusPending

	require.NoError(t, status.CanTransition(StatusReady))
	status = StatusReady

	assert.True(t, IsValidation(status.CanTransition(StatusConfirmed)))

	require.NoError(t, status.CanTransition(StatusCancelled))
	status = StatusCancelled

	for s := range statusRank {
		assert.Error(t, status.CanTransition(s))
	}
	assert.Error(t, status.CanTransition(StatusCancelled))
}

func TestPlaceOrderValidate(t *testing.T) {
	valid := PlaceOrder{
		Customer: CustomerInfo{Name: "Ada", Email: "ada@example.com", Phone: "+33 6 12 34 56 78"},
		Lines:    []OrderLine{{ProductID: 1, Quantity: 2}},
	}
	require.NoError(t, valid.Validate())

	bad := PlaceOrder{
		Customer: CustomerInfo{Name: " ", Email: "not-an-email", Phone: "12"},
		Lines:    []OrderLine{{ProductID: 0, Quantity: 0}},
	}
	err := bad.Validate()
	require.Error(t, err)

	var v *ValidationError
	require.ErrorAs(t, err, &v)
	fields := make(map[string]bool)
	for _, fe := range v.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["customerInfo.name"])
	assert.True(t, fields["customerInfo.email"])
	assert.True(t, fields["customerInfo.phone"])
	assert.True(t, fields["items.id"])
	assert.True(t, fields["items.quantity"])

	empty := valid
	empty.Lines = nil
	assert.True(t, IsValidation(empty.Validate()))
}

func TestProductValidate(t *testing.T) {
	p := Product{Name: "Burger", Price: decimal.NewFromInt(10), Stock: 3}
	require.NoError(t, p.Validate())

	p.Price = decimal.NewFromInt(-1)
	assert.True(t, IsValidation(p.Validate()))
}

func TestComputeTotal(t *testing.T) {
	items := []OrderItem{
		{ProductID: 1, Price: decimal.RequireFromString("11.99"), Quantity: 2},
		{ProductID: 2, Price: decimal.RequireFromString("8.99"), Quantity: 1},
	}
	assert.Equal(t, "32.97", ComputeTotal(items).StringFixed(2))
}

func TestChangeEventValidate(t *testing.T) {
	assert.NoError(t, NewProductCreated(Product{ID: 1}).Validate())
	assert.NoError(t, NewProductDeleted(1, 2).Validate())
	assert.NoError(t, NewOrderUpdated(Order{ID: "abc"}).Validate())

	assert.Error(t, ChangeEvent{Kind: ProductUpdated}.Validate())
	assert.Error(t, ChangeEvent{Kind: ProductDeleted}.Validate())
	assert.Error(t, ChangeEvent{Kind: OrderCreated, Order: &Order{}}.Validate())
	assert.Error(t, ChangeEvent{Kind: "order.deleted"}.Validate())
}
