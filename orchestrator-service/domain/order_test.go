package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcart/order-system/shared/models"
)

func TestValidateOrder_Totals(t *testing.T) {
	tests := []struct {
		name             string
		items            []Item
		expectedSubtotal float64
		expectedTax      float64
		expectedShipping float64
		expectedTotal    float64
	}{
		{
			name:             "single item with flat shipping",
			items:            []Item{{ProductID: "p1", Quantity: 2, Price: 29.99}},
			expectedSubtotal: 59.98,
			expectedTax:      4.80,
			expectedShipping: 9.99,
			expectedTotal:    74.77,
		},
		{
			name:             "free shipping above threshold",
			items:            []Item{{ProductID: "p1", Quantity: 3, Price: 40.00}},
			expectedSubtotal: 120.00,
			expectedTax:      9.60,
			expectedShipping: 0,
			expectedTotal:    129.60,
		},
		{
			name:             "subtotal exactly at threshold still pays shipping",
			items:            []Item{{ProductID: "p1", Quantity: 1, Price: 100.00}},
			expectedSubtotal: 100.00,
			expectedTax:      8.00,
			expectedShipping: 9.99,
			expectedTotal:    117.99,
		},
		{
			name: "multiple items",
			items: []Item{
				{ProductID: "p1", Quantity: 1, Price: 19.99},
				{ProductID: "p2", Quantity: 2, Price: 5.25},
			},
			expectedSubtotal: 30.49,
			expectedTax:      2.44,
			expectedShipping: 9.99,
			expectedTotal:    42.92,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validation, err := ValidateOrder(models.GenerateUUID(), "cust_1", tt.items)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedSubtotal, validation.Subtotal)
			assert.Equal(t, tt.expectedTax, validation.Tax)
			assert.Equal(t, tt.expectedShipping, validation.Shipping)
			assert.Equal(t, tt.expectedTotal, validation.Total)
			assert.Equal(t, len(tt.items), validation.ItemCount)
		})
	}
}

func TestValidateOrder_Malformed(t *testing.T) {
	tests := []struct {
		name              string
		customerID        string
		items             []Item
		expectedViolation string
	}{
		{
			name:              "no items",
			customerID:        "cust_1",
			items:             nil,
			expectedViolation: "order must contain at least one item",
		},
		{
			name:              "missing product id",
			customerID:        "cust_1",
			items:             []Item{{Quantity: 1, Price: 10}},
			expectedViolation: "items[0]: product id is required",
		},
		{
			name:              "zero quantity",
			customerID:        "cust_1",
			items:             []Item{{ProductID: "p1", Price: 10}},
			expectedViolation: "items[0]: quantity must be positive",
		},
		{
			name:              "negative quantity",
			customerID:        "cust_1",
			items:             []Item{{ProductID: "p1", Quantity: -2, Price: 10}},
			expectedViolation: "items[0]: quantity must be positive",
		},
		{
			name:              "missing price",
			customerID:        "cust_1",
			items:             []Item{{ProductID: "p1", Quantity: 1}},
			expectedViolation: "items[0]: price is required and must be positive",
		},
		{
			name:              "missing customer",
			customerID:        "",
			items:             []Item{{ProductID: "p1", Quantity: 1, Price: 10}},
			expectedViolation: "customer id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateOrder(models.GenerateUUID(), tt.customerID, tt.items)
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, validationErr.Violations, tt.expectedViolation)
		})
	}
}

func TestValidateOrder_Idempotent(t *testing.T) {
	orderID := models.GenerateUUID()
	items := []Item{{ProductID: "p1", Quantity: 2, Price: 29.99}}

	first, err := ValidateOrder(orderID, "cust_1", items)
	require.NoError(t, err)

	second, err := ValidateOrder(orderID, "cust_1", items)
	require.NoError(t, err)

	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, first.Subtotal, second.Subtotal)
	assert.Equal(t, first.Tax, second.Tax)
	assert.Equal(t, first.Shipping, second.Shipping)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 4.80, Round2(4.7984))
	assert.Equal(t, 74.77, Round2(74.7684))
	assert.Equal(t, 0.0, Round2(0))
}

func TestOutOfStockError(t *testing.T) {
	err := &OutOfStockError{ProductIDs: []string{"p1", "p7"}}
	assert.Equal(t, "items out of stock: p1, p7", err.Error())
}
