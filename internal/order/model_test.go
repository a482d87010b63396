package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/order"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from order.Status
		to   order.Status
		want bool
	}{
		{order.StatusPending, order.StatusProcessing, true},
		{order.StatusPending, order.StatusCompleted, true},
		{order.StatusPending, order.StatusCancelled, true},
		{order.StatusProcessing, order.StatusCompleted, true},
		{order.StatusProcessing, order.StatusCancelled, true},
		{order.StatusProcessing, order.StatusPending, false},
		{order.StatusCompleted, order.StatusPending, false},
		{order.StatusCompleted, order.StatusCancelled, false},
		{order.StatusCancelled, order.StatusCompleted, false},
		{order.Status("shipped"), order.StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}
