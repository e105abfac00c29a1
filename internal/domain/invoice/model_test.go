package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotal(t *testing.T) {
	items := []LineItem{
		{Quantity: 3, UnitPriceCents: 1999},
		{Quantity: 1, UnitPriceCents: 0},
		{Quantity: 2, UnitPriceCents: 500},
	}
	assert.Equal(t, int64(3*1999+2*500), Total(items))
	assert.Equal(t, int64(0), Total(nil))
}

func TestStatus(t *testing.T) {
	assert.True(t, (&Invoice{Status: StatusPaid}).IsPaid())
	assert.False(t, (&Invoice{Status: StatusOverdue}).IsPaid())
	assert.False(t, Status("refunded").Valid())
	assert.True(t, StatusOverdue.Valid())
}
