package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("add item: %w", NewInsufficientStock("1", 5, 2))

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrEmptyCart))
	assert.Equal(t, CodeInsufficientStock, CodeOf(err))
	assert.True(t, IsDomainError(err))
	assert.False(t, IsDomainError(errors.New("disk full")))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t,
		"INSUFFICIENT_STOCK: requested 5, only 2 available (product=1)",
		NewInsufficientStock("1", 5, 2).Error())
	assert.Equal(t,
		"EMPTY_CART: cart has no items (client=alice)",
		NewEmptyCart("alice").Error())
	assert.Equal(t, "EMPTY_CART", ErrEmptyCart.Error())
	assert.Equal(t,
		"CONCURRENT_UPDATE: gave up after 3 conflicting attempts",
		NewConcurrentUpdate(3).Error())
}
