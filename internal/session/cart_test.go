package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func line(id uint, qty, maxStock uint) CartLine {
	return CartLine{
		ProductID: id,
		Name:      "Premium Coffee",
		Batch:     "100987324",
		Price:     12.99,
		ImgURL:    "./tmp/coffee.gif",
		Quantity:  qty,
		MaxStock:  maxStock,
	}
}

func TestAddLineNewProduct(t *testing.T) {
	cart, err := addLine(nil, line(7, 1, 3))
	require.NoError(t, err)
	require.Len(t, cart, 1)
	require.Equal(t, uint(1), cart[0].Quantity)
}

func TestAddLineIncrementsExisting(t *testing.T) {
	cart, err := addLine([]CartLine{line(7, 1, 3)}, line(7, 1, 3))
	require.NoError(t, err)
	require.Len(t, cart, 1)
	require.Equal(t, uint(2), cart[0].Quantity)
}

func TestAddLineCapacityExceeded(t *testing.T) {
	orig := []CartLine{line(7, 3, 3)}
	cart, err := addLine(orig, line(7, 1, 3))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Nil(t, cart)
	// no state change on rejection
	require.Equal(t, uint(3), orig[0].Quantity)
}

func TestAddLineValidation(t *testing.T) {
	bad := []CartLine{
		{},
		{ProductID: 7, Price: 12.99, Quantity: 1, MaxStock: 3},            // no name
		{ProductID: 7, Name: "x", Quantity: 1, MaxStock: 3},               // no price
		{ProductID: 7, Name: "x", Price: -1, Quantity: 1, MaxStock: 3},    // negative price
		{ProductID: 7, Name: "x", Price: 12.99, Quantity: 1, MaxStock: 0}, // no ceiling
	}
	for _, l := range bad {
		_, err := addLine(nil, l)
		require.ErrorIs(t, err, ErrInvalidLine)
	}
}

func TestRemoveLine(t *testing.T) {
	cart := []CartLine{line(7, 2, 3), line(8, 1, 5)}

	next, err := removeLine(cart, 7)
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.Equal(t, uint(8), next[0].ProductID)

	_, err = removeLine(next, 7)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestReduceLine(t *testing.T) {
	cart := []CartLine{line(7, 2, 3)}

	next, err := reduceLine(cart, 7)
	require.NoError(t, err)
	require.Equal(t, uint(1), next[0].Quantity)

	// quantity 1 reduces to removal, never to zero
	next, err = reduceLine(next, 7)
	require.NoError(t, err)
	require.Empty(t, next)

	_, err = reduceLine(next, 7)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestQuantityNeverBelowOne(t *testing.T) {
	cart := []CartLine{line(7, 3, 5)}
	var err error
	for i := 0; i < 3; i++ {
		cart, err = reduceLine(cart, 7)
		require.NoError(t, err)
		for _, l := range cart {
			require.GreaterOrEqual(t, l.Quantity, uint(1))
		}
	}
	require.Empty(t, cart)
}
