package session

import (
	"errors"
)

var (
	// ErrCapacityExceeded signals an add on a line already at its stock ceiling.
	ErrCapacityExceeded = errors.New("cart line already at max stock")
	// ErrLineNotFound signals a remove/reduce on a product absent from the cart.
	ErrLineNotFound = errors.New("product not in cart")
	// ErrInvalidLine signals a malformed product descriptor.
	ErrInvalidLine = errors.New("invalid cart line")
)

// The cart engine is a set of pure functions over a line slice. Every
// operation returns the full resulting cart or an error, never a partial
// state, so callers can always resynchronize from the return value.

func addLine(cart []CartLine, line CartLine) ([]CartLine, error) {
	if line.ProductID == 0 || line.Name == "" || line.Price <= 0 || line.Quantity == 0 || line.MaxStock == 0 {
		return nil, ErrInvalidLine
	}

	for i := range cart {
		if cart[i].ProductID != line.ProductID {
			continue
		}
		if cart[i].Quantity >= cart[i].MaxStock {
			return nil, ErrCapacityExceeded
		}
		next := cloneCart(cart)
		next[i].Quantity++
		return next, nil
	}

	next := cloneCart(cart)
	next = append(next, line)
	return next, nil
}

func removeLine(cart []CartLine, productID uint) ([]CartLine, error) {
	for i := range cart {
		if cart[i].ProductID != productID {
			continue
		}
		next := make([]CartLine, 0, len(cart)-1)
		next = append(next, cart[:i]...)
		next = append(next, cart[i+1:]...)
		return next, nil
	}
	return nil, ErrLineNotFound
}

func reduceLine(cart []CartLine, productID uint) ([]CartLine, error) {
	for i := range cart {
		if cart[i].ProductID != productID {
			continue
		}
		if cart[i].Quantity <= 1 {
			// quantity would hit zero, the line goes away instead
			return removeLine(cart, productID)
		}
		next := cloneCart(cart)
		next[i].Quantity--
		return next, nil
	}
	return nil, ErrLineNotFound
}
