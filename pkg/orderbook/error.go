package orderbook

import "errors"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderTerminal   = errors.New("order already terminal")
	ErrInvalidOrderQty = errors.New("invalid order quantity")
)
