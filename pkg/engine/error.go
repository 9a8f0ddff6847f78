package engine

import "errors"

var (
	ErrEngineStopped      = errors.New("engine stopped")
	ErrQueueFull          = errors.New("request queue full")
	ErrMissingSymbol      = errors.New("missing symbol")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidStopPrice   = errors.New("invalid stop price")
	ErrInvalidSide        = errors.New("invalid side")
	ErrInvalidOrderType   = errors.New("invalid order type")
	ErrInvalidTimeInForce = errors.New("invalid time in force")
)
