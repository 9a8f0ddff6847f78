package riskrule

import (
	"fmt"

	"github.com/joripage/fixmatch/pkg/orderbook"
)

type MaxQuantityRule struct {
	Max int64
}

func (r *MaxQuantityRule) Check(order *orderbook.Order) error {
	if r.Max <= 0 {
		return nil
	}
	if order.Quantity > r.Max {
		return fmt.Errorf("quantity %d above limit %d", order.Quantity, r.Max)
	}
	return nil
}

// OpenOrderLimitRule caps the number of resting orders per symbol. The
// count func is supplied by the engine so the rule stays stateless.
type OpenOrderLimitRule struct {
	Max   int
	Count func(symbol string) int
}

func (r *OpenOrderLimitRule) Check(order *orderbook.Order) error {
	if r.Max <= 0 || r.Count == nil {
		return nil
	}
	if n := r.Count(order.Symbol); n >= r.Max {
		return fmt.Errorf("open order limit %d reached for %s", r.Max, order.Symbol)
	}
	return nil
}
