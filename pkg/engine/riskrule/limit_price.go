package riskrule

import (
	"fmt"

	"github.com/joripage/fixmatch/pkg/orderbook"
)

// MaxPriceRule rejects limit prices above the configured ceiling. Market
// orders carry no price and pass.
type MaxPriceRule struct {
	Ceiling float64
}

func (r *MaxPriceRule) Check(order *orderbook.Order) error {
	if r.Ceiling <= 0 || order.Type == orderbook.MARKET {
		return nil
	}
	if order.Price > r.Ceiling {
		return fmt.Errorf("price %v above ceiling %v", order.Price, r.Ceiling)
	}
	return nil
}
