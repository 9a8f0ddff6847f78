package riskrule

import "github.com/joripage/fixmatch/pkg/orderbook"

type RiskRule interface {
	Check(order *orderbook.Order) error
}
