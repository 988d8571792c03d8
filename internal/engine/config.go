package engine

import "github.com/shopspring/decimal"

// Config holds the per-symbol validation and fee parameters spec.md §6
// names under "Configuration". One Config is shared by every engine
// spawned from the same top-level config.Config (internal/config).
type Config struct {
	MaxOrderQuantity   decimal.Decimal
	MaxOrderPrice      decimal.Decimal
	MakerFeeRate       decimal.Decimal
	TakerFeeRate       decimal.Decimal
	TradeHistoryCap    int
	DepthLevelsDefault int
}
