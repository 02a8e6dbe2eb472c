package collateral

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const internalDecimals = 18

// Valuation converts collateral quantities to the common 18-decimal value
// unit using oracle prices, and performs the inverse conversion used when
// sizing liquidation seizures.
type Valuation struct {
	registry   *Registry
	maxFeedAge time.Duration
	now        func() time.Time
}

// NewValuation constructs a valuation service over the registry. maxFeedAge
// bounds how old a price round may be before it is rejected as stale; zero
// disables the staleness check.
func NewValuation(registry *Registry, maxFeedAge time.Duration) *Valuation {
	return &Valuation{registry: registry, maxFeedAge: maxFeedAge, now: time.Now}
}

// latestPrice resolves the current usable price for the asset along with the
// multiplier that lifts the feed's native decimals up to the internal
// precision. Non-positive answers and stale rounds are hard failures.
func (v *Valuation) latestPrice(asset common.Address) (*big.Int, *big.Int, error) {
	feed := v.registry.FeedOf(asset)
	if feed == nil {
		return nil, nil, ErrAssetNotAccepted
	}
	round, err := feed.LatestRound()
	if err != nil {
		return nil, nil, err
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, nil, ErrInvalidPrice
	}
	if round.Decimals > internalDecimals {
		return nil, nil, ErrInvalidPrice
	}
	if v.maxFeedAge > 0 && v.now().Sub(round.UpdatedAt) > v.maxFeedAge {
		return nil, nil, ErrStalePrice
	}
	adjustment := pow10(uint(internalDecimals - round.Decimals))
	return round.Answer, adjustment, nil
}

// ValueOf converts a collateral quantity into the common value unit:
// price * adjustment * qty / 1e18. Division floors toward zero, losing at
// most one smallest value unit.
func (v *Valuation) ValueOf(asset common.Address, qty *big.Int) (*big.Int, error) {
	if qty == nil {
		return big.NewInt(0), nil
	}
	price, adjustment, err := v.latestPrice(asset)
	if err != nil {
		return nil, err
	}
	scaled := new(big.Int).Mul(price, adjustment)
	return mulDiv(scaled, qty, precision), nil
}

// QuantityFromValue is the inverse conversion: value * 1e18 / (price *
// adjustment), floored. A non-positive oracle answer fails with
// ErrInvalidPrice rather than silently producing zero.
func (v *Valuation) QuantityFromValue(asset common.Address, value *big.Int) (*big.Int, error) {
	if value == nil {
		return big.NewInt(0), nil
	}
	price, adjustment, err := v.latestPrice(asset)
	if err != nil {
		return nil, err
	}
	scaled := new(big.Int).Mul(price, adjustment)
	return mulDiv(value, precision, scaled), nil
}

// TotalCollateralValue sums the valuation of every accepted asset in registry
// order. Zero balances contribute zero but are not skipped, keeping the
// summation order deterministic.
func (v *Valuation) TotalCollateralValue(pos *Position) (*big.Int, error) {
	total := big.NewInt(0)
	if pos == nil {
		return total, nil
	}
	for _, asset := range v.registry.Assets() {
		value, err := v.ValueOf(asset, pos.CollateralOf(asset))
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}
