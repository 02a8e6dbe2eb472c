package collateral

import (
	"math/big"

	"dscvault/crypto"
)

// healthFactorFor computes the solvency ratio for a ledger entry:
//
//	adjusted = collateralValue * liquidationThreshold / 10_000
//	ratio    = adjusted * 1e18 / debt
//
// A debt-free position is always solvent regardless of collateral, so the
// division is skipped and the sentinel maximum returned instead.
func (e *Engine) healthFactorFor(pos *Position) (*big.Int, error) {
	if pos == nil || pos.Debt == nil || pos.Debt.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor), nil
	}
	collateralValue, err := e.valuation.TotalCollateralValue(pos)
	if err != nil {
		return nil, err
	}
	adjusted := mulDiv(collateralValue, new(big.Int).SetUint64(e.params.LiquidationThresholdBps), basisPoints)
	return mulDiv(adjusted, precision, pos.Debt), nil
}

// HealthFactor reports the current solvency ratio for a user. Side-effect
// free and safe to call outside a state-changing operation.
func (e *Engine) HealthFactor(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	return e.healthFactorFor(pos)
}

// assertSolvent fails with a HealthFactorError when the position's ratio sits
// below the minimum. It is the mandatory post-condition after every mint and
// redeem; deposits and burns can only improve the ratio and skip it.
func (e *Engine) assertSolvent(pos *Position) error {
	ratio, err := e.healthFactorFor(pos)
	if err != nil {
		return err
	}
	if ratio.Cmp(minHealthFactor) < 0 {
		return &HealthFactorError{Actual: ratio}
	}
	return nil
}
