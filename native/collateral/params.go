package collateral

import "fmt"

// RiskParameters groups the safety limits governing collateralized minting,
// expressed in basis points for deterministic accounting.
type RiskParameters struct {
	// LiquidationThresholdBps is the share of raw collateral value counted
	// toward solvency. 5_000 bps means half of the collateral value backs
	// debt, i.e. a 200% overcollateralization requirement.
	LiquidationThresholdBps uint64
	// LiquidationBonusBps is the extra collateral share awarded to a
	// liquidator on top of the debt-equivalent quantity seized.
	LiquidationBonusBps uint64
}

// DefaultRiskParameters mirrors the canonical 200% collateralization and 10%
// liquidation bonus configuration.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		LiquidationThresholdBps: 5_000,
		LiquidationBonusBps:     1_000,
	}
}

// Validate rejects parameter combinations that would break the solvency rule.
func (p RiskParameters) Validate() error {
	if p.LiquidationThresholdBps == 0 {
		return fmt.Errorf("collateral engine: liquidation threshold must be positive")
	}
	if p.LiquidationThresholdBps > 10_000 {
		return fmt.Errorf("collateral engine: liquidation threshold %d exceeds 100%%", p.LiquidationThresholdBps)
	}
	if p.LiquidationBonusBps > 10_000 {
		return fmt.Errorf("collateral engine: liquidation bonus %d exceeds 100%%", p.LiquidationBonusBps)
	}
	return nil
}
