package collateral

import (
	"math/big"

	"dscvault/crypto"

	"github.com/ethereum/go-ethereum/common"
)

// Position maintains the collateral and debt ledger entry for a single user.
// Amounts are denominated in the smallest token unit and expressed as big
// integers to match on-chain precision. A position springs into existence on
// first deposit or mint; zero balances are a valid terminal state.
type Position struct {
	// Address is the unique account identifier owning this position.
	Address crypto.Address
	// Debt is the outstanding minted debt, adjusted only by mint and burn.
	Debt *big.Int
	// Collateral maps accepted asset identifiers to deposited quantities.
	Collateral map[common.Address]*big.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Address: p.Address}
	if p.Debt != nil {
		clone.Debt = new(big.Int).Set(p.Debt)
	}
	if p.Collateral != nil {
		clone.Collateral = make(map[common.Address]*big.Int, len(p.Collateral))
		for asset, qty := range p.Collateral {
			if qty != nil {
				clone.Collateral[asset] = new(big.Int).Set(qty)
			}
		}
	}
	return clone
}

// CollateralOf returns the deposited quantity for the asset, defaulting to
// zero when the asset has never been touched.
func (p *Position) CollateralOf(asset common.Address) *big.Int {
	if p == nil || p.Collateral == nil {
		return big.NewInt(0)
	}
	if qty, ok := p.Collateral[asset]; ok && qty != nil {
		return qty
	}
	return big.NewInt(0)
}

// AccountSummary reports the externally visible totals for a position.
type AccountSummary struct {
	// Debt is the total debt minted by the user.
	Debt *big.Int
	// CollateralValue is the oracle valuation of all deposited collateral,
	// normalized to the internal 18-decimal precision.
	CollateralValue *big.Int
}
