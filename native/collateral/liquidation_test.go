package collateral

import (
	"errors"
	"math/big"
	"testing"

	"dscvault/crypto"
)

// setupUnderwater deposits 10 units for the target, mints 5000 debt at price
// 2000, then drops the price to 900 so the health factor falls below minimum
// (backed value 4500 < debt 5000).
func setupUnderwater(t *testing.T) (*fixture, crypto.Address, crypto.Address) {
	t.Helper()
	fx := newFixture(t)
	target := makeAddress(0x20)
	liquidator := makeAddress(0x21)

	fx.token.setBalance(target, units(10))
	if err := fx.engine.DepositCollateralAndMint(target, fx.asset, units(10), units(5000)); err != nil {
		t.Fatalf("setup target: %v", err)
	}
	fx.debtToken.setBalance(liquidator, units(5000))
	fx.debtToken.supply.Add(fx.debtToken.supply, units(5000))

	fx.feed.Update(big.NewInt(900_00000000), 8)
	return fx, target, liquidator
}

func TestLiquidateHealthyTargetFails(t *testing.T) {
	fx := newFixture(t)
	target := makeAddress(0x20)
	liquidator := makeAddress(0x21)
	fx.token.setBalance(target, units(10))
	if err := fx.engine.DepositCollateralAndMint(target, fx.asset, units(10), units(5000)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := fx.engine.Liquidate(liquidator, fx.asset, target, units(100)); !errors.Is(err, ErrHealthFactorOk) {
		t.Fatalf("expected ErrHealthFactorOk, got %v", err)
	}
}

func TestLiquidatePartialCover(t *testing.T) {
	fx, target, liquidator := setupUnderwater(t)

	before, err := fx.engine.HealthFactor(target)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if before.Cmp(minHealthFactor) >= 0 {
		t.Fatalf("target should be underwater, ratio %s", before)
	}

	// Cover 2700 debt at price 900: base 3 units, +10% bonus = 3.3 units.
	seized, err := fx.engine.Liquidate(liquidator, fx.asset, target, units(2700))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(33), pow10(17)) // 3.3 units
	if seized.Cmp(want) != 0 {
		t.Fatalf("unexpected seized qty: got %s want %s", seized, want)
	}

	after, err := fx.engine.HealthFactor(target)
	if err != nil {
		t.Fatalf("health factor after: %v", err)
	}
	if after.Cmp(before) < 0 {
		t.Fatalf("liquidation must not lower target ratio: %s -> %s", before, after)
	}

	summary, err := fx.engine.AccountSummary(target)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Debt.Cmp(units(2300)) != 0 {
		t.Fatalf("unexpected remaining debt: %s", summary.Debt)
	}
	if fx.token.balanceOf(liquidator).Cmp(seized) != 0 {
		t.Fatalf("liquidator should hold seized collateral, got %s", fx.token.balanceOf(liquidator))
	}
	if fx.debtToken.balanceOf(liquidator).Cmp(units(2300)) != 0 {
		t.Fatalf("liquidator debt tokens should drop by cover, got %s", fx.debtToken.balanceOf(liquidator))
	}
}

func TestLiquidateZeroCover(t *testing.T) {
	fx, target, liquidator := setupUnderwater(t)
	if _, err := fx.engine.Liquidate(liquidator, fx.asset, target, big.NewInt(0)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
}

func TestLiquidateBonusExceedsCollateral(t *testing.T) {
	fx, target, liquidator := setupUnderwater(t)

	// Covering the full 5000 debt at price 900 needs 5000/900*1.1 ≈ 6.11
	// units; drop the price further so the requirement exceeds the deposited
	// 10 units and the seizure cannot be satisfied.
	fx.feed.Update(big.NewInt(500_00000000), 8)
	if _, err := fx.engine.Liquidate(liquidator, fx.asset, target, units(5000)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}

	summary, err := fx.engine.AccountSummary(target)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Debt.Cmp(units(5000)) != 0 {
		t.Fatalf("failed liquidation must not touch debt, got %s", summary.Debt)
	}
}

func TestLiquidateCoverExceedsDebt(t *testing.T) {
	fx, target, liquidator := setupUnderwater(t)
	fx.debtToken.setBalance(liquidator, units(9000))
	if _, err := fx.engine.Liquidate(liquidator, fx.asset, target, units(6000)); !errors.Is(err, ErrDebtUnderflow) {
		t.Fatalf("expected ErrDebtUnderflow, got %v", err)
	}
}

func TestLiquidateTransferFailureRestoresTarget(t *testing.T) {
	fx, target, liquidator := setupUnderwater(t)
	fx.token.failPush = true

	if _, err := fx.engine.Liquidate(liquidator, fx.asset, target, units(900)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	summary, err := fx.engine.AccountSummary(target)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Debt.Cmp(units(5000)) != 0 {
		t.Fatalf("target debt should be restored, got %s", summary.Debt)
	}
	// The burned cover is minted back to the liquidator.
	if fx.debtToken.balanceOf(liquidator).Cmp(units(5000)) != 0 {
		t.Fatalf("liquidator should be made whole, got %s", fx.debtToken.balanceOf(liquidator))
	}
}

func TestLiquidateInsolventLiquidatorRejected(t *testing.T) {
	fx, target, liquidator := setupUnderwater(t)

	// Give the liquidator an underwater position of their own, built at the
	// original price before the drop.
	fx.token.setBalance(liquidator, units(10))
	fx.feed.Update(big.NewInt(2000_00000000), 8)
	if err := fx.engine.DepositCollateralAndMint(liquidator, fx.asset, units(10), units(5000)); err != nil {
		t.Fatalf("setup liquidator: %v", err)
	}
	fx.feed.Update(big.NewInt(900_00000000), 8)

	_, err := fx.engine.Liquidate(liquidator, fx.asset, target, units(900))
	var hfErr *HealthFactorError
	if !errors.As(err, &hfErr) {
		t.Fatalf("expected health factor error for insolvent liquidator, got %v", err)
	}
}
