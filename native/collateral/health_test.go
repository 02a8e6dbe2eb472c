package collateral

import (
	"math/big"
	"testing"
)

func TestHealthFactorZeroDebtSentinel(t *testing.T) {
	fx := newFixture(t)
	user := makeAddress(0x10)

	// No position at all.
	ratio, err := fx.engine.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if ratio.Cmp(maxHealthFactor) != 0 {
		t.Fatalf("expected sentinel maximum, got %s", ratio)
	}

	// Collateral without debt reports the same sentinel.
	fx.token.setBalance(user, units(10))
	if err := fx.engine.DepositCollateral(user, fx.asset, units(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	ratio, err = fx.engine.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if ratio.Cmp(maxHealthFactor) != 0 {
		t.Fatalf("expected sentinel maximum with zero debt, got %s", ratio)
	}
}

func TestHealthFactorRatio(t *testing.T) {
	fx := newFixture(t)
	user := makeAddress(0x10)
	fx.token.setBalance(user, units(10))
	if err := fx.engine.DepositCollateralAndMint(user, fx.asset, units(10), units(5000)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	// Collateral value 20000, threshold 50% -> adjusted 10000; debt 5000
	// yields a ratio of exactly 2.0.
	ratio, err := fx.engine.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(2), precision)
	if ratio.Cmp(want) != 0 {
		t.Fatalf("unexpected ratio: got %s want %s", ratio, want)
	}
}

func TestHealthFactorTracksPrice(t *testing.T) {
	fx := newFixture(t)
	user := makeAddress(0x10)
	fx.token.setBalance(user, units(10))
	if err := fx.engine.DepositCollateralAndMint(user, fx.asset, units(10), units(5000)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	fx.feed.Update(big.NewInt(900_00000000), 8)
	ratio, err := fx.engine.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	// Value 9000, adjusted 4500, debt 5000 -> 0.9.
	want := new(big.Int).Mul(big.NewInt(9), pow10(17))
	if ratio.Cmp(want) != 0 {
		t.Fatalf("unexpected ratio after price drop: got %s want %s", ratio, want)
	}
	if ratio.Cmp(minHealthFactor) >= 0 {
		t.Fatal("position should be below minimum after price drop")
	}
}

func TestRiskParametersValidate(t *testing.T) {
	if err := DefaultRiskParameters().Validate(); err != nil {
		t.Fatalf("default params should validate: %v", err)
	}
	if err := (RiskParameters{LiquidationThresholdBps: 0}).Validate(); err == nil {
		t.Fatal("zero threshold must fail")
	}
	if err := (RiskParameters{LiquidationThresholdBps: 10_001}).Validate(); err == nil {
		t.Fatal("threshold above 100% must fail")
	}
	if err := (RiskParameters{LiquidationThresholdBps: 5_000, LiquidationBonusBps: 10_001}).Validate(); err == nil {
		t.Fatal("bonus above 100% must fail")
	}
}
