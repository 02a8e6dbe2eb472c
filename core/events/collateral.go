package events

import (
	"math/big"
	"strings"

	"dscvault/core/types"
	"dscvault/crypto"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const (
	// TypeCollateralDeposited is emitted when collateral enters engine custody.
	TypeCollateralDeposited = "collateral.deposited"
	// TypeCollateralRedeemed is emitted when collateral is returned to a user.
	TypeCollateralRedeemed = "collateral.redeemed"
	// TypeDebtMinted is emitted when debt tokens are minted against collateral.
	TypeDebtMinted = "collateral.debtMinted"
	// TypeDebtBurned is emitted when debt tokens are repaid and destroyed.
	TypeDebtBurned = "collateral.debtBurned"
	// TypeLiquidation is emitted when a third party liquidates a position.
	TypeLiquidation = "collateral.liquidation"
)

// CollateralDeposited captures a collateral deposit into engine custody.
type CollateralDeposited struct {
	User  crypto.Address
	Asset common.Address
	Qty   *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

// Event renders the structured deposit event for downstream consumers.
func (e CollateralDeposited) Event() *types.Event {
	attrs := map[string]string{
		"user":  e.User.String(),
		"asset": strings.ToLower(e.Asset.Hex()),
	}
	if e.Qty != nil {
		attrs["qty"] = e.Qty.String()
	}
	return &types.Event{Type: TypeCollateralDeposited, Attributes: attrs}
}

// CollateralRedeemed captures collateral leaving engine custody. Recipient and
// owner differ only during liquidation seizures.
type CollateralRedeemed struct {
	Owner     crypto.Address
	Recipient crypto.Address
	Asset     common.Address
	Qty       *big.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

// Event renders the structured redeem event for downstream consumers.
func (e CollateralRedeemed) Event() *types.Event {
	attrs := map[string]string{
		"owner":     e.Owner.String(),
		"recipient": e.Recipient.String(),
		"asset":     strings.ToLower(e.Asset.Hex()),
	}
	if e.Qty != nil {
		attrs["qty"] = e.Qty.String()
	}
	return &types.Event{Type: TypeCollateralRedeemed, Attributes: attrs}
}

// DebtMinted captures a debt token mint recorded against a position.
type DebtMinted struct {
	User   crypto.Address
	Amount *big.Int
}

func (DebtMinted) EventType() string { return TypeDebtMinted }

// Event renders the structured mint event for downstream consumers.
func (e DebtMinted) Event() *types.Event {
	attrs := map[string]string{"user": e.User.String()}
	if e.Amount != nil {
		attrs["amount"] = e.Amount.String()
	}
	return &types.Event{Type: TypeDebtMinted, Attributes: attrs}
}

// DebtBurned captures a debt repayment that destroyed debt tokens.
type DebtBurned struct {
	User   crypto.Address
	Payer  crypto.Address
	Amount *big.Int
}

func (DebtBurned) EventType() string { return TypeDebtBurned }

// Event renders the structured burn event for downstream consumers.
func (e DebtBurned) Event() *types.Event {
	attrs := map[string]string{
		"user":  e.User.String(),
		"payer": e.Payer.String(),
	}
	if e.Amount != nil {
		attrs["amount"] = e.Amount.String()
	}
	return &types.Event{Type: TypeDebtBurned, Attributes: attrs}
}

// Liquidation captures a completed liquidation: the covered debt and the
// bonus-adjusted collateral seized from the target.
type Liquidation struct {
	ID          uuid.UUID
	Liquidator  crypto.Address
	Target      crypto.Address
	Asset       common.Address
	DebtCovered *big.Int
	SeizedQty   *big.Int
}

func (Liquidation) EventType() string { return TypeLiquidation }

// Event renders the structured liquidation event for downstream consumers.
func (e Liquidation) Event() *types.Event {
	attrs := map[string]string{
		"id":         e.ID.String(),
		"liquidator": e.Liquidator.String(),
		"target":     e.Target.String(),
		"asset":      strings.ToLower(e.Asset.Hex()),
	}
	if e.DebtCovered != nil {
		attrs["debtCovered"] = e.DebtCovered.String()
	}
	if e.SeizedQty != nil {
		attrs["seizedQty"] = e.SeizedQty.String()
	}
	return &types.Event{Type: TypeLiquidation, Attributes: attrs}
}
