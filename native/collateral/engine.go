package collateral

import (
	"math/big"
	"sync/atomic"
	"time"

	"dscvault/core/events"
	"dscvault/crypto"
	nativecommon "dscvault/native/common"
	"dscvault/oracle"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const moduleName = "collateral"

// engineState is the narrow persistence surface the engine mutates. The
// ledger is exclusively owned by the engine; nothing else writes positions.
type engineState interface {
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(addr crypto.Address, pos *Position) error
}

// CollateralToken moves a fungible collateral asset. Boolean results mirror
// ERC-20 semantics: false signals a failed movement, not an exception.
// Transfer spends from engine custody; TransferFrom pulls from a holder that
// approved the engine.
type CollateralToken interface {
	TransferFrom(from, to crypto.Address, qty *big.Int) bool
	Transfer(to crypto.Address, qty *big.Int) bool
}

// DebtToken is the external mintable/burnable synthetic token minted against
// collateral. Burn destroys tokens already pulled into engine custody.
type DebtToken interface {
	Mint(to crypto.Address, amount *big.Int) bool
	Burn(amount *big.Int)
	TransferFrom(from, to crypto.Address, amount *big.Int) bool
}

// TokenSource resolves the token contract backing an accepted asset.
type TokenSource interface {
	TokenOf(asset common.Address) CollateralToken
}

// Engine orchestrates the collateral/debt ledger: deposits, redemptions,
// minting, burning, and liquidations. Every solvency-reducing mutation is
// gated by the health factor post-condition; every mutation is all-or-nothing.
type Engine struct {
	state         engineState
	registry      *Registry
	valuation     *Valuation
	debtToken     DebtToken
	tokens        TokenSource
	moduleAddress crypto.Address
	params        RiskParameters
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	entered       atomic.Bool
}

// NewEngine constructs the engine from parallel asset and feed lists plus the
// debt token reference. Construction fails when the lists differ in length or
// the risk parameters are unusable.
func NewEngine(moduleAddr crypto.Address, assets []common.Address, feeds []oracle.Feed, debtToken DebtToken, params RiskParameters) (*Engine, error) {
	registry, err := NewRegistry(assets, feeds)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		registry:      registry,
		valuation:     NewValuation(registry, 0),
		debtToken:     debtToken,
		moduleAddress: moduleAddr,
		params:        params,
		emitter:       events.NoopEmitter{},
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenSource wires the resolver mapping assets to token contracts.
func (e *Engine) SetTokenSource(src TokenSource) { e.tokens = src }

// SetEmitter replaces the event sink. A nil emitter restores the no-op sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetMaxFeedAge bounds the accepted oracle round age for valuations.
func (e *Engine) SetMaxFeedAge(maxAge time.Duration) {
	if e == nil || e.valuation == nil {
		return
	}
	e.valuation.maxFeedAge = maxAge
}

// Registry exposes the immutable collateral registry for read-only callers.
func (e *Engine) Registry() *Registry { return e.registry }

// Valuation exposes the read-only conversion service.
func (e *Engine) Valuation() *Valuation { return e.valuation }

// enter acquires the reentrancy guard. A nested call triggered from within an
// external token movement fails immediately instead of observing partially
// updated ledger state.
func (e *Engine) enter() error {
	if !e.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) exit() { e.entered.Store(false) }

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// DepositCollateral records a collateral deposit and pulls the quantity from
// the caller into engine custody.
func (e *Engine) DepositCollateral(caller crypto.Address, asset common.Address, qty *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.depositCollateral(caller, asset, qty); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralDeposited{User: caller, Asset: asset, Qty: new(big.Int).Set(qty)})
	return nil
}

func (e *Engine) depositCollateral(caller crypto.Address, asset common.Address, qty *big.Int) error {
	if qty == nil || qty.Sign() <= 0 {
		return ErrZeroAmount
	}
	if !e.registry.IsAccepted(asset) {
		return ErrAssetNotAccepted
	}
	token, err := e.tokenOf(asset)
	if err != nil {
		return err
	}

	pos, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	snapshot := pos.Clone()

	pos.Collateral[asset] = new(big.Int).Add(pos.CollateralOf(asset), qty)
	if err := e.state.PutPosition(caller, pos); err != nil {
		return err
	}

	if !token.TransferFrom(caller, e.moduleAddress, qty) {
		if restoreErr := e.state.PutPosition(caller, snapshot); restoreErr != nil {
			return restoreErr
		}
		return ErrTransferFailed
	}
	return nil
}

// RedeemCollateral releases collateral back to the caller. The ledger is
// debited first; the solvency post-condition must hold on the reduced
// position before any quantity leaves custody.
func (e *Engine) RedeemCollateral(caller crypto.Address, asset common.Address, qty *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.redeemCollateral(caller, asset, qty); err != nil {
		return err
	}
	e.emitter.Emit(events.CollateralRedeemed{Owner: caller, Recipient: caller, Asset: asset, Qty: new(big.Int).Set(qty)})
	return nil
}

func (e *Engine) redeemCollateral(caller crypto.Address, asset common.Address, qty *big.Int) error {
	if qty == nil || qty.Sign() <= 0 {
		return ErrZeroAmount
	}
	token, err := e.tokenOf(asset)
	if err != nil {
		return err
	}

	pos, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	remaining, ok := checkedSub(pos.CollateralOf(asset), qty)
	if !ok {
		return ErrInsufficientCollateral
	}
	snapshot := pos.Clone()

	pos.Collateral[asset] = remaining
	if err := e.state.PutPosition(caller, pos); err != nil {
		return err
	}
	if err := e.assertSolvent(pos); err != nil {
		if restoreErr := e.state.PutPosition(caller, snapshot); restoreErr != nil {
			return restoreErr
		}
		return err
	}

	if !token.Transfer(caller, qty) {
		if restoreErr := e.state.PutPosition(caller, snapshot); restoreErr != nil {
			return restoreErr
		}
		return ErrTransferFailed
	}
	return nil
}

// Mint records newly minted debt against the caller's collateral. The ledger
// accounting and solvency check complete before the external mint call, so a
// failed health check never touches the debt token.
func (e *Engine) Mint(caller crypto.Address, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.mint(caller, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.DebtMinted{User: caller, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) mint(caller crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	pos, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	snapshot := pos.Clone()

	pos.Debt = new(big.Int).Add(pos.Debt, amount)
	if err := e.state.PutPosition(caller, pos); err != nil {
		return err
	}
	if err := e.assertSolvent(pos); err != nil {
		if restoreErr := e.state.PutPosition(caller, snapshot); restoreErr != nil {
			return restoreErr
		}
		return err
	}

	if !e.debtToken.Mint(caller, amount) {
		if restoreErr := e.state.PutPosition(caller, snapshot); restoreErr != nil {
			return restoreErr
		}
		return ErrMintFailed
	}
	return nil
}

// Burn repays debt: the caller's debt tokens are pulled into custody and
// destroyed, and the ledger entry reduced. Burning can only improve the
// health factor, so no solvency check follows.
func (e *Engine) Burn(caller crypto.Address, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.burnFrom(caller, caller, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.DebtBurned{User: caller, Payer: caller, Amount: new(big.Int).Set(amount)})
	return nil
}

// burnFrom reduces onBehalfOf's ledger debt using debt tokens pulled from
// payer. Liquidation uses a payer distinct from the position owner.
func (e *Engine) burnFrom(payer, onBehalfOf crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	pos, err := e.ensurePosition(onBehalfOf)
	if err != nil {
		return err
	}
	remaining, ok := checkedSub(pos.Debt, amount)
	if !ok {
		return ErrDebtUnderflow
	}
	snapshot := pos.Clone()

	pos.Debt = remaining
	if err := e.state.PutPosition(onBehalfOf, pos); err != nil {
		return err
	}

	if !e.debtToken.TransferFrom(payer, e.moduleAddress, amount) {
		if restoreErr := e.state.PutPosition(onBehalfOf, snapshot); restoreErr != nil {
			return restoreErr
		}
		return ErrTransferFailed
	}
	e.debtToken.Burn(amount)
	return nil
}

// DepositCollateralAndMint runs deposit followed by mint inside a single
// guarded call, with the same guarantees as each step.
func (e *Engine) DepositCollateralAndMint(caller crypto.Address, asset common.Address, qty, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	entry, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	snapshot := entry.Clone()

	if err := e.depositCollateral(caller, asset, qty); err != nil {
		return err
	}
	if err := e.mint(caller, amount); err != nil {
		// Unwind with the entry snapshot: push the pulled collateral back and
		// restore the ledger as it stood before the deposit. The undo is a
		// compensation, not a redeem; it must not be subject to the solvency
		// check that would refuse an already-underwater caller.
		token, tokenErr := e.tokenOf(asset)
		if tokenErr != nil {
			return tokenErr
		}
		if !token.Transfer(caller, qty) {
			return ErrTransferFailed
		}
		if restoreErr := e.state.PutPosition(caller, snapshot); restoreErr != nil {
			return restoreErr
		}
		return err
	}

	e.emitter.Emit(events.CollateralDeposited{User: caller, Asset: asset, Qty: new(big.Int).Set(qty)})
	e.emitter.Emit(events.DebtMinted{User: caller, Amount: new(big.Int).Set(amount)})
	return nil
}

// RedeemCollateralForDebt burns debt before redeeming collateral, so the
// solvency check benefits from the reduced debt.
func (e *Engine) RedeemCollateralForDebt(caller crypto.Address, asset common.Address, qty, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return err
	}
	entry, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	snapshot := entry.Clone()

	if err := e.burnFrom(caller, caller, amount); err != nil {
		return err
	}
	if err := e.redeemCollateral(caller, asset, qty); err != nil {
		// Unwind with the entry snapshot: mint the burned cover back to the
		// caller and restore the ledger as it stood before the burn, without
		// re-running the guarded mint and its solvency check.
		if !e.debtToken.Mint(caller, amount) {
			return ErrMintFailed
		}
		if restoreErr := e.state.PutPosition(caller, snapshot); restoreErr != nil {
			return restoreErr
		}
		return err
	}

	e.emitter.Emit(events.DebtBurned{User: caller, Payer: caller, Amount: new(big.Int).Set(amount)})
	e.emitter.Emit(events.CollateralRedeemed{Owner: caller, Recipient: caller, Asset: asset, Qty: new(big.Int).Set(qty)})
	return nil
}

// Liquidate lets any caller repay part of an undercollateralized target's
// debt in exchange for a bonus-adjusted share of one collateral asset.
// Partial coverage is allowed; the target's health factor must not end lower
// than it started.
func (e *Engine) Liquidate(liquidator crypto.Address, asset common.Address, target crypto.Address, debtToCover *big.Int) (*big.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := e.guard(); err != nil {
		return nil, err
	}
	if debtToCover == nil || debtToCover.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if !e.registry.IsAccepted(asset) {
		return nil, ErrAssetNotAccepted
	}
	token, err := e.tokenOf(asset)
	if err != nil {
		return nil, err
	}

	targetPos, err := e.ensurePosition(target)
	if err != nil {
		return nil, err
	}
	startRatio, err := e.healthFactorFor(targetPos)
	if err != nil {
		return nil, err
	}
	if startRatio.Cmp(minHealthFactor) >= 0 {
		return nil, ErrHealthFactorOk
	}

	baseQty, err := e.valuation.QuantityFromValue(asset, debtToCover)
	if err != nil {
		return nil, err
	}
	bonusQty := mulDiv(baseQty, new(big.Int).SetUint64(e.params.LiquidationBonusBps), basisPoints)
	seizedQty := new(big.Int).Add(baseQty, bonusQty)

	remainingCollateral, ok := checkedSub(targetPos.CollateralOf(asset), seizedQty)
	if !ok {
		return nil, ErrInsufficientCollateral
	}
	remainingDebt, ok := checkedSub(targetPos.Debt, debtToCover)
	if !ok {
		return nil, ErrDebtUnderflow
	}
	snapshot := targetPos.Clone()

	targetPos.Collateral[asset] = remainingCollateral
	targetPos.Debt = remainingDebt
	if err := e.state.PutPosition(target, targetPos); err != nil {
		return nil, err
	}

	restore := func() error { return e.state.PutPosition(target, snapshot) }

	endRatio, err := e.healthFactorFor(targetPos)
	if err != nil {
		if restoreErr := restore(); restoreErr != nil {
			return nil, restoreErr
		}
		return nil, err
	}
	if endRatio.Cmp(startRatio) < 0 {
		if restoreErr := restore(); restoreErr != nil {
			return nil, restoreErr
		}
		return nil, ErrHealthFactorWorsened
	}

	// The liquidator's own ledger entry is untouched unless they liquidate
	// themselves, but the solvency re-check is unconditional.
	liquidatorPos, err := e.ensurePosition(liquidator)
	if err != nil {
		if restoreErr := restore(); restoreErr != nil {
			return nil, restoreErr
		}
		return nil, err
	}
	if err := e.assertSolvent(liquidatorPos); err != nil {
		if restoreErr := restore(); restoreErr != nil {
			return nil, restoreErr
		}
		return nil, err
	}

	if !e.debtToken.TransferFrom(liquidator, e.moduleAddress, debtToCover) {
		if restoreErr := restore(); restoreErr != nil {
			return nil, restoreErr
		}
		return nil, ErrTransferFailed
	}
	e.debtToken.Burn(debtToCover)

	if !token.Transfer(liquidator, seizedQty) {
		// The cover was already burned; mint it back before unwinding the
		// ledger so the liquidator is made whole.
		e.debtToken.Mint(liquidator, debtToCover)
		if restoreErr := restore(); restoreErr != nil {
			return nil, restoreErr
		}
		return nil, ErrTransferFailed
	}

	e.emitter.Emit(events.Liquidation{
		ID:          uuid.New(),
		Liquidator:  liquidator,
		Target:      target,
		Asset:       asset,
		DebtCovered: new(big.Int).Set(debtToCover),
		SeizedQty:   new(big.Int).Set(seizedQty),
	})
	return seizedQty, nil
}

// AccountSummary reports the user's total minted debt and the oracle value of
// their collateral. Side-effect free.
func (e *Engine) AccountSummary(user crypto.Address) (AccountSummary, error) {
	if e == nil || e.state == nil {
		return AccountSummary{}, errNilState
	}
	pos, err := e.ensurePosition(user)
	if err != nil {
		return AccountSummary{}, err
	}
	value, err := e.valuation.TotalCollateralValue(pos)
	if err != nil {
		return AccountSummary{}, err
	}
	return AccountSummary{Debt: new(big.Int).Set(pos.Debt), CollateralValue: value}, nil
}

// CollateralOf reports the deposited quantity of one asset for a user.
func (e *Engine) CollateralOf(user crypto.Address, asset common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.ensurePosition(user)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pos.CollateralOf(asset)), nil
}

func (e *Engine) tokenOf(asset common.Address) (CollateralToken, error) {
	if e.tokens == nil {
		return nil, errNilTokenSource
	}
	token := e.tokens.TokenOf(asset)
	if token == nil {
		return nil, ErrAssetNotAccepted
	}
	return token, nil
}

func (e *Engine) ensurePosition(addr crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{Address: addr}
	}
	if pos.Debt == nil {
		pos.Debt = big.NewInt(0)
	}
	if pos.Collateral == nil {
		pos.Collateral = make(map[common.Address]*big.Int)
	}
	return pos, nil
}
