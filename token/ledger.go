package token

import (
	"math/big"
	"sync"

	"dscvault/crypto"

	"github.com/holiman/uint256"
)

// Ledger is an in-process fungible token: a balance table with 256-bit
// unsigned arithmetic so overflow and underflow surface as explicit failures
// instead of wrapping. It backs the debt token and collateral assets when the
// daemon runs in local mode; the engine only ever sees the token interfaces.
type Ledger struct {
	mu       sync.RWMutex
	symbol   string
	balances map[string]*uint256.Int
	supply   *uint256.Int
}

// NewLedger constructs an empty token ledger for the given symbol.
func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:   symbol,
		balances: make(map[string]*uint256.Int),
		supply:   uint256.NewInt(0),
	}
}

// Symbol returns the token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

func key(addr crypto.Address) string { return string(addr.Bytes()) }

func (l *Ledger) balance(addr crypto.Address) *uint256.Int {
	if bal, ok := l.balances[key(addr)]; ok {
		return bal
	}
	return uint256.NewInt(0)
}

// BalanceOf reports the balance held by addr.
func (l *Ledger) BalanceOf(addr crypto.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance(addr).ToBig()
}

// TotalSupply reports the outstanding token supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply.ToBig()
}

// Mint credits amount to addr. It reports false when the amount is not a
// valid 256-bit unsigned quantity or the supply would overflow.
func (l *Ledger) Mint(addr crypto.Address, amount *big.Int) bool {
	value, overflow := uint256.FromBig(amount)
	if amount == nil || amount.Sign() < 0 || overflow {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	newSupply, carry := new(uint256.Int).AddOverflow(l.supply, value)
	if carry {
		return false
	}
	newBalance, carry := new(uint256.Int).AddOverflow(l.balance(addr), value)
	if carry {
		return false
	}
	l.supply = newSupply
	l.balances[key(addr)] = newBalance
	return true
}

// Burn destroys amount from addr's balance. It reports false when the
// balance cannot cover the amount; balances never wrap below zero.
func (l *Ledger) Burn(addr crypto.Address, amount *big.Int) bool {
	value, overflow := uint256.FromBig(amount)
	if amount == nil || amount.Sign() < 0 || overflow {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balance(addr)
	if bal.Lt(value) {
		return false
	}
	l.balances[key(addr)] = new(uint256.Int).Sub(bal, value)
	l.supply = new(uint256.Int).Sub(l.supply, value)
	return true
}

// Move transfers amount between holders, reporting false on insufficient
// balance or invalid amount.
func (l *Ledger) Move(from, to crypto.Address, amount *big.Int) bool {
	value, overflow := uint256.FromBig(amount)
	if amount == nil || amount.Sign() < 0 || overflow {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBal := l.balance(from)
	if fromBal.Lt(value) {
		return false
	}
	toBal, carry := new(uint256.Int).AddOverflow(l.balance(to), value)
	if carry {
		return false
	}
	l.balances[key(from)] = new(uint256.Int).Sub(fromBal, value)
	l.balances[key(to)] = toBal
	return true
}

// Handle binds a ledger to the engine custody address and exposes the
// boolean transfer surface the collateral engine expects. Transfer and Burn
// spend from custody; TransferFrom pulls from the named holder, matching the
// trusted-module semantics of the engine's account movements.
type Handle struct {
	ledger  *Ledger
	custody crypto.Address
}

// Bind creates a custody-bound handle over the ledger.
func Bind(ledger *Ledger, custody crypto.Address) *Handle {
	return &Handle{ledger: ledger, custody: custody}
}

// Ledger returns the underlying token ledger.
func (h *Handle) Ledger() *Ledger { return h.ledger }

func (h *Handle) TransferFrom(from, to crypto.Address, qty *big.Int) bool {
	return h.ledger.Move(from, to, qty)
}

func (h *Handle) Transfer(to crypto.Address, qty *big.Int) bool {
	return h.ledger.Move(h.custody, to, qty)
}

func (h *Handle) Mint(to crypto.Address, amount *big.Int) bool {
	return h.ledger.Mint(to, amount)
}

func (h *Handle) Burn(amount *big.Int) {
	h.ledger.Burn(h.custody, amount)
}
