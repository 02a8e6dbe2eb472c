package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"dscvault/crypto"
	"dscvault/native/collateral"
	"dscvault/storage"

	"github.com/ethereum/go-ethereum/common"
)

const positionPrefix = "collateral/position/"

// Ledger persists collateral positions in a key-value database. It implements
// the engine's persistence surface; the engine remains the only writer.
type Ledger struct {
	db storage.Database
}

// NewLedger wraps the database with the position codec.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

type storedPosition struct {
	Address    string            `json:"address"`
	Debt       *big.Int          `json:"debt"`
	Collateral map[string]string `json:"collateral"`
}

func positionKey(addr crypto.Address) []byte {
	return []byte(positionPrefix + hex.EncodeToString(addr.Bytes()))
}

// GetPosition loads the stored position for addr, returning nil when the
// user has never touched the engine.
func (l *Ledger) GetPosition(addr crypto.Address) (*collateral.Position, error) {
	key := positionKey(addr)
	exists, err := l.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	raw, err := l.db.Get(key)
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode position: %w", err)
	}

	pos := &collateral.Position{Address: addr, Debt: stored.Debt}
	if pos.Debt == nil {
		pos.Debt = big.NewInt(0)
	}
	pos.Collateral = make(map[common.Address]*big.Int, len(stored.Collateral))
	for assetHex, qtyStr := range stored.Collateral {
		if !common.IsHexAddress(assetHex) {
			return nil, fmt.Errorf("state: invalid asset address %q", assetHex)
		}
		qty, ok := new(big.Int).SetString(qtyStr, 10)
		if !ok {
			return nil, fmt.Errorf("state: invalid quantity %q for asset %s", qtyStr, assetHex)
		}
		pos.Collateral[common.HexToAddress(assetHex)] = qty
	}
	return pos, nil
}

// PutPosition stores the position under the user's key.
func (l *Ledger) PutPosition(addr crypto.Address, pos *collateral.Position) error {
	if pos == nil {
		return fmt.Errorf("state: nil position")
	}
	stored := storedPosition{
		Address:    addr.String(),
		Debt:       pos.Debt,
		Collateral: make(map[string]string, len(pos.Collateral)),
	}
	if stored.Debt == nil {
		stored.Debt = big.NewInt(0)
	}
	for asset, qty := range pos.Collateral {
		if qty == nil {
			continue
		}
		stored.Collateral[asset.Hex()] = qty.String()
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("state: encode position: %w", err)
	}
	return l.db.Put(positionKey(addr), raw)
}
