package token

import (
	"github.com/ethereum/go-ethereum/common"

	"dscvault/native/collateral"
)

// Directory maps collateral asset addresses to their custody-bound token
// handles. It satisfies the engine's token source.
type Directory struct {
	handles map[common.Address]*Handle
}

func NewDirectory() *Directory {
	return &Directory{handles: make(map[common.Address]*Handle)}
}

// Register associates an asset address with a handle. Later registrations
// replace earlier ones.
func (d *Directory) Register(asset common.Address, handle *Handle) {
	d.handles[asset] = handle
}

// Handle returns the registered handle for direct ledger access, or nil.
func (d *Directory) Handle(asset common.Address) *Handle {
	return d.handles[asset]
}

func (d *Directory) TokenOf(asset common.Address) collateral.CollateralToken {
	handle, ok := d.handles[asset]
	if !ok {
		return nil
	}
	return handle
}
