package collateral

import (
	"fmt"

	"dscvault/oracle"

	"github.com/ethereum/go-ethereum/common"
)

// Registry holds the immutable mapping from accepted collateral assets to
// their price feeds. It is populated once at construction and never mutated,
// so reads need no synchronization.
type Registry struct {
	assets []common.Address
	feeds  map[common.Address]oracle.Feed
}

// NewRegistry builds a registry from parallel asset and feed lists. The lists
// must be the same length; duplicate assets and nil feeds are rejected.
func NewRegistry(assets []common.Address, feeds []oracle.Feed) (*Registry, error) {
	if len(assets) != len(feeds) {
		return nil, ErrLengthMismatch
	}
	r := &Registry{
		assets: make([]common.Address, 0, len(assets)),
		feeds:  make(map[common.Address]oracle.Feed, len(assets)),
	}
	for i, asset := range assets {
		if _, exists := r.feeds[asset]; exists {
			return nil, fmt.Errorf("collateral engine: duplicate asset %s", asset.Hex())
		}
		if feeds[i] == nil {
			return nil, fmt.Errorf("collateral engine: nil feed for asset %s", asset.Hex())
		}
		r.assets = append(r.assets, asset)
		r.feeds[asset] = feeds[i]
	}
	return r, nil
}

// IsAccepted reports whether the asset may be used as collateral.
func (r *Registry) IsAccepted(asset common.Address) bool {
	if r == nil {
		return false
	}
	_, ok := r.feeds[asset]
	return ok
}

// FeedOf returns the price feed registered for the asset, or nil when the
// asset is not accepted.
func (r *Registry) FeedOf(asset common.Address) oracle.Feed {
	if r == nil {
		return nil
	}
	return r.feeds[asset]
}

// Assets returns the accepted assets in insertion order. The order is fixed
// at construction so valuation sums stay deterministic and auditable.
func (r *Registry) Assets() []common.Address {
	if r == nil {
		return nil
	}
	return append([]common.Address{}, r.assets...)
}
