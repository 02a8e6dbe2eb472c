package oracle

import (
	"errors"
	"math/big"
	"sync"
	"time"
)

// Round captures a single price observation reported by a feed. Answer is the
// signed price in the feed's native decimal precision; a non-positive answer
// must be treated by consumers as an unusable reading.
type Round struct {
	RoundID   uint64
	Answer    *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// Clone returns a deep copy of the round to prevent accidental mutations.
func (r Round) Clone() Round {
	clone := Round{RoundID: r.RoundID, Decimals: r.Decimals, UpdatedAt: r.UpdatedAt}
	if r.Answer != nil {
		clone.Answer = new(big.Int).Set(r.Answer)
	}
	return clone
}

// Feed resolves the most recent price round for a collateral asset.
type Feed interface {
	LatestRound() (Round, error)
}

// ErrNoRound indicates the feed has not observed any price yet.
var ErrNoRound = errors.New("oracle: no price round available")

// StaticFeed serves a manually supplied round. It backs local deployments and
// tests where prices are pushed rather than pulled.
type StaticFeed struct {
	mu    sync.RWMutex
	round Round
	set   bool
}

// NewStaticFeed constructs a feed pre-loaded with the provided answer at the
// given decimal precision. The round timestamp is set to the current time.
func NewStaticFeed(answer *big.Int, decimals uint8) *StaticFeed {
	f := &StaticFeed{}
	f.Update(answer, decimals)
	return f
}

// Update replaces the served round and bumps the round identifier.
func (f *StaticFeed) Update(answer *big.Int, decimals uint8) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	round := Round{
		RoundID:   f.round.RoundID + 1,
		Decimals:  decimals,
		UpdatedAt: time.Now(),
	}
	if answer != nil {
		round.Answer = new(big.Int).Set(answer)
	}
	f.round = round
	f.set = true
}

// LatestRound implements the Feed interface.
func (f *StaticFeed) LatestRound() (Round, error) {
	if f == nil {
		return Round{}, ErrNoRound
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.set {
		return Round{}, ErrNoRound
	}
	return f.round.Clone(), nil
}
