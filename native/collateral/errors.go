package collateral

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilState               = errors.New("collateral engine: state not configured")
	errNilTokenSource         = errors.New("collateral engine: token source not configured")
	ErrZeroAmount             = errors.New("collateral engine: amount must be positive")
	ErrAssetNotAccepted       = errors.New("collateral engine: asset not accepted")
	ErrLengthMismatch         = errors.New("collateral engine: asset and feed list lengths differ")
	ErrTransferFailed         = errors.New("collateral engine: token transfer failed")
	ErrMintFailed             = errors.New("collateral engine: debt token mint failed")
	ErrHealthFactorOk         = errors.New("collateral engine: target health factor above minimum")
	ErrHealthFactorWorsened   = errors.New("collateral engine: liquidation left target health factor lower")
	ErrInsufficientCollateral = errors.New("collateral engine: insufficient collateral")
	ErrDebtUnderflow          = errors.New("collateral engine: repayment exceeds outstanding debt")
	ErrInvalidPrice           = errors.New("collateral engine: oracle price not positive")
	ErrStalePrice             = errors.New("collateral engine: oracle price too old")
	ErrReentrantCall          = errors.New("collateral engine: reentrant call rejected")
)

// HealthFactorError reports a health factor that fell below the minimum after
// a solvency-reducing operation. Actual carries the computed ratio scaled to
// the internal 18-decimal precision for diagnostics.
type HealthFactorError struct {
	Actual *big.Int
}

func (e *HealthFactorError) Error() string {
	if e == nil || e.Actual == nil {
		return "collateral engine: health factor below minimum"
	}
	return fmt.Sprintf("collateral engine: health factor %s below minimum", e.Actual)
}

// Is allows errors.Is matching against a bare *HealthFactorError target.
func (e *HealthFactorError) Is(target error) bool {
	_, ok := target.(*HealthFactorError)
	return ok
}
