package collateral

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	// precision is the internal 18-decimal fixed point shared with the debt token.
	precision = mustBigInt("1000000000000000000")
	// minHealthFactor is the solvency floor: a ratio of exactly 1.0.
	minHealthFactor = mustBigInt("1000000000000000000")
	// maxHealthFactor is the sentinel returned for debt-free positions. The
	// health factor formula is undefined at zero debt, so debt-free positions
	// report the largest representable ratio instead of dividing.
	maxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// pow10 returns 10^exp as a big integer.
func pow10(exp uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(uint64(exp)), nil)
}

// mulDiv computes a*b/den with floor rounding. Flooring loses at most one
// smallest unit and always rounds toward zero for non-negative operands.
func mulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// checkedSub returns a-b, reporting failure instead of producing a negative
// result. Balances and debt are unsigned quantities; underflow must surface
// as an error rather than wrap.
func checkedSub(a, b *big.Int) (*big.Int, bool) {
	if a == nil || b == nil {
		return nil, false
	}
	if a.Cmp(b) < 0 {
		return nil, false
	}
	return new(big.Int).Sub(a, b), true
}
