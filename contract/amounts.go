package contract

import (
	"github.com/holiman/uint256"
)

const basisPointsDenominator = 10000

func checkedAdd(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, invariantError("amount overflow: %d + %d", a, b)
	}
	return sum.Uint64(), nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, invariantError("amount underflow: %d - %d", a, b)
	}
	return a - b, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	if !prod.IsUint64() {
		return 0, invariantError("amount overflow: %d * %d", a, b)
	}
	return prod.Uint64(), nil
}

// mulDiv returns floor(a*b/d) without intermediate overflow. The result never
// exceeds a when b <= d.
func mulDiv(a, b, d uint64) uint64 {
	if d == 0 {
		return 0
	}
	q := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	q.Div(q, uint256.NewInt(d))
	if !q.IsUint64() {
		return ^uint64(0)
	}
	return q.Uint64()
}

// ceilPercent returns ceil(n * pct / 100).
func ceilPercent(n, pct uint64) uint64 {
	num := new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(pct))
	num.AddUint64(num, 99)
	num.Div(num, uint256.NewInt(100))
	return num.Uint64()
}

// meetsQuorum reports turnout*100 >= eligible*pct.
func meetsQuorum(turnout, eligible, pct uint64) bool {
	lhs := new(uint256.Int).Mul(uint256.NewInt(turnout), uint256.NewInt(100))
	rhs := new(uint256.Int).Mul(uint256.NewInt(eligible), uint256.NewInt(pct))
	return !lhs.Lt(rhs)
}
