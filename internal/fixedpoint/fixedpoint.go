// Package fixedpoint holds the integer arithmetic used by every reward-affecting
// computation. Fee growth values are signed Q128.128 numbers kept in math/big;
// scores and reward amounts are unsigned 256-bit accumulators.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("value does not fit in 256 bits")
	ErrNegative       = errors.New("negative value")
)

var (
	// Q128 is 2^128, the scale of fee growth values.
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)
	// Q192 is 2^192, the square of the sqrtPriceX96 scale.
	Q192 = new(big.Int).Lsh(big.NewInt(1), 192)
	// WAD is 10^18, the scale of price inputs.
	WAD = big.NewInt(1_000_000_000_000_000_000)

	maxInt256 = new(big.Int).Sub(math.BigPow(2, 255), big.NewInt(1))
	minInt256 = new(big.Int).Neg(math.BigPow(2, 255))
)

// ParseSigned parses a decimal or 0x-prefixed hex integer that must fit in int256.
// The empty string parses as zero.
func ParseSigned(input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	negative := strings.HasPrefix(input, "-")
	magnitude := strings.TrimPrefix(input, "-")

	value, ok := math.ParseBig256(magnitude)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer %q", input)
	}
	if negative {
		value.Neg(value)
	}
	if value.Cmp(minInt256) < 0 || value.Cmp(maxInt256) > 0 {
		return nil, fmt.Errorf("%q: %w", input, ErrOverflow)
	}
	return value, nil
}

// ParseUnsigned parses a non-negative decimal or 0x-prefixed hex integer into a uint256.
func ParseUnsigned(input string) (*uint256.Int, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "-") {
		return nil, fmt.Errorf("%q: %w", input, ErrNegative)
	}
	value, ok := math.ParseBig256(input)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", input)
	}
	return ToU256(value)
}

// MulShift128 returns x * liquidity / 2^128, truncated toward zero.
func MulShift128(x, liquidity *big.Int) *big.Int {
	if x == nil || liquidity == nil || x.Sign() == 0 || liquidity.Sign() == 0 {
		return new(big.Int)
	}
	product := new(big.Int).Mul(x, liquidity)
	return product.Quo(product, Q128)
}

// ClampNonNegative returns max(x, 0) and whether clamping happened.
func ClampNonNegative(x *big.Int) (*big.Int, bool) {
	if x == nil {
		return new(big.Int), false
	}
	if x.Sign() < 0 {
		return new(big.Int), true
	}
	return new(big.Int).Set(x), false
}

// SqrtPriceX96ToWad converts a Q64.96 square-root price into token1-per-token0 scaled by 1e18.
func SqrtPriceX96ToWad(sqrtPriceX96 *big.Int) *big.Int {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return new(big.Int)
	}
	price := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	price.Mul(price, WAD)
	return price.Quo(price, Q192)
}

// ToU256 converts a non-negative big.Int into a uint256.
func ToU256(x *big.Int) (*uint256.Int, error) {
	if x == nil {
		return new(uint256.Int), nil
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%s: %w", x.String(), ErrNegative)
	}
	value, overflow := uint256.FromBig(x)
	if overflow {
		return nil, fmt.Errorf("%s: %w", x.String(), ErrOverflow)
	}
	return value, nil
}

// Add returns a + b, failing on 256-bit overflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

// MulDiv returns floor(x * y / d) with a 512-bit intermediate product.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		return nil, ErrDivisionByZero
	}
	result, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// Dec renders a uint256 in base 10.
func Dec(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.ToBig().String()
}
