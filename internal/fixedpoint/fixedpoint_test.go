package fixedpoint

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestParseSigned(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"12345", "12345"},
		{"-42", "-42"},
		{"0x10", "16"},
		{"-0x10", "-16"},
	}
	for _, tc := range cases {
		got, err := ParseSigned(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got.String(), tc.in)
	}

	_, err := ParseSigned("abc")
	require.Error(t, err)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 255).String()
	_, err = ParseSigned(tooBig)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = ParseSigned("-" + tooBig)
	require.NoError(t, err)
}

func TestParseUnsigned(t *testing.T) {
	v, err := ParseUnsigned("1000000")
	require.NoError(t, err)
	require.Equal(t, uint64(1000000), v.Uint64())

	_, err = ParseUnsigned("-1")
	require.ErrorIs(t, err, ErrNegative)
}

func TestMulShift128TruncatesTowardZero(t *testing.T) {
	liquidity := big.NewInt(3)
	growth := new(big.Int).Mul(Q128, big.NewInt(5))
	require.Equal(t, "15", MulShift128(growth, liquidity).String())

	// -1/2^128 truncates to 0, not -1.
	require.Equal(t, "0", MulShift128(big.NewInt(-1), big.NewInt(1)).String())

	require.Equal(t, "0", MulShift128(growth, big.NewInt(0)).String())
	require.Equal(t, "0", MulShift128(nil, liquidity).String())
}

func TestClampNonNegative(t *testing.T) {
	v, clamped := ClampNonNegative(big.NewInt(-7))
	require.True(t, clamped)
	require.Equal(t, 0, v.Sign())

	v, clamped = ClampNonNegative(big.NewInt(7))
	require.False(t, clamped)
	require.Equal(t, int64(7), v.Int64())
}

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(uint256.NewInt(1), uint256.NewInt(10), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Uint64())

	got, err = MulDiv(uint256.NewInt(2), uint256.NewInt(10), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(6), got.Uint64())

	_, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(0))
	require.True(t, errors.Is(err, ErrDivisionByZero))

	// The intermediate product exceeds 256 bits but the quotient does not.
	max := new(uint256.Int).SetAllOne()
	got, err = MulDiv(max, max, max)
	require.NoError(t, err)
	require.True(t, got.Eq(max))
}

func TestSqrtPriceX96ToWad(t *testing.T) {
	// sqrtPriceX96 = 2^96 means price 1.
	one := new(big.Int).Lsh(big.NewInt(1), 96)
	require.Equal(t, WAD.String(), SqrtPriceX96ToWad(one).String())

	// sqrtPriceX96 = 2^97 means price 4.
	two := new(big.Int).Lsh(big.NewInt(1), 97)
	want := new(big.Int).Mul(WAD, big.NewInt(4))
	require.Equal(t, want.String(), SqrtPriceX96ToWad(two).String())
}
