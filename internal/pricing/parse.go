package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const wadDecimals = 18

// ParsePrices reads human decimal prices ("0.0032") into 1e18-scaled Prices.
// Both empty means no explicit prices and returns nil. Digits beyond 18
// decimals are truncated.
func ParsePrices(token0, token1 string) (*Prices, error) {
	token0, token1 = strings.TrimSpace(token0), strings.TrimSpace(token1)
	if token0 == "" && token1 == "" {
		return nil, nil
	}
	if token0 == "" || token1 == "" {
		return nil, fmt.Errorf("both token prices are required when one is set")
	}

	p0, err := parseWad(token0)
	if err != nil {
		return nil, fmt.Errorf("token0 price: %w", err)
	}
	p1, err := parseWad(token1)
	if err != nil {
		return nil, fmt.Errorf("token1 price: %w", err)
	}
	return &Prices{Token0: p0.BigInt(), Token1: p1.BigInt()}, nil
}

func parseWad(input string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(input)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative price %s", input)
	}
	return d.Shift(wadDecimals).Truncate(0), nil
}
