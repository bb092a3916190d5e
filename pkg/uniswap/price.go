package uniswap

import (
	"math"
	"math/big"
)

// PriceConverter turns Q64.96 square-root price ratios into decimal prices
// for one fixed pool. Token decimal places and the quote direction are pool
// metadata, set once at construction and applied identically on the live and
// historical paths.
type PriceConverter struct {
	quoteToken0 bool
	// 10^decimals0 / 10^decimals1, the human-unit adjustment applied to the
	// raw token1-per-token0 ratio.
	adjustment *big.Rat
}

// NewPriceConverter builds a converter for a pool whose token0 and token1
// use the given decimal places. With quoteToken0 true, prices are quoted in
// token0 units per one token1 (USDC per WETH for the canonical USDC/WETH
// pool); otherwise token1 units per one token0.
func NewPriceConverter(decimals0, decimals1 int, quoteToken0 bool) *PriceConverter {
	return &PriceConverter{
		quoteToken0: quoteToken0,
		adjustment:  new(big.Rat).SetFrac(pow10(decimals0), pow10(decimals1)),
	}
}

// Price converts sqrtPriceX96 into a decimal price.
//
// raw = sqrtPriceX96² / 2¹⁹² is the token1/token0 ratio in smallest units.
// The whole computation stays in arbitrary precision (big.Int numerator over
// 2¹⁹², times the decimal adjustment); only the final ratio is collapsed to
// a float64. Narrowing any intermediate to a float destroys precision for
// some token-decimal combinations and is a correctness bug, not a rounding
// nuance.
func (c *PriceConverter) Price(sqrtPriceX96 *big.Int) (float64, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return 0, ErrInvalidPrice
	}

	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96) // up to 320 bits
	price := new(big.Rat).SetFrac(sq, twoPow192)
	price.Mul(price, c.adjustment)
	if c.quoteToken0 {
		price.Inv(price)
	}

	f, _ := price.Float64()
	if f <= 0 || math.IsInf(f, 0) {
		return 0, ErrInvalidPrice
	}
	return f, nil
}

// SqrtPriceX96FromPrice is the inverse of Price: it constructs the Q64.96
// encoding that a pool with the given metadata would report for a target
// decimal price. Mainly useful for fixtures and round-trip checks.
func SqrtPriceX96FromPrice(price float64, decimals0, decimals1 int, quoteToken0 bool) (*big.Int, error) {
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return nil, ErrInvalidPrice
	}

	const prec = 256
	raw := new(big.Float).SetPrec(prec).SetFloat64(price)
	if quoteToken0 {
		raw.Quo(new(big.Float).SetPrec(prec).SetInt64(1), raw)
	}
	// Undo the human-unit adjustment: raw ratio is token1/token0 in smallest units.
	raw.Mul(raw, new(big.Float).SetPrec(prec).SetInt(pow10(decimals1)))
	raw.Quo(raw, new(big.Float).SetPrec(prec).SetInt(pow10(decimals0)))

	sqrt := new(big.Float).SetPrec(prec).Sqrt(raw)
	sqrt.Mul(sqrt, new(big.Float).SetPrec(prec).SetInt(twoPow96))

	out, _ := sqrt.Int(nil)
	if out.Sign() == 0 {
		return nil, ErrInvalidPrice
	}
	return out, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
