package uniswap

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapEventSignature is keccak256("Swap(address,address,int256,int256,uint160,uint128,int24)"),
// topic[0] of every Uniswap V3 Swap log.
var SwapEventSignature = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")

const (
	// A Swap log carries the signature plus two indexed addresses (sender, recipient).
	swapTopicCount = 3

	// Non-indexed payload: amount0, amount1, sqrtPriceX96, liquidity, tick.
	// Each is right-aligned in a 32-byte slot.
	wordSize      = 32
	swapDataWords = 5
	swapDataLen   = swapDataWords * wordSize
)

var (
	twoPow96  = new(big.Int).Lsh(big.NewInt(1), 96)
	twoPow192 = new(big.Int).Lsh(big.NewInt(1), 192)
	twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)
)

var (
	// ErrInvalidPrice marks a degenerate zero sqrtPriceX96; the observation is skipped.
	ErrInvalidPrice = errors.New("invalid price: zero sqrtPriceX96")

	// ErrNotASwapEvent marks a log that fails origin/signature/topic validation.
	ErrNotASwapEvent = errors.New("not a swap event")

	// ErrMalformedPayload marks a Swap log whose data section has the wrong length.
	ErrMalformedPayload = errors.New("malformed swap payload")
)
