package uniswap

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// LogDecoder validates raw log records against one configured pool and
// decodes them into SwapEvents. Nothing untyped crosses this boundary: a
// record either becomes a fully populated SwapEvent or is rejected with a
// classified error the caller can drop and count.
type LogDecoder struct {
	pool      common.Address
	converter *PriceConverter
}

func NewLogDecoder(pool common.Address, converter *PriceConverter) *LogDecoder {
	return &LogDecoder{pool: pool, converter: converter}
}

// Decode turns a raw log into a SwapEvent.
//
// Rejections: ErrNotASwapEvent when the origin address, topic count or
// signature topic do not match; ErrMalformedPayload when the data section is
// not exactly 5 32-byte words; ErrInvalidPrice when sqrtPriceX96 is zero.
// A swap without a derivable price is not meaningful downstream, so the
// whole decode fails in that case.
func (d *LogDecoder) Decode(l RawLog) (*SwapEvent, error) {
	if l.Removed {
		return nil, fmt.Errorf("%w: log removed by reorg", ErrNotASwapEvent)
	}
	if common.HexToAddress(l.Address) != d.pool {
		return nil, fmt.Errorf("%w: address %s is not the configured pool", ErrNotASwapEvent, l.Address)
	}
	if len(l.Topics) != swapTopicCount {
		return nil, fmt.Errorf("%w: got %d topics, want %d", ErrNotASwapEvent, len(l.Topics), swapTopicCount)
	}
	if common.HexToHash(l.Topics[0]) != SwapEventSignature {
		return nil, fmt.Errorf("%w: signature %s", ErrNotASwapEvent, l.Topics[0])
	}

	data, err := hexutil.Decode(l.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(data) != swapDataLen {
		return nil, fmt.Errorf("%w: data is %d bytes, want %d", ErrMalformedPayload, len(data), swapDataLen)
	}

	amount0 := signedWord(data, 0)
	amount1 := signedWord(data, 1)
	sqrtPriceX96 := unsignedWord(data, 2)
	liquidity := unsignedWord(data, 3)
	tick := signedWord(data, 4)

	price, err := d.converter.Price(sqrtPriceX96)
	if err != nil {
		return nil, err
	}

	ev := &SwapEvent{
		Sender:       topicAddress(l.Topics[1]),
		Recipient:    topicAddress(l.Topics[2]),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPriceX96.String(),
		Liquidity:    liquidity.String(),
		Tick:         int32(tick.Int64()),
		TxHash:       l.TransactionHash,
		Price:        price,
	}
	if l.BlockNumber != "" {
		// Provenance is optional; a feed that omits or mangles it still
		// yields a usable event.
		if n, err := hexutil.DecodeUint64(l.BlockNumber); err == nil {
			ev.BlockNumber = n
		}
	}
	return ev, nil
}

// word slices the i-th 32-byte slot. Decode rejects any payload that is not
// exactly the swap layout before slicing, so every slot is full-width here.
func word(data []byte, i int) []byte {
	return data[i*wordSize : (i+1)*wordSize]
}

// unsignedWord reads slot i as a big-endian unsigned integer.
func unsignedWord(data []byte, i int) *big.Int {
	return new(big.Int).SetBytes(word(data, i))
}

// signedWord reads slot i as a big-endian two's-complement int256.
func signedWord(data []byte, i int) *big.Int {
	w := word(data, i)
	v := new(big.Int).SetBytes(w)
	if w[0]&0x80 != 0 {
		v.Sub(v, twoPow256)
	}
	return v
}

// topicAddress extracts the low 20 bytes of a 32-byte topic word as a
// lowercase hex address.
func topicAddress(topic string) string {
	h := common.HexToHash(topic)
	return strings.ToLower(common.BytesToAddress(h[12:]).Hex())
}
