package uniswap

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	testPoolAddr  = "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"
	testSender    = "0x1111111111111111111111111111111111111111"
	testRecipient = "0x2222222222222222222222222222222222222222"
)

func testDecoder() *LogDecoder {
	return NewLogDecoder(common.HexToAddress(testPoolAddr), NewPriceConverter(6, 18, true))
}

// padTopic left-pads an address into a 32-byte topic word.
func padTopic(addr string) string {
	return common.BytesToHash(common.HexToAddress(addr).Bytes()).Hex()
}

// encodeWords packs values into consecutive 32-byte big-endian slots,
// two's-complement for negatives.
func encodeWords(vals ...*big.Int) string {
	buf := make([]byte, 0, len(vals)*wordSize)
	for _, v := range vals {
		w := new(big.Int).Mod(v, twoPow256)
		b := w.Bytes()
		pad := make([]byte, wordSize-len(b))
		buf = append(buf, pad...)
		buf = append(buf, b...)
	}
	return "0x" + hex.EncodeToString(buf)
}

func swapLog(data string) RawLog {
	return RawLog{
		Address: testPoolAddr,
		Topics: []string{
			SwapEventSignature.Hex(),
			padTopic(testSender),
			padTopic(testRecipient),
		},
		Data:            data,
		BlockNumber:     "0x112a880",
		TransactionHash: "0xdeadbeef",
	}
}

// go test -v --run TestDecodeSwap
func TestDecodeSwap(t *testing.T) {
	amount0, _ := new(big.Int).SetString("-1000000000000000000", 10)
	amount1 := big.NewInt(2500000000)
	sqrtPrice := new(big.Int).Lsh(big.NewInt(20000), 96) // $2500/ETH
	liquidity := big.NewInt(123456)
	tick := big.NewInt(-1000)

	l := swapLog(encodeWords(amount0, amount1, sqrtPrice, liquidity, tick))
	ev, err := testDecoder().Decode(l)
	require.NoError(t, err)

	require.Equal(t, testSender, ev.Sender)
	require.Equal(t, testRecipient, ev.Recipient)
	require.Equal(t, "-1000000000000000000", ev.Amount0)
	require.Equal(t, "2500000000", ev.Amount1)
	require.Equal(t, sqrtPrice.String(), ev.SqrtPriceX96)
	require.Equal(t, "123456", ev.Liquidity)
	require.Equal(t, int32(-1000), ev.Tick)
	require.Equal(t, uint64(0x112a880), ev.BlockNumber)
	require.Equal(t, "0xdeadbeef", ev.TxHash)
	require.InDelta(t, 2500.0, ev.Price, 2500.0*1e-6)
}

// go test -v --run TestDecodeRejectsWrongPool
func TestDecodeRejectsWrongPool(t *testing.T) {
	l := swapLog(encodeWords(big.NewInt(1), big.NewInt(1),
		new(big.Int).Lsh(big.NewInt(20000), 96), big.NewInt(1), big.NewInt(0)))
	l.Address = "0x3333333333333333333333333333333333333333"

	_, err := testDecoder().Decode(l)
	require.ErrorIs(t, err, ErrNotASwapEvent)
}

// go test -v --run TestDecodePoolAddressCaseInsensitive
func TestDecodePoolAddressCaseInsensitive(t *testing.T) {
	l := swapLog(encodeWords(big.NewInt(1), big.NewInt(1),
		new(big.Int).Lsh(big.NewInt(20000), 96), big.NewInt(1), big.NewInt(0)))
	l.Address = "0x88E6A0C2DDD26FEEB64F039A2C41296FCB3F5640"

	_, err := testDecoder().Decode(l)
	require.NoError(t, err)
}

// go test -v --run TestDecodeRejectsTopicCount
func TestDecodeRejectsTopicCount(t *testing.T) {
	data := encodeWords(big.NewInt(1), big.NewInt(1),
		new(big.Int).Lsh(big.NewInt(20000), 96), big.NewInt(1), big.NewInt(0))

	for _, topics := range [][]string{
		{},
		{SwapEventSignature.Hex()},
		{SwapEventSignature.Hex(), padTopic(testSender)},
		{SwapEventSignature.Hex(), padTopic(testSender), padTopic(testRecipient), padTopic(testSender)},
	} {
		l := swapLog(data)
		l.Topics = topics
		_, err := testDecoder().Decode(l)
		require.ErrorIs(t, err, ErrNotASwapEvent, "topics=%d", len(topics))
	}
}

// go test -v --run TestDecodeRejectsWrongSignature
func TestDecodeRejectsWrongSignature(t *testing.T) {
	l := swapLog(encodeWords(big.NewInt(1), big.NewInt(1),
		new(big.Int).Lsh(big.NewInt(20000), 96), big.NewInt(1), big.NewInt(0)))
	// Sync event signature instead of Swap
	l.Topics[0] = "0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1"

	_, err := testDecoder().Decode(l)
	require.ErrorIs(t, err, ErrNotASwapEvent)
}

// go test -v --run TestDecodeRejectsBadPayloadLength
func TestDecodeRejectsBadPayloadLength(t *testing.T) {
	for _, data := range []string{
		"0x",
		encodeWords(big.NewInt(1)),
		encodeWords(big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1)),
		encodeWords(big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1)),
		encodeWords(big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1)) + "ff", // truncated final slot
		"0xzznothex",
	} {
		l := swapLog(data)
		_, err := testDecoder().Decode(l)
		require.ErrorIs(t, err, ErrMalformedPayload, "data=%q", data)
	}
}

// go test -v --run TestDecodeAllZeroPayload
func TestDecodeAllZeroPayload(t *testing.T) {
	// Correctly shaped but all-zero: every numeric field decodes to zero,
	// so the price is underivable and the decode fails as InvalidPrice.
	l := swapLog(encodeWords(big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0)))

	_, err := testDecoder().Decode(l)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

// go test -v --run TestDecodeRejectsRemovedLog
func TestDecodeRejectsRemovedLog(t *testing.T) {
	l := swapLog(encodeWords(big.NewInt(1), big.NewInt(1),
		new(big.Int).Lsh(big.NewInt(20000), 96), big.NewInt(1), big.NewInt(0)))
	l.Removed = true

	_, err := testDecoder().Decode(l)
	require.ErrorIs(t, err, ErrNotASwapEvent)
}

// go test -v --run TestDecodeMissingProvenance
func TestDecodeMissingProvenance(t *testing.T) {
	l := swapLog(encodeWords(big.NewInt(1), big.NewInt(1),
		new(big.Int).Lsh(big.NewInt(20000), 96), big.NewInt(1), big.NewInt(0)))
	l.BlockNumber = ""
	l.TransactionHash = ""

	ev, err := testDecoder().Decode(l)
	require.NoError(t, err)
	require.Equal(t, uint64(0), ev.BlockNumber)
	require.Equal(t, "", ev.TxHash)
}
