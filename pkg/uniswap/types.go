package uniswap

// RawLog is the untrusted log record as delivered by the feed or an RPC
// response. All fields are hex-encoded strings; nothing here is validated.
type RawLog struct {
	Address         string   `json:"address"`         // emitting contract
	Topics          []string `json:"topics"`          // topic[0] = event signature, then indexed params
	Data            string   `json:"data"`            // non-indexed payload, 0x-prefixed
	BlockNumber     string   `json:"blockNumber"`     // optional provenance
	TransactionHash string   `json:"transactionHash"` // optional provenance
	Removed         bool     `json:"removed"`         // true when the log was reorged out
}

// SwapEvent is one fully decoded Swap log. It is immutable after decode;
// Price is derived once from SqrtPriceX96 and never recomputed.
type SwapEvent struct {
	Sender    string // lowercase hex address
	Recipient string // lowercase hex address

	// Token deltas, decimal strings. Signed 256-bit on-chain; one side of a
	// swap is negative.
	Amount0 string
	Amount1 string

	SqrtPriceX96 string // unsigned 160-bit, Q64.96 square-root price after the swap
	Liquidity    string // unsigned 128-bit pool liquidity after the swap
	Tick         int32  // signed 24-bit discretized price

	BlockNumber uint64 // zero when the feed omits it
	TxHash      string

	Price float64 // decimal price in quote units, per the pool's converter
}
