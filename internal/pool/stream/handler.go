package stream

import (
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/ssanin82/uniswap-pool-monitor/internal/pool/series"
	"github.com/ssanin82/uniswap-pool-monitor/pkg/uniswap"

	"go.uber.org/zap"
)

// Counters tracks messages dropped at the decode boundary. Drops are
// diagnostics, never feed failures: a malformed event must not tear down
// the connection.
type Counters struct {
	Unparseable  atomic.Uint64 // envelope did not parse as JSON
	NotSwap      atomic.Uint64 // wrong origin, topics or signature
	Malformed    atomic.Uint64 // bad payload length or hex
	InvalidPrice atomic.Uint64 // zero sqrtPriceX96
}

// MakeMessageHandler returns the function the feed client invokes for every
// inbound message. Only subscription pushes are decoded; everything else
// (acks, unrelated responses) is ignored. Each decoded swap updates the
// current price, appends a point to the series, and is offered to the
// optional sink (the archive path) — the sink must not block.
func MakeMessageHandler(logger *zap.Logger, decoder *uniswap.LogDecoder,
	buf *series.Buffer, counters *Counters, sink func(uniswap.SwapEvent)) func(msg []byte) {
	return func(msg []byte) {
		// Cheap filter first: pull only the method tag before committing to
		// a full parse.
		var meta struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(msg, &meta); err != nil {
			counters.Unparseable.Add(1)
			logger.Warn("unparseable feed message", zap.Error(err))
			return
		}
		if !strings.EqualFold(meta.Method, subscriptionMethod) {
			return
		}

		var push pushEnvelope
		if err := json.Unmarshal(msg, &push); err != nil {
			counters.Unparseable.Add(1)
			logger.Warn("unparseable subscription push", zap.Error(err))
			return
		}

		ev, err := decoder.Decode(push.Params.Result)
		if err != nil {
			switch {
			case errors.Is(err, uniswap.ErrMalformedPayload):
				counters.Malformed.Add(1)
			case errors.Is(err, uniswap.ErrInvalidPrice):
				counters.InvalidPrice.Add(1)
			default:
				counters.NotSwap.Add(1)
			}
			logger.Debug("dropped feed message", zap.Error(err))
			return
		}

		buf.Observe(ev.Price)
		if sink != nil {
			sink(*ev)
		}
	}
}
