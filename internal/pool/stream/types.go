package stream

import "github.com/ssanin82/uniswap-pool-monitor/pkg/uniswap"

// subscriptionMethod tags push messages carrying a log for an active
// subscription, as opposed to request acks or unrelated responses.
const subscriptionMethod = "eth_subscription"

// pushEnvelope is the feed's notification frame:
// {"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0x..","result":{...log...}}}
type pushEnvelope struct {
	Method string `json:"method"`
	Params struct {
		Subscription string         `json:"subscription"`
		Result       uniswap.RawLog `json:"result"`
	} `json:"params"`
}
