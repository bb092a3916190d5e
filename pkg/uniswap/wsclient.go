package uniswap

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnectionState describes where the feed client is in its lifecycle.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateSubscribed
	StateDegraded
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// ConnectionStatus pairs the state with the cause of the last degradation.
type ConnectionStatus struct {
	State  ConnectionState
	Reason string // set while Degraded, empty otherwise
}

// FeedOptions configures a FeedClient.
type FeedOptions struct {
	URL           string
	DialTimeout   time.Duration
	PingInterval  time.Duration
	ReconnectBase time.Duration // first retry delay after a failure
	ReconnectMax  time.Duration // cap for the doubling backoff
}

const subscribeRequestID = 1

// errFeedClosed aborts a dial or subscription handshake that loses the race
// with Close. Terminal: no state transition past Disconnected follows it.
var errFeedClosed = errors.New("feed client closed")

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type logFilter struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// subscriptionAck is the response to our eth_subscribe request. Push
// notifications carry no id, which is how the two are told apart.
type subscriptionAck struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// FeedClient owns a persistent eth_subscribe("logs") subscription for one
// pool: the websocket handle, the keepalive and reconnect timers, and the
// connection state all live here. Inbound messages are handed to the
// injected handler in delivery order; the handler must not block.
type FeedClient struct {
	opts    FeedOptions
	pool    common.Address
	handler func([]byte)
	logger  *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	status ConnectionStatus
	subID  string

	done      chan struct{}
	closeOnce sync.Once
}

func NewFeedClient(opts FeedOptions, pool common.Address, logger *zap.Logger) *FeedClient {
	return &FeedClient{
		opts:   opts,
		pool:   pool,
		logger: logger,
		status: ConnectionStatus{State: StateDisconnected},
		done:   make(chan struct{}),
	}
}

// SetMessageHandler sets the function invoked for every inbound message
// that is not the subscription ack. Must be called before Connect.
func (c *FeedClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// Status returns the current connection state and degradation reason.
func (c *FeedClient) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SubscriptionID returns the feed-assigned subscription identifier, empty
// until the first ack.
func (c *FeedClient) SubscriptionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subID
}

// Connect dials the feed and subscribes to the pool's Swap logs. The client
// is Subscribed only after the transport handshake succeeds and the
// subscription ack arrives. A failed Connect leaves the client Degraded;
// Listen will keep retrying from there.
func (c *FeedClient) Connect() error {
	c.setStatus(StateConnecting, "")
	if err := c.dialAndSubscribe(); err != nil {
		if errors.Is(err, errFeedClosed) {
			c.setStatus(StateDisconnected, "")
		} else {
			c.setStatus(StateDegraded, err.Error())
		}
		return err
	}
	return nil
}

func (c *FeedClient) dialAndSubscribe() error {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	conn, _, err := dialer.Dial(c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      subscribeRequestID,
		Method:  "eth_subscribe",
		Params: []interface{}{
			"logs",
			logFilter{Address: c.pool.Hex(), Topics: []string{SwapEventSignature.Hex()}},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("send subscription: %w", err)
	}

	// Wait for the ack under the dial deadline. A push may land first if the
	// node reuses a server-side subscription; hand those off and keep waiting.
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.DialTimeout))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return fmt.Errorf("await subscription ack: %w", err)
		}
		ack, ok := parseSubscriptionAck(msg)
		if !ok {
			if c.handler != nil {
				c.handler(msg)
			}
			continue
		}
		if ack.Error != nil {
			conn.Close()
			return fmt.Errorf("subscription rejected: %s (code %d)", ack.Error.Message, ack.Error.Code)
		}
		var subID string
		_ = json.Unmarshal(ack.Result, &subID)

		_ = conn.SetReadDeadline(time.Time{})

		// Registration and the shutdown check share one critical section:
		// a Close that already ran must never see this connection registered
		// after the fact, or it would leak open past shutdown.
		c.mu.Lock()
		select {
		case <-c.done:
			c.mu.Unlock()
			conn.Close()
			return errFeedClosed
		default:
		}
		c.conn = conn
		c.subID = subID
		c.status = ConnectionStatus{State: StateSubscribed}
		c.mu.Unlock()
		c.logger.Info("subscribed to swap logs",
			zap.String("pool", c.pool.Hex()), zap.String("subscription", subID))
		return nil
	}
}

// Listen reads until shutdown, reconnecting after transport failures.
// It returns only once Close has been called.
func (c *FeedClient) Listen() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			c.readLoop(conn)
			c.dropConn(conn)
		}

		select {
		case <-c.done:
			c.setStatus(StateDisconnected, "")
			return
		default:
		}

		if !c.reconnect() {
			c.setStatus(StateDisconnected, "")
			return
		}
	}
}

// readLoop pumps messages from one connection until it fails or shutdown
// begins. A malformed or unwanted message never tears the connection down;
// classification is the handler's job.
func (c *FeedClient) readLoop(conn *websocket.Conn) {
	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.keepAlive(conn, stopPing)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("feed read error", zap.Error(err))
				c.setStatus(StateDegraded, err.Error())
			}
			return
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// reconnect retries dial+subscribe with a doubling, capped backoff. Returns
// false when shutdown interrupts the wait.
func (c *FeedClient) reconnect() bool {
	backoff := c.opts.ReconnectBase
	for {
		select {
		case <-c.done:
			return false
		case <-time.After(backoff):
		}

		c.setStatus(StateConnecting, "")
		if err := c.dialAndSubscribe(); err != nil {
			if errors.Is(err, errFeedClosed) {
				return false
			}
			c.logger.Warn("reconnect failed", zap.Duration("backoff", backoff), zap.Error(err))
			c.setStatus(StateDegraded, err.Error())
			backoff *= 2
			if backoff > c.opts.ReconnectMax {
				backoff = c.opts.ReconnectMax
			}
			continue
		}
		return true
	}
}

func (c *FeedClient) keepAlive(conn *websocket.Conn, stop <-chan struct{}) {
	if c.opts.PingInterval <= 0 {
		return
	}
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-t.C:
			_ = conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

// Close shuts the client down for good: the transport is closed and any
// pending reconnect wait is cancelled. The client ends Disconnected.
func (c *FeedClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	c.setStatus(StateDisconnected, "")
}

func (c *FeedClient) dropConn(conn *websocket.Conn) {
	_ = conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *FeedClient) setStatus(state ConnectionState, reason string) {
	c.mu.Lock()
	c.status = ConnectionStatus{State: state, Reason: reason}
	c.mu.Unlock()
}

// parseSubscriptionAck reports whether msg is the response to a request we
// sent. Push notifications carry no id field.
func parseSubscriptionAck(msg []byte) (*subscriptionAck, bool) {
	var a subscriptionAck
	if json.Unmarshal(msg, &a) != nil {
		return nil, false
	}
	if a.ID != subscribeRequestID {
		return nil, false
	}
	return &a, true
}
