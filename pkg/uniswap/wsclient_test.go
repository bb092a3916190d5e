package uniswap

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// feedServer fakes the upstream node: it acks eth_subscribe, optionally
// pushes one message, and drops the first connection to force a reconnect.
type feedServer struct {
	upgrader    websocket.Upgrader
	pushOnFirst []byte

	mu       sync.Mutex
	requests []rpcRequest
	conns    int32
}

func (s *feedServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	n := atomic.AddInt32(&s.conns, 1)

	var req rpcRequest
	if err := conn.ReadJSON(&req); err != nil {
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	ack := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":"0xsub%d"}`, req.ID, n)
	_ = conn.WriteMessage(websocket.TextMessage, []byte(ack))

	if n == 1 {
		if s.pushOnFirst != nil {
			_ = conn.WriteMessage(websocket.TextMessage, s.pushOnFirst)
		}
		// abrupt closure while subscribed
		conn.Close()
		return
	}

	// later connections stay open until the client hangs up
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *feedServer) recordedRequests() []rpcRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rpcRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testFeedClient(url string) *FeedClient {
	pool := common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	return NewFeedClient(FeedOptions{
		URL:           url,
		DialTimeout:   2 * time.Second,
		ReconnectBase: 10 * time.Millisecond,
		ReconnectMax:  50 * time.Millisecond,
	}, pool, zap.NewNop())
}

// go test -v --run TestFeedClientReconnectsAndResubscribes
func TestFeedClientReconnectsAndResubscribes(t *testing.T) {
	fs := &feedServer{pushOnFirst: []byte(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xsub1","result":{}}}`)}
	srv := httptest.NewServer(http.HandlerFunc(fs.handle))
	defer srv.Close()

	received := make(chan []byte, 16)
	c := testFeedClient(wsURL(srv))
	c.SetMessageHandler(func(msg []byte) {
		select {
		case received <- msg:
		default:
		}
	})

	require.NoError(t, c.Connect())
	require.Equal(t, StateSubscribed, c.Status().State)
	require.Equal(t, "0xsub1", c.SubscriptionID())

	listenDone := make(chan struct{})
	go func() {
		c.Listen()
		close(listenDone)
	}()

	// the push sent before the drop reaches the handler
	select {
	case msg := <-received:
		require.Contains(t, string(msg), "eth_subscription")
	case <-time.After(2 * time.Second):
		t.Fatal("push message never reached the handler")
	}

	// abrupt closure -> reconnect -> fresh subscription ack
	require.Eventually(t, func() bool {
		return c.SubscriptionID() == "0xsub2" && c.Status().State == StateSubscribed
	}, 2*time.Second, 10*time.Millisecond)

	// the subscription request is resent verbatim
	reqs := fs.recordedRequests()
	require.Len(t, reqs, 2)
	require.Equal(t, "eth_subscribe", reqs[0].Method)
	require.Equal(t, reqs[0], reqs[1])

	c.Close()
	select {
	case <-listenDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Close")
	}
	require.Equal(t, StateDisconnected, c.Status().State)
}

// go test -v --run TestFeedClientCloseDuringResubscribe
func TestFeedClientCloseDuringResubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	resubscribing := make(chan struct{})
	releaseAck := make(chan struct{})
	var conns int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		n := atomic.AddInt32(&conns, 1)
		if n == 1 {
			_ = conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"jsonrpc":"2.0","id":1,"result":"0xsub1"}`))
			// abrupt closure while subscribed
			conn.Close()
			return
		}
		// hold the second ack so the client is mid-handshake when Close runs
		close(resubscribing)
		<-releaseAck
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"jsonrpc":"2.0","id":1,"result":"0xsub2"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := testFeedClient(wsURL(srv))
	require.NoError(t, c.Connect())

	listenDone := make(chan struct{})
	go func() {
		c.Listen()
		close(listenDone)
	}()

	select {
	case <-resubscribing:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect never reached the handshake")
	}

	c.Close()
	close(releaseAck) // late ack lands after shutdown began

	select {
	case <-listenDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Close")
	}
	require.Equal(t, StateDisconnected, c.Status().State)
	// the post-Close ack must not register a live subscription
	require.Equal(t, "0xsub1", c.SubscriptionID())
}

// go test -v --run TestFeedClientDegradedOnDialFailure
func TestFeedClientDegradedOnDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := wsURL(srv)
	srv.Close() // nothing is listening anymore

	c := testFeedClient(url)
	err := c.Connect()
	require.Error(t, err)

	status := c.Status()
	require.Equal(t, StateDegraded, status.State)
	require.NotEmpty(t, status.Reason)

	c.Close()
	require.Equal(t, StateDisconnected, c.Status().State)
}

// go test -v --run TestFeedClientRejectedSubscription
func TestFeedClientRejectedSubscription(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"no logs for you"}}`))
		conn.Close()
	}))
	defer srv.Close()

	c := testFeedClient(wsURL(srv))
	err := c.Connect()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no logs for you")
	require.Equal(t, StateDegraded, c.Status().State)

	c.Close()
}

// go test -v --run TestConnectionStateStrings
func TestConnectionStateStrings(t *testing.T) {
	require.Equal(t, "disconnected", StateDisconnected.String())
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "subscribed", StateSubscribed.String())
	require.Equal(t, "degraded", StateDegraded.String())
}
