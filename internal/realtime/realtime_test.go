package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/koseken/game-trading/pkg/config"
)

type gauge struct {
	mu   sync.Mutex
	open int
}

func (g *gauge) ConnectionOpened() { g.mu.Lock(); g.open++; g.mu.Unlock() }
func (g *gauge) ConnectionClosed() { g.mu.Lock(); g.open--; g.mu.Unlock() }

func (g *gauge) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (b *fakeBus) ChannelName(parts ...string) string {
	return "gt:channel:" + strings.Join(parts, ":")
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = map[string][][]byte{}
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) PSubscribe(context.Context, ...string) (*goredis.PubSub, error) {
	return nil, nil
}

func testClient(h *Hub, transactionID uuid.UUID, buffer int) *Client {
	return &Client{hub: h, send: make(chan []byte, buffer), transactionID: transactionID}
}

func TestHubDeliversOnlyToTransactionRoom(t *testing.T) {
	metrics := &gauge{}
	h := NewHub(HubParams{Metrics: metrics})
	txA, txB := uuid.New(), uuid.New()
	a := testClient(h, txA, 1)
	b := testClient(h, txB, 1)
	h.register(a)
	h.register(b)
	require.Equal(t, 2, metrics.value())

	h.Deliver(txA, []byte("hello"))
	require.Equal(t, "hello", string(<-a.send))
	require.Len(t, b.send, 0)

	h.unregister(a)
	h.unregister(a)
	require.Equal(t, 0, h.Connections(txA))
	require.Equal(t, 1, metrics.value())
	_, open := <-a.send
	require.False(t, open)
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub(HubParams{})
	txn := uuid.New()
	slow := testClient(h, txn, 1)
	h.register(slow)

	h.Deliver(txn, []byte("first"))
	h.Deliver(txn, []byte("second"))
	require.Equal(t, 0, h.Connections(txn))
	require.Equal(t, "first", string(<-slow.send))
	_, open := <-slow.send
	require.False(t, open)
}

func TestBrokerPublishesAndSkipsOwnOrigin(t *testing.T) {
	h := NewHub(HubParams{})
	bus := &fakeBus{}
	broker, err := NewBroker(BrokerParams{Hub: h, Bus: bus, Origin: "api-1"})
	require.NoError(t, err)
	txn := uuid.New()
	local := testClient(h, txn, 4)
	h.register(local)

	require.NoError(t, broker.Broadcast(context.Background(), txn, "message.created", map[string]any{"seq": 1}))
	var frame Event
	require.NoError(t, json.Unmarshal(<-local.send, &frame))
	require.Equal(t, "message.created", frame.Type)
	require.Equal(t, txn, frame.TransactionID)
	require.JSONEq(t, `{"seq":1}`, string(frame.Data))

	published := bus.published["gt:channel:messages:"+txn.String()]
	require.Len(t, published, 1)

	// an instance ignores what it published itself
	broker.relay(context.Background(), published[0])
	require.Len(t, local.send, 0)

	other, err := NewBroker(BrokerParams{Hub: h, Bus: bus, Origin: "api-2"})
	require.NoError(t, err)
	other.relay(context.Background(), published[0])
	require.Len(t, local.send, 1)

	other.relay(context.Background(), []byte("not json"))
	require.Len(t, local.send, 1)
}

func TestServeStreamsEventsOverWebsocket(t *testing.T) {
	metrics := &gauge{}
	h := NewHub(HubParams{
		Config:  config.RealtimeConfig{WriteWait: time.Second, PongWait: 5 * time.Second, SendBuffer: 8, MaxMessageSize: 1024},
		Metrics: metrics,
	})
	broker, err := NewBroker(BrokerParams{Hub: h, Origin: "api-1"})
	require.NoError(t, err)
	txn := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r, txn, uuid.New())
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Connections(txn) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, broker.Broadcast(context.Background(), txn, "transaction.updated", map[string]string{"status": "completed"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame Event
	require.NoError(t, json.Unmarshal(payload, &frame))
	require.Equal(t, "transaction.updated", frame.Type)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Connections(txn) == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 0, metrics.value())
}
