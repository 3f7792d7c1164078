package network

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/gravwell/pkg/messages"
	"github.com/cbodonnell/gravwell/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func mustMessage(t *testing.T, typ messages.MessageType, payload interface{}) *messages.Message {
	t.Helper()
	msg, err := messages.NewMessage(0, typ, payload)
	require.NoError(t, err)
	return msg
}

func mustSerialize(t *testing.T, msg *messages.Message) []byte {
	t.Helper()
	b, err := messages.SerializeMessage(msg)
	require.NoError(t, err)
	return b
}

// newWSServer writes msgs to every client and then either closes the
// connection or keeps reading until the client goes away.
func newWSServer(t *testing.T, msgs []*messages.Message, closeAfterWrite bool) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("failed to accept websocket: %v", err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "")

		ctx := r.Context()
		for _, msg := range msgs {
			b, err := messages.SerializeMessage(msg)
			if err != nil {
				t.Errorf("failed to serialize message: %v", err)
				return
			}
			if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
				return
			}
		}

		if closeAfterWrite {
			conn.Close(websocket.StatusNormalClosure, "match over")
			return
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func drain(t *testing.T, q queue.Queue, n int) []*messages.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := make([]*messages.Message, 0, n)
	for len(result) < n {
		item, err := q.Dequeue(ctx)
		require.NoError(t, err)
		msg, ok := item.(*messages.Message)
		require.True(t, ok)
		result = append(result, msg)
	}
	return result
}

func TestWSClient_HandleMessages(t *testing.T) {
	sent := []*messages.Message{
		mustMessage(t, messages.MessageTypeServerPlayerPosition, messages.ServerPlayerPosition{User: "bob", X: 1, Y: 2, Angle: 3}),
		mustMessage(t, messages.MessageTypeServerPong, messages.ServerPong{ClientID: 42}),
		mustMessage(t, messages.MessageTypeServerPlayerDeath, messages.ServerPlayerDeath{User: "bob"}),
		mustMessage(t, messages.MessageTypeServerBoost, messages.ServerBoost{Boost: 42}),
		mustMessage(t, messages.MessageTypeServerMatchWon, nil),
	}
	url := newWSServer(t, sent, true)

	q := queue.NewInMemoryQueue(16)
	client := NewWSClient(url, q)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	err := client.HandleMessages(ctx)
	assert.True(t, IsConnectionClosedByServer(err), "unexpected error: %v", err)

	assert.Equal(t, uint32(42), client.ClientID())

	// pong is not a state update
	require.Equal(t, 4, q.Size())
	got := drain(t, q, 4)
	assert.Equal(t, messages.MessageTypeServerPlayerPosition, got[0].Type)
	assert.JSONEq(t, `{"user":"bob","x":1,"y":2,"angle":3}`, string(got[0].Payload))
	assert.Equal(t, messages.MessageTypeServerPlayerDeath, got[1].Type)
	assert.Equal(t, messages.MessageTypeServerBoost, got[2].Type)
	assert.JSONEq(t, `{"boost":42}`, string(got[2].Payload))
	assert.Equal(t, messages.MessageTypeServerMatchWon, got[3].Type)
}

func TestWSClient_handleMessage_waitsForQueueSpace(t *testing.T) {
	q := queue.NewInMemoryQueue(2)
	client := NewWSClient("ws://localhost:1", q)
	ctx := context.Background()

	update := mustSerialize(t, mustMessage(t, messages.MessageTypeServerGameUpdate, messages.ServerGameUpdate{Timestamp: 1}))
	require.NoError(t, client.handleMessage(ctx, update))
	require.NoError(t, client.handleMessage(ctx, update))

	death := mustSerialize(t, mustMessage(t, messages.MessageTypeServerPlayerDeath, messages.ServerPlayerDeath{User: "alice"}))
	handled := make(chan error, 1)
	go func() {
		handled <- client.handleMessage(ctx, death)
	}()

	select {
	case err := <-handled:
		t.Fatalf("handleMessage returned %v while the queue was full", err)
	case <-time.After(20 * time.Millisecond):
	}

	got := drain(t, q, 1)
	assert.Equal(t, messages.MessageTypeServerGameUpdate, got[0].Type)

	select {
	case err := <-handled:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("handleMessage did not resume once there was space")
	}
	got = drain(t, q, 2)
	assert.Equal(t, messages.MessageTypeServerGameUpdate, got[0].Type)
	assert.Equal(t, messages.MessageTypeServerPlayerDeath, got[1].Type)
	assert.JSONEq(t, `{"user":"alice"}`, string(got[1].Payload))
}

func TestWSClient_handleMessage_fullQueueHonoursContext(t *testing.T) {
	q := queue.NewInMemoryQueue(1)
	require.NoError(t, q.Enqueue("pending"))
	client := NewWSClient("ws://localhost:1", q)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	won := mustSerialize(t, mustMessage(t, messages.MessageTypeServerMatchWon, nil))
	assert.Error(t, client.handleMessage(ctx, won))
	assert.Equal(t, 1, q.Size())
}

func TestWSClient_ClientIDReady(t *testing.T) {
	client := NewWSClient("ws://localhost:1", queue.NewInMemoryQueue(1))
	select {
	case <-client.ClientIDReady():
		t.Fatal("client ID ready before the greeting")
	default:
	}

	pong := mustSerialize(t, mustMessage(t, messages.MessageTypeServerPong, messages.ServerPong{ClientID: 9}))
	require.NoError(t, client.handleMessage(context.Background(), pong))
	// later pongs do not close the channel twice
	require.NoError(t, client.handleMessage(context.Background(), pong))

	select {
	case <-client.ClientIDReady():
	default:
		t.Fatal("client ID not ready after the greeting")
	}
	assert.Equal(t, uint32(9), client.ClientID())
}

func TestWSClient_HandleMessages_contextCancelled(t *testing.T) {
	url := newWSServer(t, nil, false)

	client := NewWSClient(url, queue.NewInMemoryQueue(1))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.HandleMessages(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("HandleMessages did not return after cancel")
	}
}

func TestWSClient_SendMessage_notConnected(t *testing.T) {
	client := NewWSClient("ws://localhost:1", queue.NewInMemoryQueue(1))
	err := client.SendMessage(context.Background(), mustMessage(t, messages.MessageTypeClientPing, nil))
	assert.IsType(t, &ErrConnectionClosedByClient{}, err)
}

func TestUDPClient_HandleMessages(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverConn.Close()

	q := queue.NewInMemoryQueue(16)
	client, err := NewUDPClient(serverConn.LocalAddr().String(), q)
	require.NoError(t, err)
	require.NoError(t, client.Connect())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.HandleMessages(ctx)
	}()

	clientAddr := client.LocalAddr().(*net.UDPAddr)
	update := mustMessage(t, messages.MessageTypeServerGameUpdate, messages.ServerGameUpdate{
		Timestamp: 1,
		Players:   []messages.ServerPlayerPosition{{User: "bob", X: 1, Y: 1, Angle: 1}},
	})
	// only game updates travel over UDP
	death := mustMessage(t, messages.MessageTypeServerPlayerDeath, messages.ServerPlayerDeath{User: "bob"})
	for _, msg := range []*messages.Message{death, update} {
		_, err := serverConn.WriteToUDP(mustSerialize(t, msg), clientAddr)
		require.NoError(t, err)
	}

	got := drain(t, q, 1)
	assert.Equal(t, messages.MessageTypeServerGameUpdate, got[0].Type)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("HandleMessages did not return after cancel")
	}
	assert.Equal(t, 0, q.Size())
}

func TestNetworkManager(t *testing.T) {
	wsURL := newWSServer(t, []*messages.Message{
		mustMessage(t, messages.MessageTypeServerPong, messages.ServerPong{ClientID: 7}),
		mustMessage(t, messages.MessageTypeServerCountdown, messages.ServerCountdown{Countdown: true}),
	}, false)

	udpServer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer udpServer.Close()

	// the first UDP ping already carries the ID from the WebSocket greeting;
	// answer it with a game update
	go func() {
		buf := make([]byte, messages.MessageBufferSize)
		n, addr, err := udpServer.ReadFromUDP(buf)
		if err != nil {
			return
		}
		msg, err := messages.DeserializeMessage(buf[:n])
		if err != nil || msg.Type != messages.MessageTypeClientPing || msg.ClientID != 7 {
			t.Errorf("unexpected UDP ping: %+v %v", msg, err)
			return
		}
		reply, err := messages.NewMessage(0, messages.MessageTypeServerGameUpdate, messages.ServerGameUpdate{Timestamp: 1})
		if err != nil {
			return
		}
		b, err := messages.SerializeMessage(reply)
		if err != nil {
			return
		}
		udpServer.WriteToUDP(b, addr)
	}()

	q := queue.NewInMemoryQueue(16)
	m, err := NewNetworkManager(NewNetworkManagerOptions{
		WSURL:        wsURL,
		UDPAddr:      udpServer.LocalAddr().String(),
		ClientID:     3,
		MessageQueue: q,
		PingInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))

	got := drain(t, q, 2)
	types := []messages.MessageType{got[0].Type, got[1].Type}
	assert.ElementsMatch(t, []messages.MessageType{messages.MessageTypeServerCountdown, messages.MessageTypeServerGameUpdate}, types)
	assert.Equal(t, uint32(7), m.ClientID())

	assert.Eventually(t, func() bool {
		m.pingMutex.Lock()
		defer m.pingMutex.Unlock()
		return len(m.recentRTTs) > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	assert.Equal(t, 0, q.Size())

	select {
	case err := <-m.ClientErrChan():
		t.Fatalf("unexpected client error: %v", err)
	default:
	}
}

func TestNewNetworkManager_requiresQueue(t *testing.T) {
	_, err := NewNetworkManager(NewNetworkManagerOptions{WSURL: "ws://localhost:1"})
	assert.Error(t, err)
}
