package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/gravwell/pkg/log"
	"github.com/cbodonnell/gravwell/pkg/messages"
	"github.com/cbodonnell/gravwell/pkg/queue"
)

const (
	DefaultServerHostname = "localhost"
	DefaultServerWSPort   = 8888
	DefaultServerUDPPort  = 8889

	// PingInterval is how often the WebSocket round trip time is measured.
	PingInterval = 5 * time.Second
	pingTimeout  = 5 * time.Second
	recentRTTMax = 10
)

// NetworkManager owns the connections to the game server and feeds every
// state update they receive into the server message queue.
type NetworkManager struct {
	serverMessageQueue queue.Queue
	wsClient           *WSClient
	udpClient          *UDPClient
	clientErrChan      chan error
	cancelClientCtx    context.CancelFunc
	clientWaitGroup    *sync.WaitGroup
	// clientID is used in UDP pings until the server assigns one
	clientID     uint32
	pingInterval time.Duration
	ping         float64
	recentRTTs   []int64
	pingMutex    sync.Mutex
}

type NewNetworkManagerOptions struct {
	// WSURL is the server's WebSocket endpoint, e.g. ws://localhost:8888/ws
	WSURL string
	// UDPAddr is the server's UDP address. Leave empty to disable UDP.
	UDPAddr      string
	ClientID     uint32
	MessageQueue queue.Queue
	// PingInterval defaults to PingInterval
	PingInterval time.Duration
}

// NewNetworkManager creates a new network manager.
func NewNetworkManager(opts NewNetworkManagerOptions) (*NetworkManager, error) {
	if opts.MessageQueue == nil {
		return nil, fmt.Errorf("message queue is required")
	}

	var udpClient *UDPClient
	if opts.UDPAddr != "" {
		var err error
		udpClient, err = NewUDPClient(opts.UDPAddr, opts.MessageQueue)
		if err != nil {
			return nil, fmt.Errorf("failed to create UDP client: %v", err)
		}
	}

	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = PingInterval
	}

	return &NetworkManager{
		serverMessageQueue: opts.MessageQueue,
		wsClient:           NewWSClient(opts.WSURL, opts.MessageQueue),
		udpClient:          udpClient,
		clientErrChan:      make(chan error, 2),
		clientWaitGroup:    &sync.WaitGroup{},
		clientID:           opts.ClientID,
		pingInterval:       pingInterval,
	}, nil
}

// Start connects to the server and starts receiving messages in the background.
func (m *NetworkManager) Start(ctx context.Context) error {
	if m.cancelClientCtx != nil {
		return fmt.Errorf("network manager already started")
	}

	if err := m.wsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to start WebSocket client: %v", err)
	}
	if m.udpClient != nil {
		if err := m.udpClient.Connect(); err != nil {
			m.wsClient.Close()
			return fmt.Errorf("failed to start UDP client: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancelClientCtx = cancel

	m.clientWaitGroup.Add(1)
	go func(ctx context.Context) {
		defer m.clientWaitGroup.Done()
		if err := m.wsClient.HandleMessages(ctx); err != nil {
			m.reportClientErr(fmt.Errorf("WebSocket client: %v", err))
		}
	}(ctx)

	if m.udpClient != nil {
		m.clientWaitGroup.Add(1)
		go func(ctx context.Context) {
			defer m.clientWaitGroup.Done()
			if err := m.udpClient.HandleMessages(ctx); err != nil {
				m.reportClientErr(fmt.Errorf("UDP client: %v", err))
			}
		}(ctx)
	}

	m.clientWaitGroup.Add(1)
	go func(ctx context.Context) {
		defer m.clientWaitGroup.Done()
		m.pingLoop(ctx)
	}(ctx)

	log.Info("Network manager started")
	return nil
}

func (m *NetworkManager) reportClientErr(err error) {
	select {
	case m.clientErrChan <- err:
	default:
		log.Error("Dropping network client error: %v", err)
	}
}

// ClientID returns the ID assigned by the server, falling back to the configured one.
func (m *NetworkManager) ClientID() uint32 {
	if id := m.wsClient.ClientID(); id != 0 {
		return id
	}
	return m.clientID
}

func (m *NetworkManager) pingUDP() error {
	pingUDPMsg := &messages.Message{
		ClientID: m.ClientID(),
		Type:     messages.MessageTypeClientPing,
	}
	return m.udpClient.SendMessage(pingUDPMsg)
}

// announceUDP pings over UDP as soon as the server has assigned a client ID
// so the server can link our UDP address to the WebSocket client.
func (m *NetworkManager) announceUDP(ctx context.Context) {
	timer := time.NewTimer(pingTimeout)
	defer timer.Stop()

	select {
	case <-m.wsClient.ClientIDReady():
	case <-timer.C:
		log.Warn("No client ID from the server after %s, pinging UDP with %d", pingTimeout, m.ClientID())
	case <-ctx.Done():
		return
	}
	if err := m.pingUDP(); err != nil {
		log.Warn("Failed to ping UDP: %v", err)
	}
}

func (m *NetworkManager) pingLoop(ctx context.Context) {
	if m.udpClient != nil {
		m.announceUDP(ctx)
	}

	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// keeps the server's view of our UDP address current
			if m.udpClient != nil {
				if err := m.pingUDP(); err != nil {
					log.Debug("Failed to ping UDP: %v", err)
				}
			}
			if err := m.measurePing(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("Failed to measure ping: %v", err)
			}
		}
	}
}

func (m *NetworkManager) measurePing(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	if err := m.wsClient.Ping(ctx); err != nil {
		return err
	}
	rtt := time.Since(start).Milliseconds()
	ping := m.recordRTT(rtt)
	log.Trace("Ping: %0.2fms (rtt %dms)", ping, rtt)
	return nil
}

// recordRTT keeps track of the last few RTTs and returns the resulting average ping.
func (m *NetworkManager) recordRTT(rtt int64) float64 {
	m.pingMutex.Lock()
	defer m.pingMutex.Unlock()

	m.recentRTTs = append(m.recentRTTs, rtt)
	for len(m.recentRTTs) > recentRTTMax {
		m.recentRTTs = m.recentRTTs[1:]
	}

	m.ping = averageRTT(removeOutlierRTTs(m.recentRTTs))
	return m.ping
}

// Stop stops the network manager and its clients and clears the server message queue.
func (m *NetworkManager) Stop() error {
	if m.cancelClientCtx == nil {
		log.Warn("Network manager already stopped")
		return nil
	}
	m.cancelClientCtx()

	if err := m.wsClient.Close(); err != nil {
		log.Debug("Failed to close WebSocket client: %v", err)
	}
	if m.udpClient != nil {
		if err := m.udpClient.Close(); err != nil {
			log.Debug("Failed to close UDP client: %v", err)
		}
	}

	log.Debug("Waiting for clients to stop")
	m.clientWaitGroup.Wait()
	if err := m.serverMessageQueue.ClearQueue(); err != nil {
		return fmt.Errorf("failed to clear server message queue: %v", err)
	}

	m.cancelClientCtx = nil

	log.Info("Network manager stopped")

	return nil
}

// Ping returns the average round trip time to the server in milliseconds.
func (m *NetworkManager) Ping() float64 {
	m.pingMutex.Lock()
	defer m.pingMutex.Unlock()
	return m.ping
}

func (m *NetworkManager) ServerMessageQueue() queue.Queue {
	return m.serverMessageQueue
}

// ClientErrChan receives an error when a client stops unexpectedly.
func (m *NetworkManager) ClientErrChan() <-chan error {
	return m.clientErrChan
}

func (m *NetworkManager) SendReliableMessage(ctx context.Context, msg *messages.Message) error {
	return m.wsClient.SendMessage(ctx, msg)
}

func (m *NetworkManager) SendUnreliableMessage(msg *messages.Message) error {
	if m.udpClient == nil {
		return fmt.Errorf("UDP is disabled")
	}
	return m.udpClient.SendMessage(msg)
}
