package clients

import (
	"fmt"
	"net"
	"sync"

	"nhooyr.io/websocket"
)

const (
	// ClientIDMaxRetries represents the maximum number of retries when generating a unique ID
	ClientIDMaxRetries = 1024
)

// Client represents a connected client
type Client struct {
	ID         uint32
	WSConn     *websocket.Conn
	UDPAddress *net.UDPAddr
}

// ClientManager manages connected clients
type ClientManager struct {
	clients     map[uint32]*Client
	clientsLock sync.RWMutex
	nextID      uint32
	// UDP connection for broadcasting to clients
	udpConn      *net.UDPConn
	eventManager *ClientEventManager
}

// NewClientManager creates a new ClientManager
func NewClientManager(eventManager *ClientEventManager) *ClientManager {
	if eventManager == nil {
		eventManager = NewClientEventManager()
	}
	return &ClientManager{
		clients:      make(map[uint32]*Client),
		nextID:       1,
		eventManager: eventManager,
	}
}

// SetUDPConn sets the UDP listener connection for all clients
func (cm *ClientManager) SetUDPConn(conn *net.UDPConn) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	cm.udpConn = conn
}

// GetUDPConn returns the UDP listener connection, or nil if UDP is not running
func (cm *ClientManager) GetUDPConn() *net.UDPConn {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return cm.udpConn
}

// GetClients returns a copy of every connected client
func (cm *ClientManager) GetClients() []Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	clients := make([]Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		clients = append(clients, *client)
	}
	return clients
}

// AddClient adds a new client to the manager and returns its ID
func (cm *ClientManager) AddClient(wsConn *websocket.Conn) (uint32, error) {
	cm.clientsLock.Lock()
	clientID, err := cm.generateUniqueID(ClientIDMaxRetries)
	if err != nil {
		cm.clientsLock.Unlock()
		return 0, fmt.Errorf("failed to generate a unique ID: %v", err)
	}
	cm.clients[clientID] = &Client{
		ID:     clientID,
		WSConn: wsConn,
	}
	cm.clientsLock.Unlock()

	cm.eventManager.Trigger(ClientEvent{Type: ClientEventTypeConnect, ClientID: clientID})
	return clientID, nil
}

// RemoveClient removes a client from the manager.
func (cm *ClientManager) RemoveClient(clientID uint32) {
	cm.clientsLock.Lock()
	_, exists := cm.clients[clientID]
	delete(cm.clients, clientID)
	cm.clientsLock.Unlock()

	if exists {
		cm.eventManager.Trigger(ClientEvent{Type: ClientEventTypeDisconnect, ClientID: clientID})
	}
}

// SetUDPAddress sets the UDP address of a client
func (cm *ClientManager) SetUDPAddress(clientID uint32, addr *net.UDPAddr) error {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client, ok := cm.clients[clientID]
	if !ok {
		return fmt.Errorf("client %d does not exist", clientID)
	}
	client.UDPAddress = addr
	return nil
}

// GetClientByID retrieves a copy of a client by its ID
func (cm *ClientManager) GetClientByID(clientID uint32) (Client, bool) {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	client, ok := cm.clients[clientID]
	if !ok {
		return Client{}, false
	}
	return *client, true
}

func (cm *ClientManager) Exists(clientID uint32) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[clientID]
	return ok
}

// generateUniqueID generates a unique client ID with a maximum number of retries.
// The caller must hold the write lock.
func (cm *ClientManager) generateUniqueID(maxRetries int) (uint32, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := cm.nextID
		cm.nextID++
		if id == 0 {
			// 0 means "from the server" on the wire
			continue
		}
		if _, ok := cm.clients[id]; !ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}
