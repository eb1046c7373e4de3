package server

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/xkms/internal/ipc"
	"github.com/bnema/xkms/internal/logger"
)

// Each client owns one block of resource identifiers. Block 0 belongs to
// the server.
const (
	clientIDBits = 21
	ResourceMask = 1<<clientIDBits - 1
	maxClients   = 255
)

var ErrTooManyClients = errors.New("maximum number of clients reached")

// ClientManager tracks connected X11 clients and their identifier ranges
type ClientManager struct {
	mu      sync.RWMutex
	clients map[uint32]*ConnectedClient

	// Called outside the lock
	onConnect    func(ipc.ClientInfo)
	onDisconnect func(ipc.ClientInfo)
}

// ConnectedClient represents one X11 connection
type ConnectedClient struct {
	ID           uint32
	Address      string
	ResourceBase uint32
	ConnectedAt  time.Time

	requests atomic.Uint64
}

// NewClientManager creates an empty client registry
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[uint32]*ConnectedClient),
	}
}

// SetOnConnect sets the callback run after a client registers
func (cm *ClientManager) SetOnConnect(fn func(ipc.ClientInfo)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onConnect = fn
}

// SetOnDisconnect sets the callback run after a client is unregistered
func (cm *ClientManager) SetOnDisconnect(fn func(ipc.ClientInfo)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onDisconnect = fn
}

// RegisterClient allocates the lowest free client slot
func (cm *ClientManager) RegisterClient(address string) (*ConnectedClient, error) {
	client, notify := cm.register(address)
	if client == nil {
		return nil, ErrTooManyClients
	}
	logger.Info("Client connected", "client", client.ID, "address", address)
	if notify != nil {
		notify(client.info())
	}
	return client, nil
}

func (cm *ClientManager) register(address string) (*ConnectedClient, func(ipc.ClientInfo)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for id := uint32(1); id <= maxClients; id++ {
		if _, taken := cm.clients[id]; taken {
			continue
		}
		client := &ConnectedClient{
			ID:           id,
			Address:      address,
			ResourceBase: id << clientIDBits,
			ConnectedAt:  time.Now(),
		}
		cm.clients[id] = client
		return client, cm.onConnect
	}
	return nil, nil
}

// UnregisterClient frees a client slot. Windows the client created stay.
func (cm *ClientManager) UnregisterClient(id uint32) {
	cm.mu.Lock()
	client, exists := cm.clients[id]
	if exists {
		delete(cm.clients, id)
	}
	notify := cm.onDisconnect
	cm.mu.Unlock()

	if !exists {
		return
	}
	logger.Info("Client disconnected", "client", id, "requests", client.requests.Load())
	if notify != nil {
		notify(client.info())
	}
}

func (c *ConnectedClient) info() ipc.ClientInfo {
	return ipc.ClientInfo{
		ID:           c.ID,
		Address:      c.Address,
		ResourceBase: c.ResourceBase,
		ConnectedAt:  c.ConnectedAt,
		Requests:     c.requests.Load(),
	}
}

// GetConnectedClients returns the connected clients ordered by id
func (cm *ClientManager) GetConnectedClients() []ipc.ClientInfo {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	infos := make([]ipc.ClientInfo, 0, len(cm.clients))
	for _, c := range cm.clients {
		infos = append(infos, c.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
