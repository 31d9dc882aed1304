// Package realtime streams workspace state changes to browser tabs over
// WebSocket.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ConnManager tracks the live feed connection of each tab. A tab has at
// most one feed; a newer connection replaces the older one.
type ConnManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewConnManager creates an empty manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Count is the number of tracked feeds.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// Register adds a feed, closing any previous feed of the same tab.
func (m *ConnManager) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}
	existing, replaced := m.active[userID][sessionID]
	m.active[userID][sessionID] = conn
	m.mu.Unlock()

	// Close blocks on the handshake, so it runs outside the lock.
	if replaced && existing != conn {
		go func() { _ = existing.Close(websocket.StatusNormalClosure, "session replaced") }()
	}
	slog.Debug("State feed registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes a feed if it is still the current one for its tab.
func (m *ConnManager) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Debug("State feed unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// CloseSession terminates the feed of one tab, typically after its
// workspace was evicted.
func (m *ConnManager) CloseSession(userID, sessionID string) {
	m.mu.Lock()
	sessions, ok := m.active[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	conn, ok := sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(m.active, userID)
	}
	m.mu.Unlock()

	_ = conn.Close(websocket.StatusGoingAway, "workspace expired")
	slog.Info("State feed closed", "user_id", userID, "session_id", sessionID)
}

// CloseAll terminates every feed. Used on shutdown.
func (m *ConnManager) CloseAll() {
	m.mu.Lock()
	var conns []*websocket.Conn
	for userID, sessions := range m.active {
		for _, conn := range sessions {
			conns = append(conns, conn)
		}
		delete(m.active, userID)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}()
	}
	wg.Wait()
}
