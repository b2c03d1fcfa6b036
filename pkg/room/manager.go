package room

import (
	"sync"

	"go.uber.org/zap"

	"doc-collab/pkg/cache"
)

// Manager owns the mapping from document id to Room. Rooms are created lazily
// on first join and retained for the life of the process: presence empties out
// when the last session leaves, but the annotation logs stay put so late
// joiners see them.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	logger *zap.Logger
	mirror *cache.PresenceMirror
}

// NewManager creates a room manager. mirror may be nil to run without the
// Redis presence mirror.
func NewManager(logger *zap.Logger, mirror *cache.PresenceMirror) *Manager {
	return &Manager{
		rooms:  make(map[string]*Room),
		logger: logger,
		mirror: mirror,
	}
}

// GetOrCreate returns the room for a document id, creating it on first use.
func (m *Manager) GetOrCreate(docID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[docID]; ok {
		return r
	}
	r := newRoom(docID, m.logger, m.mirror)
	m.rooms[docID] = r
	m.logger.Info("room created", zap.String("room", docID))
	return r
}

// Lookup returns an existing room without creating one.
func (m *Manager) Lookup(docID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[docID]
	return r, ok
}

// Join associates a session with a document's room, last-joined-wins: a
// session already in a different room leaves it first, dropping its presence
// there. Joining alone has no presence side effect in the new room.
func (m *Manager) Join(c *Client, docID string) *Room {
	r := m.GetOrCreate(docID)
	if c.room == r {
		return r
	}
	if c.room != nil {
		// Wait for the old room to process the removal. The client must be
		// out of its delivery set before attaching elsewhere, or a later
		// disconnect could close the send channel under a still-pending
		// broadcast there.
		c.room.detachWait(c)
	}
	r.Attach(c)
	c.room = r
	return r
}
