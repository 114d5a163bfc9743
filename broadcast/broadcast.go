// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"sync"

	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/network"
)

var ErrNotConnected = errors.New("no live connection for identity")

// Registry maps an authenticated identity to its live connection. At most
// one connection per identity: a reconnect supersedes the stale entry.
type Registry struct {
	conns map[string]network.Connection
	mutex sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]network.Connection),
	}
}

// Add registers a connection for identity, closing any previous one.
func (r *Registry) Add(identity string, conn network.Connection) {
	r.mutex.Lock()
	prev := r.conns[identity]
	r.conns[identity] = conn
	r.mutex.Unlock()

	if prev != nil && prev != conn {
		logger.Log.Infof("Superseding stale connection for %s", identity)
		prev.Close()
	}
}

// Remove drops identity's entry if it still points at conn. Idempotent;
// a reconnect that already replaced the entry is left alone.
func (r *Registry) Remove(identity string, conn network.Connection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if cur, ok := r.conns[identity]; ok && (conn == nil || cur == conn) {
		delete(r.conns, identity)
	}
}

func (r *Registry) Get(identity string) (network.Connection, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	conn, ok := r.conns[identity]
	return conn, ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.conns)
}

// Broadcaster delivers targeted and party-wide messages. Delivery is
// best-effort and synchronous; a missing connection is reported, not fatal.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// SendToUser delivers one message to a single identity.
func (b *Broadcaster) SendToUser(identity string, v interface{}) error {
	conn, ok := b.registry.Get(identity)
	if !ok {
		return ErrNotConnected
	}
	return conn.Send(v)
}

// SendGameState delivers a per-tick state frame. Same contract as
// SendToUser; the engine downgrades the membership on failure.
func (b *Broadcaster) SendGameState(identity string, state models.GameState) error {
	return b.SendToUser(identity, models.GameMessage{Type: models.MsgTypeGame, Data: state})
}

// SendToParty delivers to every listed identity except one. Unreachable
// recipients are skipped.
func (b *Broadcaster) SendToParty(identities []string, except string, v interface{}) {
	for _, identity := range identities {
		if identity == except {
			continue
		}
		if err := b.SendToUser(identity, v); err != nil && err != ErrNotConnected {
			logger.Log.Warnf("Broadcast to %s failed: %v", identity, err)
		}
	}
}
