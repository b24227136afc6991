package core

import (
	"strings"
	"sync"
	"sync/atomic"
)

const maxNicknameLength = 32

// ClientLifecycleFunc is invoked by the Client Registry when a
// Connection is added or removed. Remove callbacks are invoked with
// the registry's lock released (spec §4.5, §9) so they can freely call
// back into other subsystems — in particular the Channel Registry's
// RemoveClientFromAllChannels — without risking a lock-order inversion.
type ClientLifecycleFunc func(*Connection)

// ClientRegistry is the set of live Connections plus a
// nickname -> Connection index, a monotonic total-connections counter,
// a capacity, and optional add/remove lifecycle callbacks.
type ClientRegistry struct {
	mu         sync.Mutex
	clients    map[*Connection]struct{}
	byNickname map[string]*Connection

	maxClients int
	total      atomic.Int64

	onAdded   ClientLifecycleFunc
	onRemoved ClientLifecycleFunc
}

// NewClientRegistry builds a registry bounded at maxClients.
func NewClientRegistry(maxClients int) *ClientRegistry {
	return &ClientRegistry{
		clients:    make(map[*Connection]struct{}),
		byNickname: make(map[string]*Connection),
		maxClients: maxClients,
	}
}

// SetOnClientAdded installs the add callback.
func (r *ClientRegistry) SetOnClientAdded(fn ClientLifecycleFunc) { r.onAdded = fn }

// SetOnClientRemoved installs the remove callback.
func (r *ClientRegistry) SetOnClientRemoved(fn ClientLifecycleFunc) { r.onRemoved = fn }

// AddClient inserts conn, indexed by its current nickname. Returns
// false if the registry is at capacity or conn is already present.
func (r *ClientRegistry) AddClient(conn *Connection) bool {
	if conn == nil {
		return false
	}
	r.mu.Lock()
	if len(r.clients) >= r.maxClients {
		r.mu.Unlock()
		return false
	}
	if _, exists := r.clients[conn]; exists {
		r.mu.Unlock()
		return false
	}
	r.clients[conn] = struct{}{}
	r.byNickname[conn.Nickname()] = conn
	r.mu.Unlock()

	if r.onAdded != nil {
		r.onAdded(conn)
	}
	return true
}

// RemoveClient shuts down and closes the socket, removes conn from the
// nickname index and set, and invokes the remove callback — with the
// registry's own lock already released, so the callback can safely
// touch the Channel Registry.
func (r *ClientRegistry) RemoveClient(conn *Connection) bool {
	if conn == nil {
		return false
	}
	r.mu.Lock()
	if _, exists := r.clients[conn]; !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.byNickname, conn.Nickname())
	delete(r.clients, conn)
	r.mu.Unlock()

	_ = conn.Close()

	if r.onRemoved != nil {
		r.onRemoved(conn)
	}
	return true
}

// ClientExists reports whether conn is currently registered.
func (r *ClientRegistry) ClientExists(conn *Connection) bool {
	if conn == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[conn]
	return ok
}

// ClientExistsByNickname reports whether nickname is currently taken.
func (r *ClientRegistry) ClientExistsByNickname(nickname string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byNickname[nickname]
	return ok
}

// GetClientByNickname resolves nickname to its Connection, if any.
func (r *ClientRegistry) GetClientByNickname(nickname string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byNickname[nickname]
	return conn, ok
}

// AllClients returns a snapshot of every registered Connection.
func (r *ClientRegistry) AllClients() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connection, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

// BroadcastMessage formats text as "<nick> text\n" when sender is
// non-nil, else "text\n", and enqueues it on every Connection except
// the sender.
func (r *ClientRegistry) BroadcastMessage(text string, sender *Connection) {
	var line string
	if sender != nil {
		line = "<" + sender.Nickname() + "> " + text + "\n"
	} else {
		line = text + "\n"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c != sender {
			c.PushMessage(line)
		}
	}
}

// SendMessageToClient ensures a trailing newline and enqueues text
// once on conn.
func (r *ClientRegistry) SendMessageToClient(conn *Connection, text string) {
	if conn == nil {
		return
	}
	line := text
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	conn.PushMessage(line)
}

// Count reports the number of currently registered clients.
func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// TotalConnections reports the monotonic accepted-connection counter.
func (r *ClientRegistry) TotalConnections() int64 { return r.total.Load() }

// IncrementTotalConnections bumps the accepted-connection counter.
// Called by the accept path exactly once per accepted socket.
func (r *ClientRegistry) IncrementTotalConnections() { r.total.Add(1) }

// MaxClients reports the configured capacity.
func (r *ClientRegistry) MaxClients() int { return r.maxClients }

// CanAcceptNewConnection reports whether the registry has room for one
// more client.
func (r *ClientRegistry) CanAcceptNewConnection() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients) < r.maxClients
}

// IsValidNickname enforces spec §4.5: non-empty, length <= 32, each
// char alphanumeric or '_'.
func IsValidNickname(nickname string) bool {
	if nickname == "" || len(nickname) > maxNicknameLength {
		return false
	}
	for _, c := range nickname {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return true
}

// UpdateClientNickname rejects invalid names and names already bound
// to a different Connection (including, per spec §9, a self-rename to
// the current nickname — the index lookup finds the caller's own
// entry already holding the name). On success the nickname index and
// conn's nickname are updated atomically under the lock.
func (r *ClientRegistry) UpdateClientNickname(conn *Connection, newNickname string) bool {
	if conn == nil || !IsValidNickname(newNickname) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byNickname[newNickname]; taken {
		return false
	}
	delete(r.byNickname, conn.Nickname())
	conn.setNickname(newNickname)
	r.byNickname[newNickname] = conn
	return true
}
