package core

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// MaxClientBufferSize bounds a Connection's unconsumed inbound buffer
// (spec §4.7); a session whose buffer grows past this without finding a
// newline is disconnected rather than left to grow unbounded.
const MaxClientBufferSize = 8192

// Connection is the server-side representative of one accepted TCP
// socket: nickname, joined-channel set, active channel, inbound byte
// buffer, and outbound message queue. It is shared between the
// Client Registry (primary owner), any Channel it has joined (weak
// membership — a Channel never keeps a Connection alive on its own),
// and the session goroutine pair currently driving it.
type Connection struct {
	id      uint64
	traceID string
	conn    net.Conn

	mu            sync.RWMutex
	nickname      string
	activeChannel string
	channels      map[string]struct{}

	// inbuf is appended to only by the owning session's read loop —
	// never touched concurrently, so it needs no lock of its own.
	inbuf []byte

	outMu    sync.Mutex
	outQueue []string

	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

// NewConnection wraps an accepted socket with the default nickname
// "guest<socket>".
func NewConnection(id uint64, conn net.Conn) *Connection {
	return &Connection{
		id:       id,
		traceID:  uuid.NewString(),
		conn:     conn,
		nickname: "guest" + strconv.FormatUint(id, 10),
		channels: make(map[string]struct{}),
	}
}

// Socket returns the immutable integer socket handle.
func (c *Connection) Socket() uint64 { return c.id }

// TraceID is a per-connection correlation id for structured logs. It
// never appears on the wire.
func (c *Connection) TraceID() string { return c.traceID }

func (c *Connection) Nickname() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nickname
}

func (c *Connection) setNickname(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nickname = name
}

func (c *Connection) ActiveChannel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeChannel
}

// SetActiveChannel is called by the router once a join succeeds.
func (c *Connection) SetActiveChannel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeChannel = name
}

// addChannel and removeChannel are called only from the Channel
// Registry, after it has released its own lock; Connection therefore
// serializes the map access itself, also because Nickname()/Channels()
// reads race with it.
func (c *Connection) addChannel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[name] = struct{}{}
}

// removeChannel drops name from the joined set and, mirroring the
// reference implementation, clears the active channel if it was the
// one being left — otherwise a part would leave a dangling pointer to
// a channel the connection is no longer a member of.
func (c *Connection) removeChannel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, name)
	if c.activeChannel == name {
		c.activeChannel = ""
	}
}

// InChannel reports whether name is in the joined-channel set.
func (c *Connection) InChannel(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[name]
	return ok
}

// Channels returns a snapshot of joined channel names; order is not
// meaningful (spec §3).
func (c *Connection) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for name := range c.channels {
		out = append(out, name)
	}
	return out
}

// AppendToBuffer appends raw received bytes. Single-writer by
// contract: only the owning session's read loop ever calls this.
func (c *Connection) AppendToBuffer(data []byte) {
	c.inbuf = append(c.inbuf, data...)
	c.bytesIn.Add(int64(len(data)))
}

// BufferLen reports the current size of the unconsumed inbound buffer.
func (c *Connection) BufferLen() int { return len(c.inbuf) }

// ExtractLine pops the first complete "\n"-terminated line from the
// inbound buffer and reports whether one was available. The trailing
// "\r", if any, is left in place — the router strips it as part of
// handleMessage, mirroring the reference implementation's byte
// counting, which is taken before that trim. Single-reader by
// contract (owning session only).
func (c *Connection) ExtractLine() (string, bool) {
	idx := -1
	for i, b := range c.inbuf {
		if b == '\n' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}
	line := string(c.inbuf[:idx])
	c.inbuf = c.inbuf[idx+1:]
	return line, true
}

// PushMessage enqueues a pre-formatted outbound line. Safe to call
// from any goroutine — routing tasks on other sessions call this
// during broadcast.
func (c *Connection) PushMessage(line string) {
	c.outMu.Lock()
	c.outQueue = append(c.outQueue, line)
	c.outMu.Unlock()
}

// PeekMessage returns the oldest queued outbound line without
// removing it. Single-reader by contract (owning session only).
func (c *Connection) PeekMessage() (string, bool) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if len(c.outQueue) == 0 {
		return "", false
	}
	return c.outQueue[0], true
}

// PopMessage removes the oldest queued outbound line, if any.
func (c *Connection) PopMessage() {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if len(c.outQueue) == 0 {
		return
	}
	c.outQueue = c.outQueue[1:]
}

// AddSentBytes records bytes handed to the socket, for the humanized
// byte-count summary logged when a session ends.
func (c *Connection) AddSentBytes(n int) { c.bytesOut.Add(int64(n)) }

func (c *Connection) BytesIn() int64  { return c.bytesIn.Load() }
func (c *Connection) BytesOut() int64 { return c.bytesOut.Load() }

// Close shuts down the underlying socket. Safe to call more than once.
func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Conn exposes the underlying net.Conn to the transport session.
func (c *Connection) Conn() net.Conn { return c.conn }
