package core

import (
	"sort"
	"strings"
	"sync"
)

// maxChannelNameLength bounds channel names per spec §4.4.
const maxChannelNameLength = 50

// Channel is a named room holding a set of member Connections. It is
// internally synchronized and exclusively owned by the Channel
// Registry; member Connections only get weak references to it.
type Channel struct {
	name string

	mu      sync.Mutex
	members map[*Connection]struct{}
}

func newChannel(name string) *Channel {
	return &Channel{
		name:    name,
		members: make(map[*Connection]struct{}),
	}
}

// Name returns the channel's immutable name.
func (ch *Channel) Name() string { return ch.name }

// addClient inserts a Connection into the member set.
func (ch *Channel) addClient(conn *Connection) {
	ch.mu.Lock()
	ch.members[conn] = struct{}{}
	ch.mu.Unlock()
}

// removeClient deletes a Connection from the member set.
func (ch *Channel) removeClient(conn *Connection) {
	ch.mu.Lock()
	delete(ch.members, conn)
	ch.mu.Unlock()
}

// MemberCount reports the current number of members.
func (ch *Channel) MemberCount() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.members)
}

// MemberNicknames returns the nicknames of current members, sorted.
func (ch *Channel) MemberNicknames() []string {
	ch.mu.Lock()
	members := make([]*Connection, 0, len(ch.members))
	for c := range ch.members {
		members = append(members, c)
	}
	ch.mu.Unlock()

	names := make([]string, 0, len(members))
	for _, c := range members {
		names = append(names, c.Nickname())
	}
	sort.Strings(names)
	return names
}

// BroadcastMessage appends a trailing "\n" if absent and pushes the
// resulting line into every current member's outbound queue. It must
// never hold the Channel Registry's lock, and pushing to a member's
// outbound queue never blocks on socket I/O — this is best-effort
// per member, serialized only under this Channel's own lock.
func (ch *Channel) BroadcastMessage(text string) {
	line := text
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	for member := range ch.members {
		member.PushMessage(line)
	}
}

// IsValidChannelName reports whether name satisfies spec §4.4's format
// rule. Exported so the router can distinguish an invalid name from a
// saturated registry when JoinChannel's plain bool result isn't enough
// to pick an error code.
func IsValidChannelName(name string) bool {
	return isValidChannelName(name)
}

// isValidChannelName enforces spec §4.4: non-empty, length <= 50, no
// space, no comma, first char '#', remaining chars printable and
// non-whitespace (ASCII 33-126).
func isValidChannelName(name string) bool {
	if name == "" || len(name) > maxChannelNameLength {
		return false
	}
	if strings.ContainsAny(name, " ,") {
		return false
	}
	if name[0] != '#' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if c < 33 || c > 126 {
			return false
		}
	}
	return true
}
