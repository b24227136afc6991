package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestRegistryInvariants drives random sequences of add/remove/join/
// rename against a small Client Registry + Channel Registry pair and
// checks the registry invariants from spec §8 after every step
// (1, 2, 3, and the lower-bound half of 5).
func TestRegistryInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const maxClients = 5
		const maxChannels = 3

		clients := NewClientRegistry(maxClients)
		channels := NewChannelRegistry(maxChannels)
		clients.SetOnClientRemoved(channels.RemoveClientFromAllChannels)

		var live []*Connection
		var nextID uint64

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			action := rapid.IntRange(0, 3).Draw(t, "action")
			switch action {
			case 0: // add a client
				nextID++
				conn := NewConnection(nextID, nil)
				if clients.AddClient(conn) {
					clients.IncrementTotalConnections()
					live = append(live, conn)
				}
			case 1: // remove a random live client
				if len(live) == 0 {
					continue
				}
				idx := rapid.IntRange(0, len(live)-1).Draw(t, "removeIdx")
				conn := live[idx]
				clients.RemoveClient(conn)
				live = append(live[:idx], live[idx+1:]...)
			case 2: // join a channel
				if len(live) == 0 {
					continue
				}
				idx := rapid.IntRange(0, len(live)-1).Draw(t, "joinIdx")
				name := fmt.Sprintf("#c%d", rapid.IntRange(0, maxChannels+1).Draw(t, "chanNum"))
				channels.JoinChannel(live[idx], name)
			case 3: // rename
				if len(live) == 0 {
					continue
				}
				idx := rapid.IntRange(0, len(live)-1).Draw(t, "renameIdx")
				name := fmt.Sprintf("nick%d", rapid.IntRange(0, maxClients*2).Draw(t, "nameNum"))
				clients.UpdateClientNickname(live[idx], name)
			}

			checkInvariants(t, clients, channels, maxClients, maxChannels)
		}
	})
}

func checkInvariants(t *rapid.T, clients *ClientRegistry, channels *ChannelRegistry, maxClients, maxChannels int) {
	// Invariant 1: nickname index maps each live connection's current
	// nickname to exactly that connection.
	for _, conn := range clients.AllClients() {
		found, ok := clients.GetClientByNickname(conn.Nickname())
		if !ok || found != conn {
			t.Fatalf("nickname index inconsistent for %s", conn.Nickname())
		}
	}

	// Invariant 2: membership symmetry — every channel the registry
	// knows about agrees with each member's joined-channel set.
	for _, name := range channels.List() {
		ch, ok := channels.GetChannel(name)
		if !ok {
			continue
		}
		for _, nickname := range ch.MemberNicknames() {
			conn, ok := clients.GetClientByNickname(nickname)
			if ok && !conn.InChannel(name) {
				t.Fatalf("channel %s lists member %s who disagrees", name, nickname)
			}
		}
	}

	// Invariant 3: capacity bounds.
	if clients.Count() > maxClients {
		t.Fatalf("client count %d exceeds maxClients %d", clients.Count(), maxClients)
	}
	if channels.Count() > maxChannels {
		t.Fatalf("channel count %d exceeds maxChannels %d", channels.Count(), maxChannels)
	}

	// Invariant 5 (bound half): total connections is never below the
	// current client count.
	if clients.TotalConnections() < int64(clients.Count()) {
		t.Fatalf("total connections %d is below current client count %d", clients.TotalConnections(), clients.Count())
	}
}

func TestRegistryInvariantsStandard(t *testing.T) {
	clients := NewClientRegistry(2)
	channels := NewChannelRegistry(2)
	clients.SetOnClientRemoved(channels.RemoveClientFromAllChannels)

	a := NewConnection(1, nil)
	require.True(t, clients.AddClient(a))
	clients.IncrementTotalConnections()
	require.True(t, channels.JoinChannel(a, "#x"))
	require.True(t, clients.RemoveClient(a))

	require.Empty(t, a.Channels())
	require.Equal(t, 0, channels.MemberCount("#x"))
	require.True(t, channels.Exists("#x")) // no auto-delete on empty
}
