package core

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T, id uint64) *Connection {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewConnection(id, server)
}

func TestNewConnectionDefaultNickname(t *testing.T) {
	c := newTestConnection(t, 7)
	require.Equal(t, "guest7", c.Nickname())
	require.Empty(t, c.ActiveChannel())
	require.Empty(t, c.Channels())
}

func TestExtractLineLeavesTrailingCR(t *testing.T) {
	c := newTestConnection(t, 1)
	c.AppendToBuffer([]byte("hello\r\nworld\n"))

	line, ok := c.ExtractLine()
	require.True(t, ok)
	require.Equal(t, "hello\r", line)

	line, ok = c.ExtractLine()
	require.True(t, ok)
	require.Equal(t, "world", line)

	_, ok = c.ExtractLine()
	require.False(t, ok)
}

func TestExtractLineNoNewlineYet(t *testing.T) {
	c := newTestConnection(t, 1)
	c.AppendToBuffer([]byte("partial"))
	_, ok := c.ExtractLine()
	require.False(t, ok)
	require.Equal(t, 7, c.BufferLen())
}

func TestOutboundQueueFIFO(t *testing.T) {
	c := newTestConnection(t, 1)
	c.PushMessage("first\n")
	c.PushMessage("second\n")

	line, ok := c.PeekMessage()
	require.True(t, ok)
	require.Equal(t, "first\n", line)

	c.PopMessage()
	line, ok = c.PeekMessage()
	require.True(t, ok)
	require.Equal(t, "second\n", line)

	c.PopMessage()
	_, ok = c.PeekMessage()
	require.False(t, ok)
}

func TestRemoveChannelClearsActiveChannel(t *testing.T) {
	c := newTestConnection(t, 1)
	c.addChannel("#general")
	c.SetActiveChannel("#general")

	c.removeChannel("#general")

	require.False(t, c.InChannel("#general"))
	require.Empty(t, c.ActiveChannel())
}

func TestRemoveChannelKeepsUnrelatedActiveChannel(t *testing.T) {
	c := newTestConnection(t, 1)
	c.addChannel("#general")
	c.addChannel("#random")
	c.SetActiveChannel("#random")

	c.removeChannel("#general")

	require.Equal(t, "#random", c.ActiveChannel())
}
