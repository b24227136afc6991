package core

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-server/internal/metrics"
)

// CommandHandler processes one slash-command's arguments (the command
// word itself already stripped) for sender.
type CommandHandler func(sender *Connection, args []string)

// Router parses inbound lines into either a chat payload or a
// slash-command, dispatches commands, and formats every outbound line
// the server produces. It holds exclusive reference to both
// registries; it never introduces a lock of its own — all mutation
// happens inside the registries it calls.
type Router struct {
	clients  *ClientRegistry
	channels *ChannelRegistry
	log      *zerolog.Logger
	counters metrics.RouterCounters

	motd string

	handlers map[string]CommandHandler
}

// NewRouter builds a router wired to the two registries and pre-loads
// the default command table (spec §4.6).
func NewRouter(clients *ClientRegistry, channels *ChannelRegistry, counters metrics.RouterCounters, log *zerolog.Logger) *Router {
	r := &Router{
		clients:  clients,
		channels: channels,
		log:      log,
		counters: counters,
		handlers: make(map[string]CommandHandler),
	}
	r.setupDefaultCommands()
	return r
}

// Welcome sends the greeting a newly accepted connection sees before
// any line of its own has been processed (spec §4.7, step 1).
func (r *Router) Welcome(conn *Connection, serverName string) {
	r.sendServerMessage(conn, "Welcome to "+serverName+"!")
	r.sendServerMessage(conn, "Type /help for a list of available commands.")
}

// RegisterCommand installs or replaces the handler for name (without
// the leading '/').
func (r *Router) RegisterCommand(name string, handler CommandHandler) {
	r.handlers[name] = handler
}

// UnregisterCommand removes name from the command table, if present.
func (r *Router) UnregisterCommand(name string) {
	delete(r.handlers, name)
}

// SetMotd sets the message-of-the-day text returned by /motd.
func (r *Router) SetMotd(motd string) { r.motd = motd }

// Motd returns the current message-of-the-day text.
func (r *Router) Motd() string { return r.motd }

// HandleMessage is the entry point for one line of input from sender,
// without a trailing "\n". Empty input (after trimming a trailing
// "\r") is a no-op; "/"-prefixed input is a command; anything else is
// routed to the sender's active channel, or rejected if it has none.
func (r *Router) HandleMessage(sender *Connection, raw string) {
	if sender == nil {
		return
	}
	r.counters.ProcessedMessages.Inc()
	r.counters.ReceivedBytes.Add(float64(len(raw)))

	clean := strings.TrimSuffix(raw, "\r")
	if clean == "" {
		return
	}

	if strings.HasPrefix(clean, "/") {
		r.handleCommand(sender, clean)
		return
	}

	active := sender.ActiveChannel()
	if active != "" {
		r.sendChannelMessage(sender, active, clean)
		return
	}
	r.sendServerMessage(sender, "You are not in any channel. Join one with /join <#channel> or send a private message with /msg <user> <message>.")
}

func (r *Router) handleCommand(sender *Connection, commandLine string) {
	r.counters.ProcessedCommands.Inc()

	args := strings.Fields(commandLine)
	if len(args) == 0 {
		return
	}
	name := strings.TrimPrefix(args[0], "/")
	args = args[1:]

	handler, ok := r.handlers[name]
	if !ok {
		r.sendError(sender, newCoreError(ErrCodeUnknownCommand, "Unknown command: "+name))
		return
	}
	handler(sender, args)
}

// BroadcastGlobal formats text as "<nick> text" if sender is non-nil,
// else bare "text", and fans it out to every client except sender.
func (r *Router) BroadcastGlobal(sender *Connection, text string) {
	r.counters.SentMessages.Inc()
	r.counters.SentBytes.Add(float64(len(text)))
	r.clients.BroadcastMessage(text, sender)
}

// sendPrivateMessage delivers text one-to-one and echoes it back to
// the sender, or reports the recipient as unknown.
func (r *Router) sendPrivateMessage(sender *Connection, recipient, text string) {
	target, ok := r.clients.GetClientByNickname(recipient)
	if !ok {
		r.sendError(sender, newCoreError(ErrCodeUserNotFound, "User "+recipient+" not found."))
		return
	}
	r.counters.SentMessages.Inc()
	r.counters.SentBytes.Add(float64(len(text)))

	r.clients.SendMessageToClient(target, "*Private from "+sender.Nickname()+": "+text)
	r.clients.SendMessageToClient(sender, "*Private to "+recipient+": "+text)
}

// sendChannelMessage refuses with a server message if the channel does
// not exist or sender is not a member; otherwise it fans the message
// out under the "<nick@#channel> text" format.
func (r *Router) sendChannelMessage(sender *Connection, name, text string) {
	if !r.channels.Exists(name) {
		r.sendError(sender, newCoreError(ErrCodeChannelNotFound, "Channel "+name+" does not exist."))
		return
	}
	if !sender.InChannel(name) {
		r.sendError(sender, newCoreError(ErrCodeNotInChannel, "You are not in channel "+name))
		return
	}
	r.counters.SentMessages.Inc()
	r.counters.SentBytes.Add(float64(len(text)))

	formatted := "<" + sender.Nickname() + "@" + name + "> " + text
	r.channels.BroadcastToChannel(name, formatted)
}

// sendChannelSystemMessage broadcasts a "*** <event>" line to name's
// members — used for join/part/quit notifications.
func (r *Router) sendChannelSystemMessage(name, event string) {
	r.counters.SentMessages.Inc()
	r.counters.SentBytes.Add(float64(len(event)))
	r.channels.BroadcastToChannel(name, "*** "+event)
}

// sendError logs err's stable code at debug level — so a test or an
// operator can branch on the reason without parsing prose — and
// delivers err.Message to client the same way any other server line
// is delivered.
func (r *Router) sendError(client *Connection, err *CoreError) {
	if r.log != nil && client != nil {
		r.log.Debug().Str("code", err.Code).Str("conn_id", client.TraceID()).Msg(err.Message)
	}
	r.sendServerMessage(client, err.Message)
}

// sendServerMessage formats text as "*** text" and delivers it to
// client alone.
func (r *Router) sendServerMessage(client *Connection, text string) {
	if client == nil {
		return
	}
	r.counters.SentMessages.Inc()
	r.counters.SentBytes.Add(float64(len(text)))
	r.clients.SendMessageToClient(client, "*** "+text)
}
