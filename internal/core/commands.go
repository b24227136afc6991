package core

import (
	"sort"
	"strconv"
	"strings"
)

// sortedNicknames returns clients' nicknames in ascending order so
// /who's output is deterministic despite map-order iteration in the
// registries underneath.
func sortedNicknames(clients []*Connection) []string {
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Nickname())
	}
	sort.Strings(names)
	return names
}

func (r *Router) setupDefaultCommands() {
	r.RegisterCommand("nick", r.handleNick)
	r.RegisterCommand("join", r.handleJoin)
	r.RegisterCommand("part", r.handlePart)
	r.RegisterCommand("quit", r.handleQuit)
	r.RegisterCommand("list", r.handleList)
	r.RegisterCommand("who", r.handleWho)
	r.RegisterCommand("msg", r.handleMsg)
	r.RegisterCommand("motd", r.handleMotd)
	r.RegisterCommand("help", r.handleHelp)
}

func (r *Router) handleNick(sender *Connection, args []string) {
	if len(args) == 0 {
		r.sendError(sender, newCoreError(ErrCodeBadRequest, "Usage: /nick <new_nick>"))
		return
	}
	newNickname := args[0]
	if existing, ok := r.clients.GetClientByNickname(newNickname); ok && existing != sender {
		r.sendError(sender, newCoreError(ErrCodeNicknameTaken, "Nickname '"+newNickname+"' already in use."))
		return
	}
	oldNickname := sender.Nickname()
	if !r.clients.UpdateClientNickname(sender, newNickname) {
		r.sendError(sender, newCoreError(ErrCodeNicknameInvalid, "Nickname '"+newNickname+"' is not valid or already in use."))
		return
	}
	r.sendServerMessage(sender, "Nickname switched to '"+newNickname+"'")
	r.BroadcastGlobal(nil, "User '"+oldNickname+"' is now known as '"+newNickname+"'")
}

func withChannelPrefix(name string) string {
	if strings.HasPrefix(name, "#") {
		return name
	}
	return "#" + name
}

func (r *Router) handleJoin(sender *Connection, args []string) {
	if len(args) == 0 {
		r.sendError(sender, newCoreError(ErrCodeBadRequest, "Usage: /join <#channel>"))
		return
	}
	name := withChannelPrefix(args[0])
	if r.channels.JoinChannel(sender, name) {
		sender.SetActiveChannel(name)
		r.sendServerMessage(sender, "You joined "+name+" (now active).")
		r.sendChannelSystemMessage(name, sender.Nickname()+" joined the channel.")
		return
	}

	// JoinChannel only reports success/failure, not why — recover the
	// reason here since it determines which code we send.
	if !IsValidChannelName(name) {
		r.sendError(sender, newCoreError(ErrCodeChannelInvalid, "Channel name "+name+" is not valid."))
		return
	}
	if !r.channels.Exists(name) {
		r.sendError(sender, newCoreError(ErrCodeChannelRegistryFull, "Could not create "+name+": channel registry is full."))
		return
	}
	r.sendError(sender, newCoreError(ErrCodeBadRequest, "Could not join "+name))
}

func (r *Router) handlePart(sender *Connection, args []string) {
	if len(args) == 0 {
		r.sendError(sender, newCoreError(ErrCodeBadRequest, "Usage: /part <#channel>"))
		return
	}
	name := withChannelPrefix(args[0])
	if !sender.InChannel(name) {
		r.sendError(sender, newCoreError(ErrCodeNotInChannel, "You are not in channel "+name))
		return
	}
	r.sendChannelSystemMessage(name, sender.Nickname()+" left the channel.")
	if r.channels.LeaveChannel(sender, name) {
		r.sendServerMessage(sender, "You have left "+name)
		return
	}
	r.sendServerMessage(sender, "Error leaving channel "+name)
}

func (r *Router) handleQuit(sender *Connection, args []string) {
	reason := "Client quit."
	if len(args) > 0 {
		reason = strings.Join(args, " ")
	}
	notification := sender.Nickname() + " left the server: " + reason
	for _, name := range r.channels.ClientChannels(sender) {
		r.sendChannelSystemMessage(name, notification)
	}
	r.clients.RemoveClient(sender)
}

func (r *Router) handleList(sender *Connection, args []string) {
	names := r.channels.List()
	if len(names) == 0 {
		r.sendServerMessage(sender, "No active channels.")
		return
	}
	r.sendServerMessage(sender, "Active channels:")
	for _, name := range names {
		count := r.channels.MemberCount(name)
		r.sendServerMessage(sender, "- "+name+" ("+strconv.Itoa(count)+" members)")
	}
}

func (r *Router) handleWho(sender *Connection, args []string) {
	if len(args) == 0 {
		clients := r.clients.AllClients()
		if len(clients) == 0 {
			r.sendServerMessage(sender, "No users online.")
			return
		}
		r.sendServerMessage(sender, "Online users ("+strconv.Itoa(len(clients))+"):")
		for _, nickname := range sortedNicknames(clients) {
			c, ok := r.clients.GetClientByNickname(nickname)
			if !ok {
				continue
			}
			channels := r.channels.ClientChannels(c)
			suffix := ""
			if len(channels) > 0 {
				suffix = " in: " + strings.Join(channels, ", ")
			}
			r.sendServerMessage(sender, "- "+nickname+suffix)
		}
		return
	}

	name := withChannelPrefix(args[0])
	ch, ok := r.channels.GetChannel(name)
	if !ok {
		r.sendError(sender, newCoreError(ErrCodeChannelNotFound, "Channel "+name+" does not exist."))
		return
	}
	nicknames := ch.MemberNicknames()
	r.sendServerMessage(sender, "Users in "+name+" ("+strconv.Itoa(len(nicknames))+"):")
	for _, nick := range nicknames {
		r.sendServerMessage(sender, "- "+nick)
	}
}

func (r *Router) handleMsg(sender *Connection, args []string) {
	if len(args) < 2 {
		r.sendError(sender, newCoreError(ErrCodeBadRequest, "Usage: /msg <#channel|user> <message>"))
		return
	}
	recipient := args[0]
	text := strings.Join(args[1:], " ")
	if strings.HasPrefix(recipient, "#") {
		r.sendChannelMessage(sender, recipient, text)
		return
	}
	r.sendPrivateMessage(sender, recipient, text)
}

func (r *Router) handleMotd(sender *Connection, args []string) {
	if r.motd == "" {
		r.sendServerMessage(sender, "No MOTD available.")
		return
	}
	r.sendServerMessage(sender, "Message of the Day:")
	r.sendServerMessage(sender, r.motd)
}

func (r *Router) handleHelp(sender *Connection, args []string) {
	r.sendServerMessage(sender, "Available commands:")
	r.sendServerMessage(sender, "/nick <name>              - Change your nickname")
	r.sendServerMessage(sender, "/join <#channel>          - Join a channel")
	r.sendServerMessage(sender, "/part <#channel>          - Leave a channel")
	r.sendServerMessage(sender, "/msg <#channel|user> <msg> - Send a message to a channel or user")
	r.sendServerMessage(sender, "/list                     - List all active channels")
	r.sendServerMessage(sender, "/who [#channel]           - List users on server or in a channel")
	r.sendServerMessage(sender, "/motd                     - Show the Message of the Day")
	r.sendServerMessage(sender, "/quit [message]           - Disconnect from the server")
	r.sendServerMessage(sender, "/help                     - Show this help message")
}
