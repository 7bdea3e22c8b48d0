package dispatch

import "github.com/aarondl/triggerbot/irc"

// A handler registered with the Dispatcher may implement any of the
// interfaces in this file, it is only called for the ones it does implement.
// Returned errors are logged and never stop delivery to other handlers.

// EventHandler receives every message before the kind specific callbacks.
type EventHandler interface {
	HandleRaw(irc.Writer, *irc.Message) error
}

// PingHandler is for server pings.
type PingHandler interface {
	Ping(irc.Writer, *irc.Message) error
}

// ServerErrorHandler is for ERROR lines, the server is about to drop us.
type ServerErrorHandler interface {
	ServerError(irc.Writer, *irc.Message) error
}

// PrivmsgHandler is for privmsgs going to channel or user targets, actions
// included.
type PrivmsgHandler interface {
	Privmsg(irc.Writer, *irc.Message) error
}

// NoticeHandler is for notices going to channel or user targets.
type NoticeHandler interface {
	Notice(irc.Writer, *irc.Message) error
}

// CTCPHandler is for ctcp requests, the verb is in Message.CTCPVerb.
type CTCPHandler interface {
	CTCP(irc.Writer, *irc.Message) error
}

// CTCPReplyHandler is for ctcp replies.
type CTCPReplyHandler interface {
	CTCPReply(irc.Writer, *irc.Message) error
}

// JoinHandler is for joins, ours included.
type JoinHandler interface {
	Join(irc.Writer, *irc.Message) error
}

// PartHandler is for parts, ours included.
type PartHandler interface {
	Part(irc.Writer, *irc.Message) error
}

// QuitHandler is for quits.
type QuitHandler interface {
	Quit(irc.Writer, *irc.Message) error
}

// NickHandler is for nick changes.
type NickHandler interface {
	Nick(irc.Writer, *irc.Message) error
}

// NumericHandler is for numeric replies.
type NumericHandler interface {
	Numeric(irc.Writer, *irc.Message) error
}

// NamedHandler is for every other protocol word (MODE, KICK, TOPIC...).
type NamedHandler interface {
	Named(irc.Writer, *irc.Message) error
}

// ConnectHandler is called once the server has welcomed us.
type ConnectHandler interface {
	OnConnect(irc.Writer) error
}

// DisconnectHandler is called when the connection is lost or closed.
type DisconnectHandler interface {
	OnDisconnect() error
}

// TriggerHandler owns a set of triggers, commands given to the bot are
// looked up in it.
type TriggerHandler interface {
	TriggerMap() *Triggers
}
