/*
Package irc holds the types shared by every other package: the parsed Message,
the server and nickname Rotation, the outbound formatter and the Writer that
plugins use to talk back to the server.
*/
package irc

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Kind discriminates a Message by its protocol word.
type Kind int

// The kinds of Message a line can be parsed into. KindNamed covers every
// protocol word without a dedicated kind (JOIN, PART, MODE...), Message.Name
// then carries the lowercased word.
const (
	KindNamed Kind = iota
	KindPing
	KindError
	KindPrivmsg
	KindCTCP
	KindNotice
	KindCTCPReply
	KindQuit
	KindNick
	KindNumeric
)

var kindNames = [...]string{
	KindNamed:     "named",
	KindPing:      "ping",
	KindError:     "error",
	KindPrivmsg:   "privmsg",
	KindCTCP:      "ctcp",
	KindNotice:    "notice",
	KindCTCPReply: "ctcpResponse",
	KindQuit:      "quit",
	KindNick:      "nick",
	KindNumeric:   "numeric",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Message is the result of parsing a single line from the server. Everything
// but the command fields and the responded marker is fixed once parsed.
type Message struct {
	Kind Kind
	// Name is the lowercased protocol word, "privmsg", "join", "001" etc.
	Name string
	// Numeric is only set when Kind is KindNumeric.
	Numeric int

	Nick  string
	Ident string
	Host  string

	Target string

	IsAction bool
	CTCPVerb string

	Params []string

	Raw  string
	Time time.Time

	// Command fields are filled in by trigger detection.
	IsCommand     bool
	Command       string
	CommandParams []string

	respondedMut sync.Mutex
	responded    string
}

// InChannel is true when the message was addressed to a channel.
func (m *Message) InChannel() bool {
	return strings.HasPrefix(m.Target, "#")
}

// InQuery is true when the message was addressed to us directly.
func (m *Message) InQuery() bool {
	return !m.InChannel()
}

// ResponseTarget is where a reply to this message should go: the channel
// it was said in, or the nick that said it.
func (m *Message) ResponseTarget() string {
	if m.InChannel() {
		return m.Target
	}
	return m.Nick
}

// Sender rebuilds the source of the message, nick!ident@host when known.
func (m *Message) Sender() string {
	if len(m.Ident) == 0 && len(m.Host) == 0 {
		return m.Nick
	}
	return m.Nick + "!" + m.Ident + "@" + m.Host
}

// Text is the parameters joined back together.
func (m *Message) Text() string {
	return strings.Join(m.Params, " ")
}

// Is checks the protocol word of the message case insensitively.
func (m *Message) Is(name string) bool {
	return strings.EqualFold(m.Name, name)
}

// MarkResponded records which trigger handled this message. Only the first
// call has any effect, the return value reports whether it was that call.
func (m *Message) MarkResponded(trigger string) bool {
	m.respondedMut.Lock()
	defer m.respondedMut.Unlock()
	if len(m.responded) != 0 {
		return false
	}
	m.responded = trigger
	return true
}

// RespondedTrigger returns the trigger that handled this message if any.
func (m *Message) RespondedTrigger() string {
	m.respondedMut.Lock()
	defer m.respondedMut.Unlock()
	return m.responded
}

// String turns the message back into a raw protocol line.
func (m *Message) String() string {
	var b strings.Builder

	switch m.Kind {
	case KindPing, KindError:
		b.WriteString(strings.ToUpper(m.Name))
		if len(m.Params) > 0 {
			b.WriteString(" :")
			b.WriteString(m.Text())
		}
		return b.String()
	}

	b.WriteByte(':')
	b.WriteString(m.Sender())
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(m.Name))

	switch m.Kind {
	case KindQuit, KindNick:
		if len(m.Params) > 0 {
			b.WriteString(" :")
			b.WriteString(m.Text())
		}
		return b.String()
	}

	if len(m.Target) > 0 {
		b.WriteByte(' ')
		b.WriteString(m.Target)
	}

	var trailing string
	switch {
	case m.IsAction:
		trailing = CTCPPack(ACTION, m.Text())
	case m.Kind == KindCTCP || m.Kind == KindCTCPReply:
		trailing = CTCPPack(m.CTCPVerb, m.Text())
	case len(m.Params) > 0:
		trailing = m.Text()
	default:
		return b.String()
	}

	b.WriteString(" :")
	b.WriteString(trailing)
	return b.String()
}
