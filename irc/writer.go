package irc

import (
	"fmt"
	"io"
	"strings"
)

const (
	// fmtPrivmsg creates one privmsg line.
	fmtPrivmsg = PRIVMSG + " %s :%s"
	// fmtNotice creates one notice line.
	fmtNotice = NOTICE + " %s :%s"
	// fmtJoin creates a join message.
	fmtJoin = JOIN + " :%s"
	// fmtPart creates a part message.
	fmtPart = PART + " :%s"
	// fmtQuit creates a quit message.
	fmtQuit = QUIT + " :%s"
	// fmtNick creates a nick change.
	fmtNick = NICK + " :%s"
)

// Writer provides the write operations plugins use to talk to the server.
// Every message type that carries text goes through the formatter so that
// long or multi-line texts are split into protocol-legal lines.
type Writer interface {
	// Raw sends one or more \n separated lines verbatim.
	Raw(string) error
	// Rawf sends a formatted raw line.
	Rawf(string, ...interface{}) error

	// Send sends text to a target, as an action if the bool is set.
	Send(target, text string, action bool) error
	// Privmsg sends text to a target.
	Privmsg(target, text string) error
	// Privmsgf sends formatted text to a target.
	Privmsgf(target, format string, args ...interface{}) error
	// Action sends a /me to a target.
	Action(target, text string) error
	// Notice sends a notice to a target.
	Notice(target, text string) error
	// Reply sends text to wherever the message should be answered.
	Reply(m *Message, text string) error

	// CTCP sends a CTCP request.
	CTCP(target, verb, data string) error
	// CTCPReply answers a CTCP request.
	CTCPReply(target, verb, data string) error

	// Join joins channels.
	Join(...string) error
	// Part parts channels.
	Part(...string) error
	// Nick requests a nickname change.
	Nick(string) error
	// Quit quits the server with a message.
	Quit(string) error
}

// Helper fulfills the Writer interface over an io.Writer. Self is consulted
// for every formatted message since the room left in a line depends on how
// the server currently sees us.
type Helper struct {
	io.Writer
	Self func() Identity
}

// identity returns the current identity or an unknown one.
func (h Helper) identity() Identity {
	if h.Self == nil {
		return Identity{}
	}
	return h.Self()
}

// writeLines writes all lines in a single write, each terminated by CRLF.
func (h Helper) writeLines(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := io.WriteString(h, strings.Join(lines, "\r\n")+"\r\n")
	return err
}

// Raw sends one or more \n separated lines verbatim.
func (h Helper) Raw(text string) error {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return h.writeLines(lines)
}

// Rawf sends a formatted raw line.
func (h Helper) Rawf(format string, args ...interface{}) error {
	return h.Raw(fmt.Sprintf(format, args...))
}

// Send formats text for target and sends each resulting line as a privmsg.
func (h Helper) Send(target, text string, action bool) error {
	return h.sendFormatted(fmtPrivmsg, target, text, action)
}

func (h Helper) sendFormatted(format, target, text string, action bool) error {
	payloads := Format(h.identity(), target, text, action)
	lines := make([]string, len(payloads))
	for i, p := range payloads {
		lines[i] = fmt.Sprintf(format, target, p)
	}
	return h.writeLines(lines)
}

// Privmsg sends text to a target.
func (h Helper) Privmsg(target, text string) error {
	return h.Send(target, text, false)
}

// Privmsgf sends formatted text to a target.
func (h Helper) Privmsgf(target, format string, args ...interface{}) error {
	return h.Send(target, fmt.Sprintf(format, args...), false)
}

// Action sends a /me to a target.
func (h Helper) Action(target, text string) error {
	return h.Send(target, text, true)
}

// Notice sends a notice to a target.
func (h Helper) Notice(target, text string) error {
	return h.sendFormatted(fmtNotice, target, text, false)
}

// Reply sends text to the message's response target.
func (h Helper) Reply(m *Message, text string) error {
	return h.Send(m.ResponseTarget(), text, false)
}

// CTCP sends a CTCP request.
func (h Helper) CTCP(target, verb, data string) error {
	return h.writeLines([]string{
		fmt.Sprintf(fmtPrivmsg, target, CTCPPack(verb, data)),
	})
}

// CTCPReply answers a CTCP request.
func (h Helper) CTCPReply(target, verb, data string) error {
	return h.writeLines([]string{
		fmt.Sprintf(fmtNotice, target, CTCPPack(verb, data)),
	})
}

// Join joins channels.
func (h Helper) Join(channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	return h.writeLines([]string{
		fmt.Sprintf(fmtJoin, strings.Join(channels, ",")),
	})
}

// Part parts channels.
func (h Helper) Part(channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	return h.writeLines([]string{
		fmt.Sprintf(fmtPart, strings.Join(channels, ",")),
	})
}

// Nick requests a nickname change.
func (h Helper) Nick(nick string) error {
	return h.writeLines([]string{fmt.Sprintf(fmtNick, nick)})
}

// Quit quits the server with a message.
func (h Helper) Quit(msg string) error {
	return h.writeLines([]string{fmt.Sprintf(fmtQuit, msg)})
}
