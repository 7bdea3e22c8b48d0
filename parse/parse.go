/*
Package parse turns raw irc protocol lines into irc.Messages and detects
trigger commands in them.
*/
package parse

import (
	"strconv"
	"strings"
	"time"

	"github.com/aarondl/triggerbot/irc"
)

const (
	// errMsgEmpty is given when there is nothing to parse.
	errMsgEmpty = "parse: Empty line received"
	// errMsgNoCommand is given when a sourced line has no protocol word.
	errMsgNoCommand = "parse: No command found in line"
	// errMsgNoSource is given when the source prefix is empty.
	errMsgNoSource = "parse: Empty source prefix"
)

// ParseError is generated when a line can not be turned into a message, it
// carries the offending protocol string.
type ParseError struct {
	// The message
	Msg string
	// The invalid irc encountered.
	Irc string
}

// Error satisfies the Error interface for ParseError.
func (p ParseError) Error() string {
	return p.Msg
}

// Parse produces a Message from a single protocol line. Any trailing line
// ending is ignored. Every non-empty line yields either a message or a
// ParseError.
func Parse(line string) (*irc.Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(strings.TrimSpace(line)) == 0 {
		return nil, ParseError{Msg: errMsgEmpty, Irc: line}
	}

	words := strings.Split(line, " ")
	m := &irc.Message{Raw: line, Time: time.Now()}

	switch strings.ToUpper(words[0]) {
	case irc.PING:
		m.Kind, m.Name = irc.KindPing, "ping"
		m.Params = params(words[1:])
		return m, nil
	case irc.ERROR:
		m.Kind, m.Name = irc.KindError, "error"
		m.Params = params(words[1:])
		return m, nil
	}

	if len(words) < 2 || len(words[1]) == 0 {
		return nil, ParseError{Msg: errMsgNoCommand, Irc: line}
	}

	source := strings.TrimPrefix(words[0], ":")
	if len(source) == 0 {
		return nil, ParseError{Msg: errMsgNoSource, Irc: line}
	}
	if nick, ident, host, ok := irc.Split(source); ok {
		m.Nick, m.Ident, m.Host = nick, ident, host
	} else {
		m.Nick = source
	}

	name := words[1]
	m.Name = strings.ToLower(name)
	if len(words) > 2 {
		m.Target = strings.TrimPrefix(words[2], ":")
	}

	var rest []string
	if len(words) > 3 {
		rest = words[3:]
	}
	m.Params = params(rest)

	switch strings.ToUpper(name) {
	case irc.PRIVMSG:
		m.Kind = irc.KindPrivmsg
		unpackCTCP(m, rest, irc.KindCTCP)
	case irc.NOTICE:
		m.Kind = irc.KindNotice
		unpackCTCP(m, rest, irc.KindCTCPReply)
	case irc.QUIT:
		m.Kind = irc.KindQuit
		m.Target = ""
		m.Params = params(words[2:])
	case irc.NICK:
		m.Kind = irc.KindNick
		m.Target = ""
		m.Params = params(words[2:])
	default:
		if code, ok := numeric(name); ok {
			m.Kind = irc.KindNumeric
			m.Numeric = code
		} else {
			m.Kind = irc.KindNamed
		}
	}

	return m, nil
}

// unpackCTCP checks the trailing parameter for a CTCP envelope. ACTION keeps
// the message kind and only flags it, any other verb turns it into kind.
func unpackCTCP(m *irc.Message, rest []string, kind irc.Kind) {
	text := strings.TrimPrefix(strings.Join(rest, " "), ":")
	if !irc.IsCTCP(text) {
		return
	}

	verb, data := irc.CTCPUnpack(text)
	if len(verb) == 0 {
		return
	}

	m.Params = ctcpWords(data)
	if verb == irc.ACTION {
		m.IsAction = true
		return
	}

	m.Kind = kind
	m.CTCPVerb = verb
}

// params drops empty words and the colon that starts the trailing parameter.
func params(words []string) []string {
	var out []string
	stripped := false
	for _, w := range words {
		if !stripped && strings.HasPrefix(w, ":") {
			w = w[1:]
			stripped = true
		}
		if len(w) > 0 {
			out = append(out, w)
		}
	}
	return out
}

// ctcpWords splits a CTCP body on spaces. Unlike params no colon is special.
func ctcpWords(data string) []string {
	var out []string
	for _, w := range strings.Split(data, " ") {
		if len(w) > 0 {
			out = append(out, w)
		}
	}
	return out
}

// numeric checks that the protocol word is made up of digits only.
func numeric(name string) (int, bool) {
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	code, err := strconv.Atoi(name)
	return code, err == nil
}
