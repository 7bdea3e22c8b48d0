package irc

import "strings"

// CTCP framing bytes.
const (
	CTCPDelim     = '\x01'
	CTCPLowQuote  = '\x10'
	CTCPHighQuote = '\x5C'
	CTCPSep       = ' '
)

var (
	// M-QUOTE escaping, applied to the whole envelope body.
	ctcpLowEscaper = strings.NewReplacer(
		"\x10", "\x10\x10",
		"\r", "\x10r",
		"\n", "\x10n",
		"\x00", "\x100",
	)
	ctcpLowUnescaper = strings.NewReplacer(
		"\x10\x10", "\x10",
		"\x10r", "\r",
		"\x10n", "\n",
		"\x100", "\x00",
	)

	// X-QUOTE escaping, applied to the tag and the data separately.
	ctcpHighEscaper = strings.NewReplacer(
		`\`, `\\`,
		"\x01", `\a`,
	)
	ctcpHighUnescaper = strings.NewReplacer(
		`\\`, `\`,
		`\a`, "\x01",
	)
)

// IsCTCP checks if a trailing parameter is wrapped in a CTCP envelope. The
// closing delimiter is optional since plenty of clients forget it.
func IsCTCP(msg string) bool {
	return len(msg) > 1 && msg[0] == CTCPDelim
}

// CTCPUnpack removes the envelope and splits it into the verb and the data.
// The verb is uppercased.
func CTCPUnpack(msg string) (verb, data string) {
	msg = strings.TrimPrefix(msg, string(CTCPDelim))
	msg = strings.TrimSuffix(msg, string(CTCPDelim))
	msg = ctcpLowUnescaper.Replace(msg)

	if i := strings.IndexByte(msg, CTCPSep); i >= 0 {
		verb, data = msg[:i], msg[i+1:]
	} else {
		verb = msg
	}

	verb = strings.ToUpper(ctcpHighUnescaper.Replace(verb))
	data = ctcpHighUnescaper.Replace(data)
	return verb, data
}

// CTCPPack wraps a verb and its data in a CTCP envelope.
func CTCPPack(verb, data string) string {
	var b strings.Builder
	b.WriteString(ctcpHighEscaper.Replace(verb))
	if len(data) > 0 {
		b.WriteByte(CTCPSep)
		b.WriteString(ctcpHighEscaper.Replace(data))
	}

	return string(CTCPDelim) + ctcpLowEscaper.Replace(b.String()) +
		string(CTCPDelim)
}
