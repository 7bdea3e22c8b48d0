package irc

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Formatting control codes.
const (
	Bold      = '\x02'
	Color     = '\x03'
	Reset     = '\x0f'
	Reverse   = '\x16'
	Italic    = '\x1d'
	Underline = '\x1f'
)

const (
	// lineOverhead is what every PRIVMSG costs besides the nick, address,
	// target and payload: ":" "!" " PRIVMSG " " :" "\r\n"
	lineOverhead = 1 + 1 + 9 + 2 + 2
	// actionOverhead is the "\x01ACTION " and "\x01" around the payload.
	actionOverhead = 9
	// unknownAddressLen is assumed for ident@host until the server tells us.
	unknownAddressLen = 10 + 1 + 63
	// unknownNickLen is assumed when we have no nickname yet.
	unknownNickLen = 30
	// minPayload keeps absurd nick/target lengths from stalling the packer.
	minPayload = 16
)

var rgxFormatting = regexp.MustCompile(
	`[\x02\x0f\x11\x16\x1d\x1e\x1f]|\x03(\d\d?(,\d\d?)?)?`)

// Identity is how the server sees us, it's what determines how much room
// is left in a line for the payload.
type Identity struct {
	Nick string
	// Address is ident@host, empty when not yet known.
	Address string
}

// StripCodes removes all formatting codes from s.
func StripCodes(s string) string {
	return rgxFormatting.ReplaceAllString(s, "")
}

// MaxPayload is the longest payload that can be sent to target while the
// whole line stays within MaxLineLength.
func MaxPayload(self Identity, target string, action bool) int {
	nickLen, addrLen := len(self.Nick), len(self.Address)
	if nickLen == 0 {
		nickLen = unknownNickLen
	}
	if addrLen == 0 {
		addrLen = unknownAddressLen
	}

	max := MaxLineLength - lineOverhead - nickLen - addrLen - len(target)
	if action {
		max -= actionOverhead
	}
	if max < minPayload {
		max = minPayload
	}
	return max
}

// Carry is the formatting that is active at some point in a line.
type Carry struct {
	Bold      bool
	Reverse   bool
	Italic    bool
	Underline bool
	// Fg and Bg are color indexes, -1 means unset.
	Fg int
	Bg int
}

// NewCarry returns a carry with nothing active.
func NewCarry() Carry {
	return Carry{Fg: -1, Bg: -1}
}

// Scan returns the carry after applying every code in s.
func (c Carry) Scan(s string) Carry {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case Bold:
			c.Bold = !c.Bold
		case Reverse:
			c.Reverse = !c.Reverse
		case Italic:
			c.Italic = !c.Italic
		case Underline:
			c.Underline = !c.Underline
		case Reset:
			c = NewCarry()
		case Color:
			fg, n := scanDigits(s[i+1:])
			if n == 0 {
				c.Fg, c.Bg = -1, -1
				continue
			}
			c.Fg = fg
			i += n

			if i+1 < len(s) && s[i+1] == ',' {
				if bg, m := scanDigits(s[i+2:]); m > 0 {
					c.Bg = bg
					i += m + 1
				}
			}
		}
	}
	return c
}

// scanDigits reads up to two leading digits.
func scanDigits(s string) (value, n int) {
	for n < 2 && n < len(s) && s[n] >= '0' && s[n] <= '9' {
		value = value*10 + int(s[n]-'0')
		n++
	}
	return value, n
}

// Prefix is the codes needed to bring a fresh line to this state. Colors are
// always written with two digits so a digit in the text can't extend them.
func (c Carry) Prefix() string {
	var b strings.Builder
	if c.Bold {
		b.WriteByte(Bold)
	}
	if c.Reverse {
		b.WriteByte(Reverse)
	}
	if c.Italic {
		b.WriteByte(Italic)
	}
	if c.Underline {
		b.WriteByte(Underline)
	}
	if c.Fg >= 0 {
		b.WriteByte(Color)
		b.WriteString(twoDigits(c.Fg))
		if c.Bg >= 0 {
			b.WriteByte(',')
			b.WriteString(twoDigits(c.Bg))
		}
	}
	return b.String()
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// FormatLines formats each text on its own and returns all payloads in
// order.
func FormatLines(self Identity, target string, texts []string, action bool) []string {
	var out []string
	for _, text := range texts {
		out = append(out, Format(self, target, text, action)...)
	}
	return out
}

// Format splits text into payloads that fit in a PRIVMSG to target. Embedded
// line breaks start new lines, lines that are blank once formatting is
// removed are dropped, and formatting active at the end of one payload is
// restored at the start of the next. Action payloads come back wrapped in
// their CTCP envelope.
func Format(self Identity, target, text string, action bool) []string {
	max := MaxPayload(self, target, action)

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if len(strings.TrimSpace(StripCodes(line))) == 0 {
			continue
		}

		for _, payload := range pack(line, max) {
			if action {
				payload = "\x01ACTION " + payload + "\x01"
			}
			out = append(out, payload)
		}
	}

	return out
}

// pack greedily fills lines of at most max bytes with the words of line.
func pack(line string, max int) []string {
	var out []string
	var cur strings.Builder
	var prefix string
	empty := true

	emit := func() {
		s := cur.String()
		if len(strings.TrimSpace(StripCodes(s))) > 0 {
			out = append(out, s)
		}
		prefix = NewCarry().Scan(s).Prefix()
		cur.Reset()
		cur.WriteString(prefix)
		empty = true
	}

	cur.WriteString(prefix)
	for _, word := range strings.Split(line, " ") {
		if !empty {
			if cur.Len()+1+len(word) <= max {
				cur.WriteByte(' ')
				cur.WriteString(word)
				continue
			}
			emit()
		}

		for cur.Len()+len(word) > max {
			room := max - cur.Len()
			cut := codeBoundary(word, runeBoundary(word, room))
			if cut == 0 {
				// Not even one rune fits after the carry, give up on it.
				cut = runeBoundary(word, max)
				if c := codeBoundary(word, cut); c > 0 {
					cut = c
				}
				cur.Reset()
			}
			cur.WriteString(word[:cut])
			word = word[cut:]
			empty = false
			emit()
		}

		cur.WriteString(word)
		empty = false
	}

	if !empty && len(strings.TrimSpace(StripCodes(cur.String()))) > 0 {
		out = append(out, cur.String())
	}
	return out
}

// runeBoundary returns the largest n <= limit such that s[:n] does not cut
// a multi-byte rune in half.
func runeBoundary(s string, limit int) int {
	if limit >= len(s) {
		return len(s)
	}
	if limit <= 0 {
		return 0
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return limit
}

// codeBoundary moves cut back to the start of a color code that s[:cut]
// would otherwise end inside of.
func codeBoundary(s string, cut int) int {
	// \x03 plus at most "dd,dd" after it.
	for j := cut - 1; j >= 0 && j >= cut-5; j-- {
		if s[j] != Color {
			continue
		}
		if j+colorLen(s[j:]) > cut {
			return j
		}
		break
	}
	return cut
}

// colorLen is the length of the color code at the start of s.
func colorLen(s string) int {
	_, n := scanDigits(s[1:])
	n++
	if n > 1 && n < len(s) && s[n] == ',' {
		if _, m := scanDigits(s[n+1:]); m > 0 {
			n += m + 1
		}
	}
	return n
}
