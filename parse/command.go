package parse

import (
	"strings"

	"github.com/aarondl/triggerbot/irc"
)

// Command checks if m invokes a trigger and fills in its command fields. The
// first prefix that matches the start of the text (ignoring case) is removed
// and the following word becomes the command. Messages in a query need no
// prefix at all. Only plain privmsgs can be commands.
func Command(m *irc.Message, prefixes []string) bool {
	m.IsCommand, m.Command, m.CommandParams = false, "", nil
	if m.Kind != irc.KindPrivmsg || m.IsAction || len(m.Params) == 0 {
		return false
	}

	text := m.Text()
	for _, prefix := range prefixes {
		if len(prefix) == 0 || len(text) < len(prefix) {
			continue
		}
		if !strings.EqualFold(text[:len(prefix)], prefix) {
			continue
		}

		fields := strings.Fields(text[len(prefix):])
		if len(fields) == 0 {
			continue
		}
		setCommand(m, fields)
		return true
	}

	if m.InQuery() {
		setCommand(m, m.Params)
		return true
	}

	return false
}

func setCommand(m *irc.Message, fields []string) {
	m.IsCommand = true
	m.Command = fields[0]
	if len(fields) > 1 {
		m.CommandParams = append([]string(nil), fields[1:]...)
	}
}
