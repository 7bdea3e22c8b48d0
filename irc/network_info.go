package irc

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// These are the 005 keys NetworkInfo understands, everything else is kept
// in the extras.
const (
	INFO_NETWORK   = "NETWORK"
	INFO_PREFIX    = "PREFIX"
	INFO_CHANTYPES = "CHANTYPES"
	INFO_NICKLEN   = "NICKLEN"
)

// These defaults are used until the server tells us otherwise.
const (
	INFO_DEFAULT_SERVERNAME  = "unknown"
	INFO_DEFAULT_IRCDVERSION = "unknown"
	INFO_DEFAULT_PREFIX      = "(ov)@+"
	INFO_DEFAULT_CHANTYPES   = "#"
	INFO_DEFAULT_NICKLEN     = 9
)

// rgxISupport matches a single KEY or KEY=value token of a 005. The
// trailing "are supported by this server" is lowercase and never matches.
var rgxISupport = regexp.MustCompile(`^([A-Z0-9]+)(?:=(\S*))?$`)

// NetworkInfo records what the server told us about itself in 004 and 005.
type NetworkInfo struct {
	protect sync.RWMutex

	serverName  string
	ircdVersion string
	network     string
	prefix      string
	chantypes   string
	nicklen     int
	extras      map[string]string
}

// NewNetworkInfo initializes a NetworkInfo with defaults.
func NewNetworkInfo() *NetworkInfo {
	return &NetworkInfo{
		serverName:  INFO_DEFAULT_SERVERNAME,
		ircdVersion: INFO_DEFAULT_IRCDVERSION,
		prefix:      INFO_DEFAULT_PREFIX,
		chantypes:   INFO_DEFAULT_CHANTYPES,
		nicklen:     INFO_DEFAULT_NICKLEN,
		extras:      make(map[string]string),
	}
}

// ServerName is the name the server gave in 004.
func (n *NetworkInfo) ServerName() string {
	n.protect.RLock()
	defer n.protect.RUnlock()
	return n.serverName
}

// IrcdVersion is the server software version given in 004.
func (n *NetworkInfo) IrcdVersion() string {
	n.protect.RLock()
	defer n.protect.RUnlock()
	return n.ircdVersion
}

// Network is the NETWORK name from 005, empty if never given.
func (n *NetworkInfo) Network() string {
	n.protect.RLock()
	defer n.protect.RUnlock()
	return n.network
}

// Prefix is the PREFIX value, ie. (ov)@+
func (n *NetworkInfo) Prefix() string {
	n.protect.RLock()
	defer n.protect.RUnlock()
	return n.prefix
}

// Nicklen is the longest nick the server allows.
func (n *NetworkInfo) Nicklen() int {
	n.protect.RLock()
	defer n.protect.RUnlock()
	return n.nicklen
}

// Extra gets a 005 value this type has no field for. Flags without a value
// are stored as "true".
func (n *NetworkInfo) Extra(key string) (string, bool) {
	n.protect.RLock()
	defer n.protect.RUnlock()
	val, ok := n.extras[key]
	return val, ok
}

// ParseMyInfo reads a 004: <nick> <servername> <version> <umodes> <cmodes>.
func (n *NetworkInfo) ParseMyInfo(m *Message) {
	if len(m.Params) < 2 {
		return
	}

	n.protect.Lock()
	n.serverName = m.Params[0]
	n.ircdVersion = m.Params[1]
	n.protect.Unlock()
}

// ParseISupport adds every KEY=value token of a 005.
func (n *NetworkInfo) ParseISupport(m *Message) {
	n.protect.Lock()
	defer n.protect.Unlock()

	for _, arg := range m.Params {
		match := rgxISupport.FindStringSubmatch(arg)
		if match == nil {
			continue
		}
		name, value := match[1], match[2]

		switch name {
		case INFO_NETWORK:
			n.network = value
		case INFO_PREFIX:
			if len(value) > 0 {
				n.prefix = value
			}
		case INFO_CHANTYPES:
			if len(value) > 0 {
				n.chantypes = value
			}
		case INFO_NICKLEN:
			if i, err := strconv.Atoi(value); err == nil {
				n.nicklen = i
			}
		default:
			if len(value) == 0 {
				value = "true"
			}
			n.extras[name] = value
		}
	}
}

// PrefixSymbols is the symbol half of PREFIX, "@+" for "(ov)@+".
func (n *NetworkInfo) PrefixSymbols() string {
	prefix := n.Prefix()
	if i := strings.IndexByte(prefix, ')'); i >= 0 {
		return prefix[i+1:]
	}
	return prefix
}

// StripPrefix removes the channel mode symbols a 353 puts in front of nicks.
func (n *NetworkInfo) StripPrefix(nick string) string {
	return strings.TrimLeft(nick, n.PrefixSymbols())
}

// IsChannel checks the target against the server's CHANTYPES.
func (n *NetworkInfo) IsChannel(target string) bool {
	if len(target) == 0 {
		return false
	}
	n.protect.RLock()
	defer n.protect.RUnlock()
	return strings.IndexByte(n.chantypes, target[0]) >= 0
}
