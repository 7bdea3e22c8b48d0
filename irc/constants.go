package irc

// IRC Messages, these are the protocol words the bot writes and compares
// against Message.Name (which is always lowercased, see Message.Is).
const (
	PING    = "PING"
	PONG    = "PONG"
	ERROR   = "ERROR"
	PRIVMSG = "PRIVMSG"
	NOTICE  = "NOTICE"
	QUIT    = "QUIT"
	NICK    = "NICK"
	JOIN    = "JOIN"
	PART    = "PART"
	KICK    = "KICK"
	MODE    = "MODE"
	WHO     = "WHO"
	WHOIS   = "WHOIS"
	USER    = "USER"
	PASS    = "PASS"
	TOPIC   = "TOPIC"
)

// Numeric replies consumed by the core.
const (
	RPL_WELCOME       = 1
	RPL_MYINFO        = 4
	RPL_ISUPPORT      = 5
	RPL_WHOISREGNICK  = 307
	RPL_ENDOFWHOIS    = 318
	RPL_WHOISACCOUNT  = 330
	RPL_WHOREPLY      = 352
	RPL_NAMREPLY      = 353
	ERR_NICKNAMEINUSE = 433
)

// CTCP verbs the core answers itself.
const (
	ACTION  = "ACTION"
	VERSION = "VERSION"
	TIME    = "TIME"
)

// MaxLineLength is the hard protocol limit of one line including CRLF.
const MaxLineLength = 512
