/*
Package config creates a configuration using toml, or yaml when the file
name ends in .yaml or .yml.

An example configuration looks like this:
	network = "ircnet"
	servers = ["irc.server.net", "backup.server.net:6697"]
	port = 6667
	tls = false
	noverifycert = false
	# Optional, a socks5 proxy to dial through.
	proxy = "socks5://localhost:1080"

	# The first nick is used unless it's taken, then the next and so on.
	nicks = ["Nick", "Nick_", "Nick__"]
	username = "Username"
	realname = "Realname"

	# Either give the server password here or store it in the system keyring
	# under the service named by keyring and the network name.
	password = "Password"
	keyring = "triggerbot"

	channels = ["#channel1", "#channel2"]
	# Raw lines sent after the server welcomes us.
	onconnect = ["PRIVMSG NickServ :identify password"]
	# Addressing the bot by name ("Nick: cmd") always works as well.
	prefixes = ["!", "."]

	# Seconds between connection attempts.
	reconnecttimeout = 10
	# Milliseconds a read waits for data.
	polltimeout = 100

	# Lines per second once floodburst lines went out, negative disables.
	# Must be written as a float.
	floodrate = 0.5
	floodburst = 4

	# Seconds of silence before pinging the server and before giving up.
	pingfrequency = 90
	activitytimeout = 240

	storefile = "/path/to/store.db"
	auditfile = "/path/to/audit.sqlite"
	loglevel = "info"
	logfile = "/path/to/bot.log"
*/
package config

import (
	"sync"
)

const (
	// defaultNetwork names the network when nothing was given.
	defaultNetwork = "irc"
	// defaultIrcPort is IRC's default tcp port.
	defaultIrcPort = uint16(6667)
	// defaultStoreFile is where the bot will store its access database if not
	// overridden.
	defaultStoreFile = "./store.db"
	// defaultAuditFile is where responded triggers are recorded.
	defaultAuditFile = "./audit.sqlite"
	// defaultReconnectTimeout is how many seconds to wait between reconns.
	defaultReconnectTimeout = uint(10)
	// defaultPollTimeout is how many milliseconds a read waits for data.
	defaultPollTimeout = uint(100)
	// defaultFloodRate is how many lines per second are allowed once the
	// burst is spent, lines over it wait in the Conn until the read loop
	// can send them.
	defaultFloodRate = 0.5
	// defaultFloodBurst is how many lines may go out back to back.
	defaultFloodBurst = 4
	// defaultPingFrequency is the number of seconds to wait on an idle
	// connection before sending a ping.
	defaultPingFrequency = uint(90)
	// defaultActivityTimeout is the number of seconds of silence after which
	// the connection is considered dead.
	defaultActivityTimeout = uint(240)
	// defaultPrefix is the command prefix by default
	defaultPrefix = "."
	// defaultLogLevel is used when no loglevel is set.
	defaultLogLevel = "info"
	// defaultConfigFileName is used when no file name was given.
	defaultConfigFileName = "config.toml"
)

// The following format strings are for formatting various config errors.
const (
	fmtErrInvalid     = "config(%v): Invalid %v, given: %v"
	fmtErrMissing     = "config(%v): Requires %v, but nothing was given."
	fmtErrUnknownKey  = "config: Unknown key %v"
	fmtErrInvalidFile = "config: Failed to load config file (%v)"
)

// Config holds everything needed to run the bot on one network.
type Config struct {
	Network      string   `toml:"network" yaml:"network"`
	Servers      []string `toml:"servers" yaml:"servers"`
	Port         uint16   `toml:"port" yaml:"port"`
	TLS          bool     `toml:"tls" yaml:"tls"`
	NoVerifyCert bool     `toml:"noverifycert" yaml:"noverifycert"`
	Proxy        string   `toml:"proxy" yaml:"proxy"`

	Nicks    []string `toml:"nicks" yaml:"nicks"`
	Username string   `toml:"username" yaml:"username"`
	Realname string   `toml:"realname" yaml:"realname"`
	Password string   `toml:"password" yaml:"password"`
	Keyring  string   `toml:"keyring" yaml:"keyring"`

	Channels  []string `toml:"channels" yaml:"channels"`
	OnConnect []string `toml:"onconnect" yaml:"onconnect"`
	Prefixes  []string `toml:"prefixes" yaml:"prefixes"`

	ReconnectTimeout uint    `toml:"reconnecttimeout" yaml:"reconnecttimeout"`
	PollTimeout      uint    `toml:"polltimeout" yaml:"polltimeout"`
	FloodRate        float64 `toml:"floodrate" yaml:"floodrate"`
	FloodBurst       int     `toml:"floodburst" yaml:"floodburst"`
	PingFrequency    uint    `toml:"pingfrequency" yaml:"pingfrequency"`
	ActivityTimeout  uint    `toml:"activitytimeout" yaml:"activitytimeout"`

	NoCoreCmds bool   `toml:"nocorecmds" yaml:"nocorecmds"`
	StoreFile  string `toml:"storefile" yaml:"storefile"`
	AuditFile  string `toml:"auditfile" yaml:"auditfile"`
	LogLevel   string `toml:"loglevel" yaml:"loglevel"`
	LogFile    string `toml:"logfile" yaml:"logfile"`

	errors   errList
	filename string
	protect  sync.RWMutex
}

// New initializes an empty Config object.
func New() *Config {
	return &Config{}
}

// Filename returns the file the configuration was loaded from, or the default.
func (c *Config) Filename() string {
	c.protect.RLock()
	defer c.protect.RUnlock()

	if len(c.filename) > 0 {
		return c.filename
	}
	return defaultConfigFileName
}

// SetDefaults fills in every unset value that has a default.
func (c *Config) SetDefaults() *Config {
	c.protect.Lock()
	defer c.protect.Unlock()

	if len(c.Network) == 0 {
		c.Network = defaultNetwork
	}
	if c.Port == 0 {
		c.Port = defaultIrcPort
		if c.TLS {
			c.Port = 6697
		}
	}
	if len(c.Username) == 0 && len(c.Nicks) > 0 {
		c.Username = c.Nicks[0]
	}
	if len(c.Realname) == 0 {
		c.Realname = c.Username
	}
	if len(c.Prefixes) == 0 {
		c.Prefixes = []string{defaultPrefix}
	}
	if c.ReconnectTimeout == 0 {
		c.ReconnectTimeout = defaultReconnectTimeout
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.FloodRate == 0 {
		c.FloodRate = defaultFloodRate
	}
	if c.FloodBurst == 0 {
		c.FloodBurst = defaultFloodBurst
	}
	if c.PingFrequency == 0 {
		c.PingFrequency = defaultPingFrequency
	}
	if c.ActivityTimeout == 0 {
		c.ActivityTimeout = defaultActivityTimeout
	}
	if len(c.StoreFile) == 0 {
		c.StoreFile = defaultStoreFile
	}
	if len(c.AuditFile) == 0 {
		c.AuditFile = defaultAuditFile
	}
	if len(c.LogLevel) == 0 {
		c.LogLevel = defaultLogLevel
	}

	return c
}

// Clone deep copies the configuration, errors are not copied.
func (c *Config) Clone() *Config {
	c.protect.RLock()
	defer c.protect.RUnlock()

	nc := &Config{
		Network:          c.Network,
		Servers:          cloneStrings(c.Servers),
		Port:             c.Port,
		TLS:              c.TLS,
		NoVerifyCert:     c.NoVerifyCert,
		Proxy:            c.Proxy,
		Nicks:            cloneStrings(c.Nicks),
		Username:         c.Username,
		Realname:         c.Realname,
		Password:         c.Password,
		Keyring:          c.Keyring,
		Channels:         cloneStrings(c.Channels),
		OnConnect:        cloneStrings(c.OnConnect),
		Prefixes:         cloneStrings(c.Prefixes),
		ReconnectTimeout: c.ReconnectTimeout,
		PollTimeout:      c.PollTimeout,
		FloodRate:        c.FloodRate,
		FloodBurst:       c.FloodBurst,
		PingFrequency:    c.PingFrequency,
		ActivityTimeout:  c.ActivityTimeout,
		NoCoreCmds:       c.NoCoreCmds,
		StoreFile:        c.StoreFile,
		AuditFile:        c.AuditFile,
		LogLevel:         c.LogLevel,
		LogFile:          c.LogFile,
		filename:         c.filename,
	}
	return nc
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
