/*
Package inet owns the socket to the irc server. It dials the server rotation,
registers, polls for complete lines, throttles writes and reconnects when the
socket breaks.
*/
package inet

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aarondl/triggerbot/irc"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"
	"gopkg.in/inconshreveable/log15.v2"
)

const (
	// bufferSize is the size of the buffer to be allocated for reads, a line
	// that does not fit is discarded.
	bufferSize = 16384
	// defaultPort is IRC's default tcp port.
	defaultPort = 6667
	// defaultPollTimeout is how long Read waits for data.
	defaultPollTimeout = 100 * time.Millisecond
	// defaultReconnectDelay is the countdown after a failed connect.
	defaultReconnectDelay = 10 * time.Second
)

// Format strings for errors and logging output
const (
	fmtErrConnect     = "inet: (%v) failed to connect to %v"
	fmtErrWrite       = "inet: (%v) write failed"
	fmtErrRead        = "inet: (%v) read failed"
	fmtPing           = "PING :%s"
	fmtUser           = "USER %s 0 * :%s"
	fmtNick           = "NICK :%s"
	fmtPass           = "PASS :%s"
	errMsgIdleTimeout = "inet: Connection idle for too long"
)

var (
	// ErrNotConnected is returned when reading or writing a closed Conn.
	ErrNotConnected = errors.New("inet: Not connected")

	// pong allows replies to pings to skip the flood limiter.
	pong = []byte("PONG")
)

// State is the socket state of a Conn.
type State int

// Socket states, a Conn moves Closed -> Connecting -> Open -> Closed.
const (
	Closed State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// Options configures a Conn.
type Options struct {
	// Network names the connection in logs.
	Network string
	// Servers are tried in order, each can carry its own :port.
	Servers []string
	Port    uint16
	TLS     bool
	// NoVerifyCert disables certificate checks.
	NoVerifyCert bool
	// Proxy is a proxy url, socks5://host:port.
	Proxy string

	// Nicks are tried in order when one is in use.
	Nicks    []string
	Username string
	Realname string
	Password string

	ReconnectDelay time.Duration
	PollTimeout    time.Duration

	// FloodRate is how many lines per second may be written once FloodBurst
	// lines have gone out, 0 disables flood protection.
	FloodRate  float64
	FloodBurst int

	// PingFrequency is how long the connection may be silent before we ping
	// the server, ActivityTimeout how long before we give up on it. 0
	// disables either.
	PingFrequency   time.Duration
	ActivityTimeout time.Duration

	// OnDisconnect is called when a failed write drops the socket, before
	// Raw reconnects.
	OnDisconnect func()
}

// Conn is a connection to an irc server. Read is meant to be called from a
// single loop, the accessors and Raw are safe from any goroutine.
type Conn struct {
	opts Options
	log  log15.Logger
	dial DialFunc

	mut      sync.RWMutex
	state    State
	conn     net.Conn
	servers  *irc.Rotation
	nicks    *irc.Rotation
	nickname string
	address  string

	// read side, only touched by the reading loop
	buf      []byte
	pos      int
	pending  lineQueue
	lastRead time.Time
	pinged   bool

	writeMut sync.Mutex
	limiter  *rate.Limiter

	// outbox holds lines the flood limiter did not let through yet, Read
	// writes them as tokens come back.
	outMut sync.Mutex
	outbox lineQueue

	// Replaced in tests.
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) bool
}

// NewConn creates a closed connection. dial may be nil to use NewDialer.
func NewConn(opts Options, dial DialFunc, logger log15.Logger) (*Conn, error) {
	servers, err := irc.NewRotation(opts.Servers...)
	if err != nil {
		return nil, errors.Wrap(err, "inet: servers")
	}
	nicks, err := irc.NewRotation(opts.Nicks...)
	if err != nil {
		return nil, errors.Wrap(err, "inet: nicks")
	}

	if opts.Port == 0 {
		opts.Port = defaultPort
	}
	if opts.PollTimeout == 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if len(opts.Username) == 0 {
		opts.Username = nicks.Current()
	}
	if len(opts.Realname) == 0 {
		opts.Realname = opts.Username
	}

	if dial == nil {
		if dial, err = NewDialer(opts); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = log15.New()
		logger.SetHandler(log15.DiscardHandler())
	}

	limit := rate.Inf
	if opts.FloodRate > 0 {
		limit = rate.Limit(opts.FloodRate)
	}
	burst := opts.FloodBurst
	if burst < 1 {
		burst = 1
	}

	return &Conn{
		opts:     opts,
		log:      logger.New("network", opts.Network),
		dial:     dial,
		servers:  servers,
		nicks:    nicks,
		nickname: nicks.Current(),
		buf:      make([]byte, bufferSize),
		limiter:  rate.NewLimiter(limit, burst),
		now:      time.Now,
		wait:     sleepContext,
	}, nil
}

// sleepContext sleeps for d, returning false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Connect dials the server at the head of the rotation and registers. When
// the dial fails the rotation moves on to the next server and a countdown of
// ReconnectDelay runs before the error is returned, callers retry.
func (c *Conn) Connect(ctx context.Context) error {
	c.mut.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = Connecting
	server := c.servers.Current()
	c.mut.Unlock()

	addr := c.serverAddr(server)
	c.log.Info("Connecting", "server", addr)

	conn, err := c.dial(ctx, addr)
	if err != nil {
		c.mut.Lock()
		c.state = Closed
		c.servers.Next()
		c.mut.Unlock()

		err = errors.Wrapf(err, fmtErrConnect, c.opts.Network, addr)
		c.log.Error("Connect failed", "server", addr, "err", err)
		c.countdown(ctx)
		return err
	}

	c.mut.Lock()
	c.conn = conn
	c.state = Open
	c.nicks.Reset()
	c.nickname = c.nicks.Current()
	c.address = ""
	c.pos = 0
	c.pending.Clear()
	c.lastRead = c.now()
	c.pinged = false
	nick := c.nickname
	c.mut.Unlock()
	c.clearOutbox()

	c.log.Info("Connected", "server", addr)

	var lines []string
	if len(c.opts.Password) > 0 {
		lines = append(lines, fmt.Sprintf(fmtPass, c.opts.Password))
	}
	lines = append(lines,
		fmt.Sprintf(fmtUser, c.opts.Username, c.opts.Realname),
		fmt.Sprintf(fmtNick, nick),
	)
	for _, line := range lines {
		if err = c.writeLine(line); err != nil {
			c.Disconnect()
			return err
		}
	}

	return nil
}

// serverAddr adds the configured port unless the server carries its own.
func (c *Conn) serverAddr(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, strconv.Itoa(int(c.opts.Port)))
}

// countdown waits out the reconnect delay, reporting once per second.
func (c *Conn) countdown(ctx context.Context) {
	remaining := c.opts.ReconnectDelay
	for remaining > 0 {
		step := time.Second
		if remaining < step {
			step = remaining
		}
		c.log.Info("Reconnecting", "in", remaining.Round(time.Second))
		if !c.wait(ctx, step) {
			return
		}
		remaining -= step
	}
}

// Read returns the next complete line from the server, waiting at most
// PollTimeout for one to arrive. An empty line and nil error mean nothing
// arrived in time. Read also drives the keepalive: a silent connection is
// pinged and then dropped.
func (c *Conn) Read(ctx context.Context) (string, error) {
	if err := c.flush(); err != nil {
		return "", err
	}
	if line, ok := c.pending.Dequeue(); ok {
		return line, nil
	}

	c.mut.RLock()
	conn := c.conn
	server := c.servers.Current()
	c.mut.RUnlock()
	if conn == nil {
		return "", ErrNotConnected
	}

	if err := c.keepalive(server); err != nil {
		return "", err
	}

	if err := conn.SetReadDeadline(c.now().Add(c.opts.PollTimeout)); err != nil {
		return "", errors.Wrapf(err, fmtErrRead, c.opts.Network)
	}

	if c.pos == len(c.buf) {
		c.log.Warn("Discarding oversized line", "bytes", c.pos)
		c.pos = 0
	}

	n, err := conn.Read(c.buf[c.pos:])
	if n > 0 {
		c.lastRead = c.now()
		c.pinged = false
		c.extractLines(n)
	}
	if err != nil && !isTimeout(err) {
		c.log.Error("Read failed", "err", err)
		c.Disconnect()
		return "", errors.Wrapf(err, fmtErrRead, c.opts.Network)
	}

	line, _ := c.pending.Dequeue()
	return line, nil
}

// keepalive pings a quiet server and drops a dead one.
func (c *Conn) keepalive(server string) error {
	idle := c.now().Sub(c.lastRead)

	if c.opts.ActivityTimeout > 0 && idle >= c.opts.ActivityTimeout {
		c.log.Error("Connection timed out", "idle", idle)
		c.Disconnect()
		return errors.New(errMsgIdleTimeout)
	}

	if c.opts.PingFrequency > 0 && idle >= c.opts.PingFrequency && !c.pinged {
		c.pinged = true
		return c.writeLine(fmt.Sprintf(fmtPing, server))
	}
	return nil
}

// extractLines moves every complete line in the buffer into the pending
// queue and shifts what's left to the front.
func (c *Conn) extractLines(n int) {
	data := c.buf[:c.pos+n]
	start := 0
	for {
		i := bytes.IndexByte(data[start:], '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(data[start:start+i], "\r")
		start += i + 1
		if len(line) == 0 {
			continue
		}

		decoded := decode(line)
		c.log.Debug("->", "line", decoded)
		c.pending.Enqueue(decoded)
	}

	c.pos = copy(c.buf, data[start:])
}

// decode returns the line as a string, treating anything that isn't valid
// utf8 as windows-1252 which is what most legacy clients send.
func decode(line []byte) string {
	if utf8.Valid(line) {
		return string(line)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(line)
	if err != nil {
		return string(line)
	}
	return string(decoded)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Raw writes one or more \n separated lines, each is sent as is with CRLF
// added. Lines over the flood limit are queued and written by Read when
// their turn comes, PONG always goes out at once. If a write fails
// OnDisconnect is called, the connection is re-established and the write
// error is returned, the rest of the lines are dropped.
func (c *Conn) Raw(text string) error {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}

		if strings.HasPrefix(line, string(pong)) {
			if err := c.writeLine(line); err != nil {
				return c.writeFailed(err)
			}
			continue
		}

		c.outMut.Lock()
		if c.outbox.Len() > 0 || !c.limiter.AllowN(c.now(), 1) {
			c.outbox.Enqueue(line)
			c.outMut.Unlock()
			continue
		}
		err := c.writeLine(line)
		c.outMut.Unlock()
		if err != nil {
			return c.writeFailed(err)
		}
	}
	return nil
}

// writeFailed drops the broken socket and connects again, err is handed
// back to the writer.
func (c *Conn) writeFailed(err error) error {
	if errors.Cause(err) == ErrNotConnected {
		return err
	}
	c.Disconnect()
	if c.opts.OnDisconnect != nil {
		c.opts.OnDisconnect()
	}
	if cerr := c.Connect(context.Background()); cerr != nil {
		c.log.Error("Reconnect after write failure failed", "err", cerr)
	}
	return err
}

// flush writes the queued lines the flood limiter allows now. A failed
// write drops the connection like a failed read does.
func (c *Conn) flush() error {
	c.outMut.Lock()
	defer c.outMut.Unlock()

	for c.outbox.Len() > 0 && c.limiter.AllowN(c.now(), 1) {
		line, _ := c.outbox.Dequeue()
		if err := c.writeLine(line); err != nil {
			c.outbox.Clear()
			if errors.Cause(err) != ErrNotConnected {
				c.Disconnect()
			}
			return err
		}
	}
	return nil
}

// Queued is how many lines are waiting on the flood limiter.
func (c *Conn) Queued() int {
	c.outMut.Lock()
	defer c.outMut.Unlock()
	return c.outbox.Len()
}

func (c *Conn) clearOutbox() {
	c.outMut.Lock()
	c.outbox.Clear()
	c.outMut.Unlock()
}

// Write implements io.Writer on top of Raw so an irc.Helper can sit on a
// Conn.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.Raw(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeLine writes a single line to the socket and logs it.
func (c *Conn) writeLine(line string) error {
	c.mut.RLock()
	conn := c.conn
	c.mut.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMut.Lock()
	defer c.writeMut.Unlock()

	if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
		c.log.Error("Write failed", "line", line, "err", err)
		return errors.Wrapf(err, fmtErrWrite, c.opts.Network)
	}
	c.log.Debug("<-", "line", line)
	return nil
}

// Disconnect closes the socket without reconnecting.
func (c *Conn) Disconnect() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.state = Closed
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.log.Info("Disconnected")
	return err
}

// Quit sends a quit message and disconnects.
func (c *Conn) Quit(msg string) error {
	err := c.writeLine(fmt.Sprintf("QUIT :%s", msg))
	if derr := c.Disconnect(); err == nil {
		err = derr
	}
	return err
}

// NextNick moves to the next nickname in the rotation and asks the server
// for it.
func (c *Conn) NextNick() (string, error) {
	c.mut.Lock()
	nick := c.nicks.Next()
	c.nickname = nick
	c.mut.Unlock()

	c.log.Info("Nickname in use, trying next", "nick", nick)
	return nick, c.writeLine(fmt.Sprintf(fmtNick, nick))
}

// PromoteNick makes the nickname that was accepted the first to try next
// time.
func (c *Conn) PromoteNick() {
	c.mut.Lock()
	c.nicks.Promote()
	c.mut.Unlock()
}

// PromoteServer makes the server that accepted us the first to try next
// time.
func (c *Conn) PromoteServer() {
	c.mut.Lock()
	c.servers.Promote()
	c.mut.Unlock()
}

// Nickname is our current nickname.
func (c *Conn) Nickname() string {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.nickname
}

// SetNickname records a nickname change the server confirmed.
func (c *Conn) SetNickname(nick string) {
	c.mut.Lock()
	c.nickname = nick
	c.mut.Unlock()
}

// Address is ident@host as the server sees us, empty until learned.
func (c *Conn) Address() string {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.address
}

// SetAddress records how the server sees us.
func (c *Conn) SetAddress(address string) {
	c.mut.Lock()
	c.address = address
	c.mut.Unlock()
}

// Identity is our nickname and address, for the formatter.
func (c *Conn) Identity() irc.Identity {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return irc.Identity{Nick: c.nickname, Address: c.address}
}

// Server is the server at the head of the rotation.
func (c *Conn) Server() string {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.servers.Current()
}

// Servers is the server rotation in its current order.
func (c *Conn) Servers() []string {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.servers.Items()
}

// Nicks is the nickname rotation in its current order.
func (c *Conn) Nicks() []string {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.nicks.Items()
}

// State is the socket state.
func (c *Conn) State() State {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.state
}

// Network is the configured network name.
func (c *Conn) Network() string {
	return c.opts.Network
}
