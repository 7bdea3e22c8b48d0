package inet

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/aarondl/triggerbot/mocks"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) } //Hook into testing package

type s struct{}

var _ = Suite(&s{})

// fakeNet hands out mock connections and records dialed addresses.
type fakeNet struct {
	conns  []*mocks.Conn
	dialed []string
	fail   int
}

func (f *fakeNet) dial(ctx context.Context, addr string) (net.Conn, error) {
	f.dialed = append(f.dialed, addr)
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("connection refused")
	}
	conn := mocks.NewConn()
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *fakeNet) last() *mocks.Conn {
	return f.conns[len(f.conns)-1]
}

func testOptions() Options {
	return Options{
		Network:  "test",
		Servers:  []string{"irc.one.net", "irc.two.net:7000"},
		Nicks:    []string{"Bot", "Bot_", "Bot__"},
		Username: "bot",
		Realname: "A Bot",
	}
}

func newTestConn(c *C, opts Options) (*Conn, *fakeNet, *[]time.Duration) {
	f := &fakeNet{}
	conn, err := NewConn(opts, f.dial, nil)
	c.Assert(err, IsNil)

	waits := &[]time.Duration{}
	conn.wait = func(_ context.Context, d time.Duration) bool {
		*waits = append(*waits, d)
		return true
	}
	return conn, f, waits
}

func (s *s) TestNewConn_Errors(c *C) {
	opts := testOptions()
	opts.Servers = nil
	_, err := NewConn(opts, nil, nil)
	c.Check(err, NotNil)

	opts = testOptions()
	opts.Nicks = nil
	_, err = NewConn(opts, nil, nil)
	c.Check(err, NotNil)
}

func (s *s) TestNewConn_Defaults(c *C) {
	conn, _, _ := newTestConn(c, Options{Servers: []string{"a"}, Nicks: []string{"n"}})
	c.Check(conn.opts.Port, Equals, uint16(defaultPort))
	c.Check(conn.opts.PollTimeout, Equals, defaultPollTimeout)
	c.Check(conn.opts.ReconnectDelay, Equals, defaultReconnectDelay)
	c.Check(conn.opts.Username, Equals, "n")
	c.Check(conn.opts.Realname, Equals, "n")
	c.Check(conn.State(), Equals, Closed)
	c.Check(conn.Nickname(), Equals, "n")
}

func (s *s) TestConn_Connect(c *C) {
	opts := testOptions()
	opts.Password = "secret"
	conn, f, _ := newTestConn(c, opts)

	c.Assert(conn.Connect(context.Background()), IsNil)
	c.Check(conn.State(), Equals, Open)
	c.Check(f.dialed, DeepEquals, []string{"irc.one.net:6667"})
	c.Check(f.last().Lines(), DeepEquals, []string{
		"PASS :secret",
		"USER bot 0 * :A Bot",
		"NICK :Bot",
	})
}

func (s *s) TestConn_ConnectFailure(c *C) {
	conn, f, waits := newTestConn(c, testOptions())
	f.fail = 1

	err := conn.Connect(context.Background())
	c.Assert(err, NotNil)
	c.Check(conn.State(), Equals, Closed)
	c.Check(conn.Server(), Equals, "irc.two.net:7000")
	c.Check(len(*waits), Equals, 10)
	for _, w := range *waits {
		c.Check(w, Equals, time.Second)
	}

	c.Assert(conn.Connect(context.Background()), IsNil)
	c.Check(f.dialed, DeepEquals, []string{"irc.one.net:6667", "irc.two.net:7000"})

	conn.PromoteServer()
	c.Check(conn.Servers(), DeepEquals, []string{"irc.two.net:7000", "irc.one.net"})
}

func (s *s) TestConn_CountdownCancelled(c *C) {
	conn, f, _ := newTestConn(c, testOptions())
	f.fail = 1
	calls := 0
	conn.wait = func(_ context.Context, _ time.Duration) bool {
		calls++
		return false
	}

	c.Check(conn.Connect(context.Background()), NotNil)
	c.Check(calls, Equals, 1)
}

func (s *s) TestConn_Read(c *C) {
	conn, f, _ := newTestConn(c, testOptions())
	c.Assert(conn.Connect(context.Background()), IsNil)
	mock := f.last()

	line, err := conn.Read(context.Background())
	c.Check(err, IsNil)
	c.Check(line, Equals, "")
	c.Check(mock.Deadline().IsZero(), Equals, false)

	mock.Send("PING :one\r\n:a!b@c PRIVMSG #c :hi\n:a!b@c PRI")
	line, err = conn.Read(context.Background())
	c.Check(err, IsNil)
	c.Check(line, Equals, "PING :one")

	line, _ = conn.Read(context.Background())
	c.Check(line, Equals, ":a!b@c PRIVMSG #c :hi")

	line, _ = conn.Read(context.Background())
	c.Check(line, Equals, "")

	mock.Send("VMSG #c :there\r\n\r\n")
	line, _ = conn.Read(context.Background())
	c.Check(line, Equals, ":a!b@c PRIVMSG #c :there")
}

func (s *s) TestConn_ReadLatin1(c *C) {
	conn, f, _ := newTestConn(c, testOptions())
	c.Assert(conn.Connect(context.Background()), IsNil)

	f.last().Send(":a!b@c PRIVMSG #c :caf\xe9\r\n")
	line, err := conn.Read(context.Background())
	c.Check(err, IsNil)
	c.Check(line, Equals, ":a!b@c PRIVMSG #c :café")
}

func (s *s) TestConn_ReadError(c *C) {
	conn, f, _ := newTestConn(c, testOptions())
	c.Assert(conn.Connect(context.Background()), IsNil)
	mock := f.last()

	mock.FailReads(io.EOF)
	_, err := conn.Read(context.Background())
	c.Check(err, NotNil)
	c.Check(conn.State(), Equals, Closed)
	c.Check(mock.IsClosed(), Equals, true)

	_, err = conn.Read(context.Background())
	c.Check(err, Equals, ErrNotConnected)
}

func (s *s) TestConn_Raw(c *C) {
	conn, f, _ := newTestConn(c, testOptions())
	c.Assert(conn.Connect(context.Background()), IsNil)
	mock := f.last()
	before := len(mock.Lines())

	c.Check(conn.Raw("JOIN :#a\r\n\nPRIVMSG #a :hi"), IsNil)
	c.Check(mock.Lines()[before:], DeepEquals, []string{
		"JOIN :#a",
		"PRIVMSG #a :hi",
	})

	n, err := conn.Write([]byte("PONG :x\r\n"))
	c.Check(err, IsNil)
	c.Check(n, Equals, 9)
	lines := mock.Lines()
	c.Check(lines[len(lines)-1], Equals, "PONG :x")
}

func (s *s) TestConn_RawReconnects(c *C) {
	opts := testOptions()
	var conn *Conn
	var stateAtDisconnect State
	disconnects := 0
	opts.OnDisconnect = func() {
		disconnects++
		stateAtDisconnect = conn.State()
	}
	conn, f, _ := newTestConn(c, opts)
	c.Assert(conn.Connect(context.Background()), IsNil)
	broken := f.last()
	broken.FailWrites(errors.New("broken pipe"))

	err := conn.Raw("PRIVMSG #a :hi")
	c.Check(err, NotNil)
	c.Check(broken.IsClosed(), Equals, true)
	c.Check(disconnects, Equals, 1)
	c.Check(stateAtDisconnect, Equals, Closed)
	c.Check(len(f.conns), Equals, 2)
	c.Check(conn.State(), Equals, Open)
	c.Check(f.last().Lines(), DeepEquals, []string{
		"USER bot 0 * :A Bot",
		"NICK :Bot",
	})
}

func (s *s) TestConn_Disconnect(c *C) {
	conn, f, _ := newTestConn(c, testOptions())
	c.Assert(conn.Connect(context.Background()), IsNil)

	c.Check(conn.Disconnect(), IsNil)
	c.Check(conn.State(), Equals, Closed)
	c.Check(f.last().IsClosed(), Equals, true)
	c.Check(conn.Raw("PRIVMSG #a :hi"), Equals, ErrNotConnected)
	c.Check(len(f.conns), Equals, 1)
	c.Check(conn.Disconnect(), IsNil)
}

func (s *s) TestConn_Quit(c *C) {
	conn, f, _ := newTestConn(c, testOptions())
	c.Assert(conn.Connect(context.Background()), IsNil)

	c.Check(conn.Quit("bye"), IsNil)
	lines := f.last().Lines()
	c.Check(lines[len(lines)-1], Equals, "QUIT :bye")
	c.Check(conn.State(), Equals, Closed)
}

func (s *s) TestConn_NextNick(c *C) {
	conn, f, _ := newTestConn(c, testOptions())
	c.Assert(conn.Connect(context.Background()), IsNil)

	nick, err := conn.NextNick()
	c.Check(err, IsNil)
	c.Check(nick, Equals, "Bot_")
	c.Check(conn.Nickname(), Equals, "Bot_")
	lines := f.last().Lines()
	c.Check(lines[len(lines)-1], Equals, "NICK :Bot_")

	conn.NextNick()
	nick, _ = conn.NextNick()
	c.Check(nick, Equals, "Bot")

	conn.NextNick()
	conn.PromoteNick()
	c.Check(conn.Nicks(), DeepEquals, []string{"Bot_", "Bot", "Bot__"})

	c.Assert(conn.Connect(context.Background()), IsNil)
	lines = f.last().Lines()
	c.Check(lines[len(lines)-1], Equals, "NICK :Bot_")
}

func (s *s) TestConn_Identity(c *C) {
	conn, _, _ := newTestConn(c, testOptions())
	conn.SetNickname("Other")
	conn.SetAddress("bot@host.net")

	id := conn.Identity()
	c.Check(id.Nick, Equals, "Other")
	c.Check(id.Address, Equals, "bot@host.net")
	c.Check(conn.Address(), Equals, "bot@host.net")
}

func (s *s) TestConn_Keepalive(c *C) {
	opts := testOptions()
	opts.PingFrequency = 90 * time.Second
	opts.ActivityTimeout = 180 * time.Second
	conn, f, _ := newTestConn(c, opts)

	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	conn.now = func() time.Time { return now }
	c.Assert(conn.Connect(context.Background()), IsNil)
	mock := f.last()

	now = now.Add(91 * time.Second)
	_, err := conn.Read(context.Background())
	c.Check(err, IsNil)
	lines := mock.Lines()
	c.Check(lines[len(lines)-1], Equals, "PING :irc.one.net")

	n := mock.Writes()
	conn.Read(context.Background())
	c.Check(mock.Writes(), Equals, n)

	mock.Send("PONG :irc.one.net\r\n")
	conn.Read(context.Background())

	now = now.Add(181 * time.Second)
	_, err = conn.Read(context.Background())
	c.Check(err, NotNil)
	c.Check(conn.State(), Equals, Closed)
}

func (s *s) TestConn_Flood(c *C) {
	opts := testOptions()
	opts.FloodRate = 0.5
	opts.FloodBurst = 2
	conn, f, _ := newTestConn(c, opts)

	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	conn.now = func() time.Time { return now }
	c.Assert(conn.Connect(context.Background()), IsNil)
	mock := f.last()

	start := time.Now()
	for i := 0; i < 5; i++ {
		c.Check(conn.Raw("PRIVMSG #a :x"), IsNil)
	}
	c.Check(time.Since(start) < time.Second, Equals, true)
	c.Check(len(mock.Lines()), Equals, 4)
	c.Check(conn.Queued(), Equals, 3)

	c.Check(conn.Raw("PONG :irc.one.net"), IsNil)
	lines := mock.Lines()
	c.Check(lines[len(lines)-1], Equals, "PONG :irc.one.net")

	conn.Read(context.Background())
	c.Check(conn.Queued(), Equals, 3)

	now = now.Add(2 * time.Second)
	conn.Read(context.Background())
	c.Check(conn.Queued(), Equals, 2)
	c.Check(len(mock.Lines()), Equals, 6)

	now = now.Add(time.Minute)
	conn.Read(context.Background())
	c.Check(conn.Queued(), Equals, 0)
	c.Check(len(mock.Lines()), Equals, 8)

	c.Check(conn.Raw("PRIVMSG #a :x"), IsNil)
	c.Check(conn.Queued(), Equals, 1)
}

func (s *s) TestConn_FloodQueueDroppedOnConnect(c *C) {
	opts := testOptions()
	opts.FloodRate = 0.5
	opts.FloodBurst = 1
	conn, f, _ := newTestConn(c, opts)

	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	conn.now = func() time.Time { return now }
	c.Assert(conn.Connect(context.Background()), IsNil)
	conn.Raw("PRIVMSG #a :one\nPRIVMSG #a :two")
	c.Check(conn.Queued(), Equals, 1)

	c.Assert(conn.Connect(context.Background()), IsNil)
	c.Check(conn.Queued(), Equals, 0)
	c.Check(len(f.conns), Equals, 2)
}
