package bot

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aarondl/triggerbot/config"
	"github.com/aarondl/triggerbot/data"
	"github.com/aarondl/triggerbot/irc"
	"github.com/aarondl/triggerbot/mocks"
	"github.com/aarondl/triggerbot/parse"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	data.StoredUserPwdCost = bcrypt.MinCost
}

// fakeNet hands out mock connections.
type fakeNet struct {
	mut   sync.Mutex
	conns []*mocks.Conn
}

func (f *fakeNet) dial(ctx context.Context, addr string) (net.Conn, error) {
	f.mut.Lock()
	defer f.mut.Unlock()
	conn := mocks.NewConn()
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *fakeNet) last() *mocks.Conn {
	f.mut.Lock()
	defer f.mut.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

func testConfig(t *testing.T) *config.Config {
	conf := config.New()
	conf.Network = "test"
	conf.Servers = []string{"irc.test.net"}
	conf.Nicks = []string{"Bot", "Bot_"}
	conf.Username = "bot"
	conf.Realname = "A Bot"
	conf.Channels = []string{"#chan", "#other"}
	conf.OnConnect = []string{"MODE Bot +B"}
	conf.FloodRate = -1
	conf.ReconnectTimeout = 1
	conf.AuditFile = filepath.Join(t.TempDir(), "audit.sqlite")
	return conf
}

func newBot(t *testing.T, conf *config.Config) (*Bot, *fakeNet) {
	t.Helper()
	f := &fakeNet{}
	b, err := createBot(conf, nil, f.dial, data.MemStoreProvider)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b, f
}

// connectedBot is a bot with an open connection and the registration lines
// already written.
func connectedBot(t *testing.T, conf *config.Config) (*Bot, *mocks.Conn) {
	t.Helper()
	b, f := newBot(t, conf)
	if err := b.conn.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	return b, f.last()
}

// feed dispatches lines as if they were read from the server and returns
// the lines that were written in response.
func feed(t *testing.T, b *Bot, conn *mocks.Conn, lines ...string) []string {
	t.Helper()
	before := len(conn.Lines())
	for _, line := range lines {
		m, err := parse.Parse(line)
		if err != nil {
			t.Fatal(err)
		}
		b.dispatcher.Dispatch(b.writer, m)
	}
	return conn.Lines()[before:]
}

func checkLines(t *testing.T, got []string, expect ...string) {
	t.Helper()
	if strings.Join(got, "\n") != strings.Join(expect, "\n") {
		t.Errorf("Expected: %q, got: %q", expect, got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := createBot(config.New(), nil, nil, data.MemStoreProvider); err != errInvalidConfig {
		t.Errorf("Expected: %v, got: %v", errInvalidConfig, err)
	}
}

func TestNew_CopiesConfig(t *testing.T) {
	t.Parallel()
	conf := testConfig(t)
	b, _ := newBot(t, conf)

	conf.Prefixes = []string{"!"}
	if b.conf == conf {
		t.Error("The configuration should be copied.")
	}
	if got := b.prefixes(); strings.Join(got, " ") != ". Bot: Bot," {
		t.Error("Prefixes wrong:", got)
	}
	if b.Network() != "test" {
		t.Errorf("Expected: %v, got: %v", "test", b.Network())
	}
}

func TestConnect_Registration(t *testing.T) {
	t.Parallel()
	_, conn := connectedBot(t, testConfig(t))
	checkLines(t, conn.Lines(), "USER bot 0 * :A Bot", "NICK :Bot")
}

func TestRun(t *testing.T) {
	t.Parallel()
	b, f := newBot(t, testConfig(t))

	disconnected := make(chan struct{}, 1)
	b.Register(&lifecycle{disconnected: disconnected})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	var conn *mocks.Conn
	waitFor(t, func() bool { conn = f.last(); return conn != nil })
	conn.Send(":irc.test.net 001 Bot :Welcome to the network Bot!bot@me.com\r\n")
	conn.Send("garbage\r\n")
	conn.Send("PING :irc.test.net\r\n")
	waitFor(t, func() bool {
		return strings.Contains(conn.Written(), "PONG :irc.test.net")
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Error("Run should end cleanly:", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return.")
	}

	lines := conn.Lines()
	if lines[len(lines)-1] != "QUIT :"+defaultQuitMessage {
		t.Error("Should have quit last:", lines)
	}
	if !strings.Contains(conn.Written(), "JOIN :#chan,#other\r\n") {
		t.Error("Should have joined:", lines)
	}
	if !conn.IsClosed() {
		t.Error("Connection should be closed.")
	}
	select {
	case <-disconnected:
	default:
		t.Error("Disconnect handlers should have run.")
	}
}

func TestRun_Reconnects(t *testing.T) {
	t.Parallel()
	b, f := newBot(t, testConfig(t))
	b.reconnectDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	var first *mocks.Conn
	waitFor(t, func() bool { first = f.last(); return first != nil })
	first.FailReads(net.ErrClosed)

	waitFor(t, func() bool { return f.last() != first })
	cancel()
	<-done
}

type lifecycle struct {
	disconnected chan struct{}
}

func (l *lifecycle) OnDisconnect() error {
	l.disconnected <- struct{}{}
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting.")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAccessors(t *testing.T) {
	t.Parallel()
	b, _ := newBot(t, testConfig(t))

	if b.Nickname() != "Bot" || b.Address() != "" {
		t.Error("Wrong identity:", b.Nickname(), b.Address())
	}
	if b.State() == nil || b.Store() == nil || b.AuditLog() == nil {
		t.Error("Collaborators should be set.")
	}
	if _, ok := b.Writer().(irc.Helper); !ok {
		t.Error("Writer should be a helper.")
	}

	b.Require("Restart", 50)
	if lvl, ok := b.permission.Required("restart"); !ok || lvl != 50 {
		t.Error("Requirement not set:", lvl, ok)
	}

	id := b.Register(&lifecycle{})
	if !b.Unregister(id) {
		t.Error("Should unregister.")
	}
}

func TestWriteFailure_FiresDisconnect(t *testing.T) {
	t.Parallel()
	b, f := newBot(t, testConfig(t))
	if err := b.conn.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	broken := f.last()
	addUser(t, b, "user", 1)

	hooks := &lifecycle{disconnected: make(chan struct{}, 1)}
	b.Register(hooks)
	feed(t, b, broken, welcome, ":Bot!bot@me.com JOIN :#chan")
	if _, err := b.store.AuthUser("nick!u@h", "user", "pass"); err != nil {
		t.Fatal(err)
	}

	broken.FailWrites(errors.New("broken pipe"))
	m, err := parse.Parse("PING :irc.test.net")
	if err != nil {
		t.Fatal(err)
	}
	b.dispatcher.Dispatch(b.writer, m)

	select {
	case <-hooks.disconnected:
	default:
		t.Error("Disconnect handlers should run when a write fails.")
	}
	if b.State().NChannels() != 0 {
		t.Error("The roster should be empty.")
	}
	if b.store.AuthedUser("nick!u@h") != nil {
		t.Error("Everyone should be logged out.")
	}

	fresh := f.last()
	if fresh == broken {
		t.Fatal("Expected a new connection.")
	}
	checkLines(t, fresh.Lines(), "USER bot 0 * :A Bot", "NICK :Bot")
}
