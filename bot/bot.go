/*
Package bot joins the other packages together into a running irc bot. A Bot
owns the connection, the dispatcher, the roster and the access store, keeps
the connection registered and alive and hands every parsed line to the
handlers registered with it.
*/
package bot

import (
	"context"
	"time"

	"github.com/aarondl/triggerbot/config"
	"github.com/aarondl/triggerbot/data"
	"github.com/aarondl/triggerbot/dispatch"
	"github.com/aarondl/triggerbot/inet"
	"github.com/aarondl/triggerbot/irc"
	"github.com/aarondl/triggerbot/parse"
	"github.com/pkg/errors"
	"gopkg.in/inconshreveable/log15.v2"
)

const (
	// defaultQuitMessage is sent when the bot shuts down.
	defaultQuitMessage = "Shutting down."
	// defaultReconnectDelay is used between a lost connection and the next
	// attempt when the config has none.
	defaultReconnectDelay = 10 * time.Second
)

var (
	// errInvalidConfig is when New was given an invalid configuration.
	errInvalidConfig = errors.New("bot: Invalid Configuration")
)

// Bot is a main type that joins together all the packages into a functioning
// irc bot.
type Bot struct {
	log15.Logger

	conf       *config.Config
	conn       *inet.Conn
	writer     irc.Helper
	dispatcher *dispatch.Dispatcher

	state      *data.State
	store      *data.Store
	audit      *data.AuditLog
	permission *data.Permission

	reconnectDelay time.Duration
	quitMessage    string
}

// New creates a bot from a configuration. The configuration is validated and
// copied, later changes to conf have no effect on the bot. A nil logger
// discards everything.
func New(conf *config.Config, logger log15.Logger) (*Bot, error) {
	return createBot(conf, logger, nil, nil)
}

// createBot allows the connection and the store to be swapped out for tests.
// A nil dial or storeProvider uses the real thing.
func createBot(conf *config.Config, logger log15.Logger, dial inet.DialFunc,
	storeProvider data.DBProvider) (*Bot, error) {

	if logger == nil {
		logger = log15.New()
		logger.SetHandler(log15.DiscardHandler())
	}

	if !conf.Validate() {
		conf.DisplayErrors(logger)
		return nil, errInvalidConfig
	}
	conf = conf.Clone().SetDefaults()

	opts, err := conf.ConnOptions()
	if err != nil {
		return nil, err
	}

	b := &Bot{
		Logger:         logger.New("network", opts.Network),
		conf:           conf,
		state:          data.NewState(),
		reconnectDelay: opts.ReconnectDelay,
		quitMessage:    defaultQuitMessage,
	}
	if b.reconnectDelay == 0 {
		b.reconnectDelay = defaultReconnectDelay
	}

	opts.OnDisconnect = func() { b.dispatcher.Disconnect() }
	if b.conn, err = inet.NewConn(opts, dial, logger); err != nil {
		return nil, err
	}
	b.writer = irc.Helper{Writer: b.conn, Self: b.conn.Identity}

	if storeProvider == nil {
		storeProvider = data.MakeFileStoreProvider(conf.StoreFile)
	}
	if b.store, err = data.NewStore(storeProvider); err != nil {
		return nil, err
	}
	if b.audit, err = data.OpenAuditLog(conf.AuditFile, opts.Network); err != nil {
		b.store.Close()
		return nil, err
	}

	b.permission = data.NewPermission(b.store, b.state)
	b.dispatcher = dispatch.NewDispatcher(logger, b.prefixes)
	b.dispatcher.SetPermission(b.permission)
	b.dispatcher.SetAuditor(b.audit)

	b.dispatcher.RegisterPriority(newCoreHandler(b))
	if !conf.NoCoreCmds {
		b.dispatcher.Register(newCoreCommands(b))
	}

	return b, nil
}

// prefixes are the configured command prefixes followed by our own nick
// addressed in the two usual ways.
func (b *Bot) prefixes() []string {
	nick := b.conn.Nickname()
	prefixes := make([]string, 0, len(b.conf.Prefixes)+2)
	prefixes = append(prefixes, b.conf.Prefixes...)
	return append(prefixes, nick+":", nick+",")
}

// Run connects and dispatches until ctx ends. A lost connection fires the
// disconnect handlers and is re-established after the reconnect delay. When
// ctx ends the bot quits the server and Run returns nil.
func (b *Bot) Run(ctx context.Context) error {
	for {
		if err := b.conn.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		err := b.readLoop(ctx)
		b.dispatcher.Disconnect()
		if ctx.Err() != nil {
			b.Info("Shut down")
			return nil
		}

		b.Error("Connection lost", "err", err)
		b.Info("Reconnecting", "in", b.reconnectDelay)
		if !sleepContext(ctx, b.reconnectDelay) {
			return nil
		}
	}
}

// readLoop reads lines until the connection fails or ctx ends. Lines that
// do not parse are logged and dropped.
func (b *Bot) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if err := b.conn.Quit(b.quitMessage); err != nil {
				b.Debug("Quit failed", "err", err)
			}
			return ctx.Err()
		default:
		}

		line, err := b.conn.Read(ctx)
		if err != nil {
			return err
		}
		if len(line) == 0 {
			continue
		}

		m, err := parse.Parse(line)
		if err != nil {
			b.Warn("Discarding line", "line", line, "err", err)
			continue
		}
		b.dispatcher.Dispatch(b.writer, m)
	}
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

// Register adds a handler to the bot, see the dispatch package for the
// callbacks a handler may implement. The returned id unregisters it.
func (b *Bot) Register(h dispatch.Handler) uint64 {
	return b.dispatcher.Register(h)
}

// Unregister removes a handler added with Register.
func (b *Bot) Unregister(id uint64) bool {
	return b.dispatcher.Unregister(id)
}

// Require sets the access level a trigger needs.
func (b *Bot) Require(trigger string, level uint8) {
	b.permission.Require(trigger, level)
}

// User finds the stored user behind a message's sender, by host login or
// services account.
func (b *Bot) User(m *irc.Message) *data.StoredUser {
	return b.permission.User(m)
}

// Writer writes to the server outside of a handler.
func (b *Bot) Writer() irc.Writer {
	return b.writer
}

// Nickname is the nick we currently have.
func (b *Bot) Nickname() string {
	return b.conn.Nickname()
}

// Address is ident@host as the server sees us, empty until learned.
func (b *Bot) Address() string {
	return b.conn.Address()
}

// Network is the configured network name.
func (b *Bot) Network() string {
	return b.conn.Network()
}

// State is the roster of channels and users we can see.
func (b *Bot) State() *data.State {
	return b.state
}

// Store is the access store.
func (b *Bot) Store() *data.Store {
	return b.store
}

// AuditLog is the record of responded triggers.
func (b *Bot) AuditLog() *data.AuditLog {
	return b.audit
}

// Close releases the databases. The bot must not be running.
func (b *Bot) Close() error {
	b.conn.Disconnect()

	err := b.audit.Close()
	if serr := b.store.Close(); err == nil {
		err = serr
	}
	return err
}
