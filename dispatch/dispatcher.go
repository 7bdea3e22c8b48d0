/*
Package dispatch fans parsed messages out to registered handlers and routes
commands to the triggers those handlers own.
*/
package dispatch

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/aarondl/triggerbot/irc"
	"github.com/aarondl/triggerbot/parse"
	"gopkg.in/inconshreveable/log15.v2"
)

// Handler is anything implementing one or more of the callback interfaces
// in handlers.go.
type Handler interface{}

// Permission decides if a message may run a trigger. A Dispatcher without
// one allows everything.
type Permission interface {
	HasPermission(m *irc.Message, trigger string) bool
}

// PermissionFunc implements Permission.
type PermissionFunc func(m *irc.Message, trigger string) bool

// HasPermission implements Permission.
func (p PermissionFunc) HasPermission(m *irc.Message, trigger string) bool {
	return p(m, trigger)
}

// Auditor is told about every message a trigger responded to.
type Auditor interface {
	Audit(m *irc.Message) error
}

// rgxErrSource matches the "Source::method: " prefix some errors carry.
var rgxErrSource = regexp.MustCompile(`^[\w.]+::[\w.]+: `)

type entry struct {
	id      uint64
	handler Handler
}

// Dispatcher delivers messages to its priority handlers first and then to
// every other handler in registration order. A handler that errors or panics
// is logged and skipped, the rest still receive the message.
type Dispatcher struct {
	log      log15.Logger
	prefixes func() []string

	mut        sync.RWMutex
	priority   []entry
	handlers   []entry
	nextID     uint64
	permission Permission
	auditor    Auditor
}

// NewDispatcher creates a dispatcher. prefixes is consulted for every message
// to find out which command prefixes are currently accepted, it may be nil.
func NewDispatcher(logger log15.Logger, prefixes func() []string) *Dispatcher {
	if logger == nil {
		logger = log15.New()
		logger.SetHandler(log15.DiscardHandler())
	}
	return &Dispatcher{
		log:      logger.New("pkg", "dispatch"),
		prefixes: prefixes,
	}
}

// SetPermission sets the permission collaborator, nil allows everything.
func (d *Dispatcher) SetPermission(p Permission) {
	d.mut.Lock()
	d.permission = p
	d.mut.Unlock()
}

// SetAuditor sets the auditor, nil disables auditing.
func (d *Dispatcher) SetAuditor(a Auditor) {
	d.mut.Lock()
	d.auditor = a
	d.mut.Unlock()
}

// Register adds a handler and returns an id to Unregister it with.
func (d *Dispatcher) Register(h Handler) uint64 {
	d.mut.Lock()
	defer d.mut.Unlock()
	d.nextID++
	d.handlers = append(d.handlers, entry{d.nextID, h})
	return d.nextID
}

// RegisterPriority adds a handler that is called before all normal handlers.
// It's meant for connection bookkeeping.
func (d *Dispatcher) RegisterPriority(h Handler) uint64 {
	d.mut.Lock()
	defer d.mut.Unlock()
	d.nextID++
	d.priority = append(d.priority, entry{d.nextID, h})
	return d.nextID
}

// Unregister removes the handler registered under id, reporting whether it
// was found.
func (d *Dispatcher) Unregister(id uint64) bool {
	d.mut.Lock()
	defer d.mut.Unlock()

	for _, list := range []*[]entry{&d.priority, &d.handlers} {
		for i, e := range *list {
			if e.id == id {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return true
			}
		}
	}
	return false
}

// snapshot copies the handler lists so handlers may register or unregister
// while a message is being dispatched.
func (d *Dispatcher) snapshot() ([]entry, Permission, Auditor) {
	d.mut.RLock()
	defer d.mut.RUnlock()
	all := make([]entry, 0, len(d.priority)+len(d.handlers))
	all = append(all, d.priority...)
	all = append(all, d.handlers...)
	return all, d.permission, d.auditor
}

// Dispatch delivers m to every handler. Command detection happens here,
// before any handler sees the message.
func (d *Dispatcher) Dispatch(w irc.Writer, m *irc.Message) {
	var prefixes []string
	if d.prefixes != nil {
		prefixes = d.prefixes()
	}
	parse.Command(m, prefixes)

	handlers, permission, auditor := d.snapshot()
	for _, e := range handlers {
		d.deliver(w, m, e.handler)
		if th, ok := e.handler.(TriggerHandler); ok && m.IsCommand {
			d.trigger(w, m, th, permission)
		}
	}

	if auditor != nil && len(m.RespondedTrigger()) > 0 {
		if err := auditor.Audit(m); err != nil {
			d.log.Error("Audit failed", "err", err)
		}
	}
}

// deliver calls every callback h implements for the kind of m.
func (d *Dispatcher) deliver(w irc.Writer, m *irc.Message, h Handler) {
	if eh, ok := h.(EventHandler); ok {
		d.protect(m, "raw", func() error { return eh.HandleRaw(w, m) })
	}

	var name string
	var call func() error

	switch m.Kind {
	case irc.KindPing:
		if x, ok := h.(PingHandler); ok {
			name, call = "ping", func() error { return x.Ping(w, m) }
		}
	case irc.KindError:
		if x, ok := h.(ServerErrorHandler); ok {
			name, call = "error", func() error { return x.ServerError(w, m) }
		}
	case irc.KindPrivmsg:
		if x, ok := h.(PrivmsgHandler); ok {
			name, call = "privmsg", func() error { return x.Privmsg(w, m) }
		}
	case irc.KindNotice:
		if x, ok := h.(NoticeHandler); ok {
			name, call = "notice", func() error { return x.Notice(w, m) }
		}
	case irc.KindCTCP:
		if x, ok := h.(CTCPHandler); ok {
			name, call = "ctcp", func() error { return x.CTCP(w, m) }
		}
	case irc.KindCTCPReply:
		if x, ok := h.(CTCPReplyHandler); ok {
			name, call = "ctcpreply", func() error { return x.CTCPReply(w, m) }
		}
	case irc.KindQuit:
		if x, ok := h.(QuitHandler); ok {
			name, call = "quit", func() error { return x.Quit(w, m) }
		}
	case irc.KindNick:
		if x, ok := h.(NickHandler); ok {
			name, call = "nick", func() error { return x.Nick(w, m) }
		}
	case irc.KindNumeric:
		if x, ok := h.(NumericHandler); ok {
			name, call = "numeric", func() error { return x.Numeric(w, m) }
		}
	case irc.KindNamed:
		name, call = namedCall(w, m, h)
	}

	if call != nil {
		d.protect(m, name, call)
	}
}

// namedCall picks the callback for a message without a dedicated kind.
func namedCall(w irc.Writer, m *irc.Message, h Handler) (string, func() error) {
	switch {
	case m.Is(irc.JOIN):
		if x, ok := h.(JoinHandler); ok {
			return "join", func() error { return x.Join(w, m) }
		}
	case m.Is(irc.PART):
		if x, ok := h.(PartHandler); ok {
			return "part", func() error { return x.Part(w, m) }
		}
	}

	if x, ok := h.(NamedHandler); ok {
		return "named", func() error { return x.Named(w, m) }
	}
	return "", nil
}

// trigger runs the trigger for m's command if th has one and the sender is
// permitted. A failing trigger answers the sender with the error.
func (d *Dispatcher) trigger(w irc.Writer, m *irc.Message, th TriggerHandler,
	permission Permission) {

	triggers := th.TriggerMap()
	if triggers == nil {
		return
	}
	fn, ok := triggers.Lookup(m.Command)
	if !ok {
		return
	}

	word := strings.ToLower(m.Command)
	if permission != nil && !permission.HasPermission(m, word) {
		d.log.Debug("Permission denied", "trigger", word, "nick", m.Nick)
		return
	}

	err := d.protect(m, "trigger "+word, func() error { return fn(w, m) })
	if err != nil {
		if werr := w.Send(m.ResponseTarget(), ErrorText(m, err), false); werr != nil {
			d.log.Error("Failed to report trigger error", "err", werr)
		}
		return
	}

	m.MarkResponded(word)
}

// protect runs fn, turning a panic into an error. Errors are logged and
// returned.
func (d *Dispatcher) protect(m *irc.Message, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
			d.log.Error("Handler panic", "callback", name, "kind", m.Kind,
				"panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err = fn(); err != nil {
		d.log.Error("Handler error", "callback", name, "kind", m.Kind, "err", err)
	}
	return err
}

// Connect tells every ConnectHandler that we're registered on the server.
func (d *Dispatcher) Connect(w irc.Writer) {
	handlers, _, _ := d.snapshot()
	m := &irc.Message{Name: "connect"}
	for _, e := range handlers {
		if ch, ok := e.handler.(ConnectHandler); ok {
			d.protect(m, "connect", func() error { return ch.OnConnect(w) })
		}
	}
}

// Disconnect tells every DisconnectHandler the connection is gone.
func (d *Dispatcher) Disconnect() {
	handlers, _, _ := d.snapshot()
	m := &irc.Message{Name: "disconnect"}
	for _, e := range handlers {
		if dh, ok := e.handler.(DisconnectHandler); ok {
			d.protect(m, "disconnect", dh.OnDisconnect)
		}
	}
}

// ErrorText turns a trigger error into the line shown to the user: the first
// line of the error without any "Source::method: " prefix, addressed to the
// nick when said in a channel.
func ErrorText(m *irc.Message, err error) string {
	text := err.Error()
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = rgxErrSource.ReplaceAllString(text, "")

	if m.InChannel() {
		text = m.Nick + ": " + text
	}
	return text
}
