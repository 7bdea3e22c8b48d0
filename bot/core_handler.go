package bot

import (
	"strings"
	"sync"
	"time"

	"github.com/aarondl/triggerbot/irc"
)

const (
	// versionReply answers a CTCP VERSION.
	versionReply = "triggerbot"
)

// coreHandler is the bot's priority handler. It keeps the connection
// registered, follows our own nick and address and feeds the roster before
// any other handler sees a message.
type coreHandler struct {
	bot *Bot

	// asked holds the folded nicks we sent a WHOIS for, so services
	// accounts are looked up once per nick.
	mut   sync.Mutex
	asked map[string]bool
}

func newCoreHandler(b *Bot) *coreHandler {
	return &coreHandler{bot: b, asked: make(map[string]bool)}
}

// HandleRaw implements dispatch.EventHandler.
func (c *coreHandler) HandleRaw(w irc.Writer, m *irc.Message) error {
	b := c.bot
	self := b.conn.Nickname()

	b.state.Update(m)

	switch m.Kind {
	case irc.KindPing:
		return w.Raw(irc.PONG + " :" + m.Text())
	case irc.KindError:
		b.Error("Server error", "msg", m.Text())
	case irc.KindCTCP:
		return c.ctcp(w, m)
	case irc.KindPrivmsg:
		if m.IsCommand && c.needsAccount(m) {
			return c.whois(w, m.Nick)
		}
	case irc.KindNick:
		if len(m.Params) == 0 {
			break
		}
		newNick := m.Params[0]
		c.forget(m.Nick, newNick)
		b.store.Rehost(m.Sender(), newNick+"!"+m.Ident+"@"+m.Host)
		if irc.Fold(m.Nick) == irc.Fold(self) {
			b.conn.SetNickname(newNick)
			b.state.SetSelf(newNick)
		}
	case irc.KindQuit:
		b.store.Logout(m.Sender())
		c.forget(m.Nick)
	case irc.KindNumeric:
		return c.numeric(w, m, self)
	case irc.KindNamed:
		switch {
		case m.Is(irc.JOIN) && irc.Fold(m.Nick) == irc.Fold(self):
			if len(m.Ident) > 0 && len(m.Host) > 0 {
				b.conn.SetAddress(m.Ident + "@" + m.Host)
			}
			return w.Rawf("%s %s", irc.WHO, m.Target)
		case m.Is(irc.JOIN):
			return c.whois(w, m.Nick)
		case m.Is(irc.PART):
			c.forget(m.Nick)
		case m.Is(irc.KICK) && len(m.Params) > 0:
			c.forget(m.Params[0])
		}
	}

	return nil
}

// numeric handles the replies that concern the connection itself.
func (c *coreHandler) numeric(w irc.Writer, m *irc.Message, self string) error {
	b := c.bot

	switch m.Numeric {
	case irc.RPL_WELCOME:
		if len(m.Target) > 0 {
			b.conn.SetNickname(m.Target)
			b.state.SetSelf(m.Target)
		}
		if len(m.Params) > 0 {
			last := m.Params[len(m.Params)-1]
			if _, ident, host, ok := irc.Split(last); ok {
				b.conn.SetAddress(ident + "@" + host)
			}
		}
		b.conn.PromoteNick()
		b.conn.PromoteServer()
		b.Info("Registered", "nick", b.conn.Nickname(), "server", b.conn.Server())
		b.dispatcher.Connect(w)
	case irc.ERR_NICKNAMEINUSE:
		_, err := b.conn.NextNick()
		return err
	case irc.RPL_WHOREPLY:
		// #chan ident host server nick ...
		if len(m.Params) >= 5 && irc.Fold(m.Params[4]) == irc.Fold(self) {
			b.conn.SetAddress(m.Params[1] + "@" + m.Params[2])
		}
	}

	return nil
}

// whois asks the server about nick unless its services account is already
// known or asked for. The reply fills in the roster's account.
func (c *coreHandler) whois(w irc.Writer, nick string) error {
	if _, known := c.bot.state.Account(nick); known {
		return nil
	}

	key := irc.Fold(nick)
	c.mut.Lock()
	if c.asked[key] {
		c.mut.Unlock()
		return nil
	}
	c.asked[key] = true
	c.mut.Unlock()

	return w.Rawf("%s %s", irc.WHOIS, nick)
}

// needsAccount is true when m's trigger has an access requirement and the
// sender is not logged in by host, so only a services account can help.
func (c *coreHandler) needsAccount(m *irc.Message) bool {
	if _, ok := c.bot.permission.Required(m.Command); !ok {
		return false
	}
	return c.bot.store.AuthedUser(m.Sender()) == nil
}

// forget allows nicks to be asked about again.
func (c *coreHandler) forget(nicks ...string) {
	c.mut.Lock()
	for _, nick := range nicks {
		delete(c.asked, irc.Fold(nick))
	}
	c.mut.Unlock()
}

// ctcp answers the CTCP requests every client is expected to.
func (c *coreHandler) ctcp(w irc.Writer, m *irc.Message) error {
	switch strings.ToUpper(m.CTCPVerb) {
	case irc.VERSION:
		return w.CTCPReply(m.Nick, irc.VERSION, versionReply)
	case irc.PING:
		return w.CTCPReply(m.Nick, irc.PING, m.Text())
	case irc.TIME:
		return w.CTCPReply(m.Nick, irc.TIME, time.Now().Format(time.RFC1123Z))
	}
	return nil
}

// OnConnect implements dispatch.ConnectHandler: joins the configured
// channels and sends the configured raw commands.
func (c *coreHandler) OnConnect(w irc.Writer) error {
	conf := c.bot.conf

	if len(conf.Channels) > 0 {
		if err := w.Join(conf.Channels...); err != nil {
			return err
		}
	}
	for _, cmd := range conf.OnConnect {
		if err := w.Raw(cmd); err != nil {
			return err
		}
	}
	return nil
}

// OnDisconnect implements dispatch.DisconnectHandler. Nothing we knew about
// the network is true anymore once we're gone.
func (c *coreHandler) OnDisconnect() error {
	c.bot.state.Reset()
	c.bot.store.LogoutAll()

	c.mut.Lock()
	c.asked = make(map[string]bool)
	c.mut.Unlock()
	return nil
}
