package data

import (
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) } //Hook into testing package
type s struct{}

var _ = Suite(&s{})

// joined returns a state where we (Bot) are in #chan with nick1 and nick2.
func joined(c *C) *State {
	st := NewState()
	st.SetSelf("Bot")
	for _, line := range []string{
		":Bot!bot@me.com JOIN :#chan",
		":irc.net 353 Bot = #chan :@Bot nick1 +nick2",
		":nick1!user1@host1 PRIVMSG #chan :hi",
	} {
		m := mustParse(c, line)
		st.Update(m)
	}
	return st
}

func (s *s) TestState_SelfJoin(c *C) {
	st := joined(c)

	c.Check(st.NChannels(), Equals, 1)
	c.Check(st.Channels(), DeepEquals, []string{"#chan"})
	c.Check(st.ChannelUsers("#CHAN"), DeepEquals, []string{"Bot", "nick1", "nick2"})
	c.Check(st.IsOn("#chan", "nick2"), Equals, true)
	c.Check(st.UserChannels("nick1"), DeepEquals, []string{"#chan"})

	u, ok := st.User("Bot")
	c.Check(ok, Equals, true)
	c.Check(u.Fullhost(), Equals, "Bot!bot@me.com")
}

func (s *s) TestState_OthersJoinOnlyTrackedChannels(c *C) {
	st := joined(c)

	st.Update(mustParse(c, ":nick3!u3@h3 JOIN :#chan"))
	st.Update(mustParse(c, ":nick4!u4@h4 JOIN :#elsewhere"))

	c.Check(st.IsOn("#chan", "nick3"), Equals, true)
	u, ok := st.User("nick3!u3@h3")
	c.Check(ok, Equals, true)
	c.Check(u.Host, Equals, "h3")

	_, ok = st.User("nick4")
	c.Check(ok, Equals, false)
	_, ok = st.Channel("#elsewhere")
	c.Check(ok, Equals, false)
}

func (s *s) TestState_PartKickQuit(c *C) {
	st := joined(c)

	st.Update(mustParse(c, ":nick1!user1@host1 PART #chan"))
	c.Check(st.IsOn("#chan", "nick1"), Equals, false)
	_, ok := st.User("nick1")
	c.Check(ok, Equals, false)

	st.Update(mustParse(c, ":Bot!bot@me.com KICK #chan nick2 :bye"))
	c.Check(st.IsOn("#chan", "nick2"), Equals, false)

	st.Update(mustParse(c, ":nick3!u@h JOIN :#chan"))
	st.Update(mustParse(c, ":nick3!u@h QUIT :gone"))
	c.Check(st.IsOn("#chan", "nick3"), Equals, false)
	c.Check(st.NUsers(), Equals, 1)
}

func (s *s) TestState_SelfPart(c *C) {
	st := joined(c)

	st.Update(mustParse(c, ":Bot!bot@me.com PART #chan"))
	c.Check(st.NChannels(), Equals, 0)
	c.Check(st.ChannelUsers("#chan"), HasLen, 0)
	_, ok := st.User("nick2")
	c.Check(ok, Equals, false)
}

func (s *s) TestState_Nick(c *C) {
	st := joined(c)

	st.Update(mustParse(c, ":nick1!user1@host1 NICK :renamed"))
	c.Check(st.IsOn("#chan", "nick1"), Equals, false)
	c.Check(st.IsOn("#chan", "renamed"), Equals, true)
	u, ok := st.User("renamed")
	c.Check(ok, Equals, true)
	c.Check(u.Nick, Equals, "renamed")
	c.Check(u.Ident, Equals, "user1")

	// Our own nick changes are followed too.
	st.Update(mustParse(c, ":Bot!bot@me.com NICK :Bot2"))
	st.Update(mustParse(c, ":Bot2!bot@me.com JOIN :#second"))
	c.Check(st.Channels(), DeepEquals, []string{"#chan", "#second"})
}

func (s *s) TestState_Who(c *C) {
	st := joined(c)

	st.Update(mustParse(c,
		":irc.net 352 Bot #chan ident2 host2 irc.net nick2 H :0 Real Name"))
	u, ok := st.User("nick2")
	c.Check(ok, Equals, true)
	c.Check(u.Fullhost(), Equals, "nick2!ident2@host2")

	// Malformed replies are ignored.
	st.Update(mustParse(c, ":irc.net 352 Bot #chan ident"))
}

func (s *s) TestState_NamesPrefixes(c *C) {
	st := NewState()
	st.SetSelf("Bot")
	st.Update(mustParse(c, ":irc.net 005 Bot PREFIX=(qov)~@+ :are supported"))
	st.Update(mustParse(c, ":Bot!b@h JOIN :#chan"))
	st.Update(mustParse(c, ":irc.net 353 Bot = #chan :~@owner +voice plain!id@host"))

	c.Check(st.ChannelUsers("#chan"), DeepEquals,
		[]string{"Bot", "owner", "plain", "voice"})
	u, _ := st.User("plain")
	c.Check(u.Host, Equals, "host")

	// Names for channels we're not in are ignored.
	st.Update(mustParse(c, ":irc.net 353 Bot = #other :someone"))
	_, ok := st.User("someone")
	c.Check(ok, Equals, false)
}

func (s *s) TestState_Accounts(c *C) {
	st := joined(c)

	_, known := st.Account("nick1")
	c.Check(known, Equals, false)

	st.Update(mustParse(c, ":irc.net 307 Bot nick1 :is a registered nick"))
	st.Update(mustParse(c, ":irc.net 330 Bot nick1 acct1 :is logged in as"))
	st.Update(mustParse(c, ":irc.net 318 Bot nick1 :End of /WHOIS list."))
	account, known := st.Account("nick1")
	c.Check(known, Equals, true)
	c.Check(account, Equals, "acct1")
	u, _ := st.User("nick1")
	c.Check(u.Registered, Equals, true)

	// End of whois without a 330 means no account.
	st.Update(mustParse(c, ":irc.net 318 Bot nick2 :End of /WHOIS list."))
	account, known = st.Account("nick2")
	c.Check(known, Equals, true)
	c.Check(account, Equals, "")
}

func (s *s) TestState_Info(c *C) {
	st := NewState()
	st.Update(mustParse(c, ":irc.net 004 Bot irc.net ircd-1.0 io ntk"))
	c.Check(st.Info().ServerName(), Equals, "irc.net")
	c.Check(st.Info().IrcdVersion(), Equals, "ircd-1.0")

	st.Reset()
	c.Check(st.Info().ServerName(), Equals, "unknown")
}

func (s *s) TestState_Topic(c *C) {
	st := joined(c)
	st.Update(mustParse(c, ":nick1!user1@host1 TOPIC #chan :new topic here"))

	ch, ok := st.Channel("#chan")
	c.Check(ok, Equals, true)
	c.Check(ch.Topic, Equals, "new topic here")
}

func (s *s) TestState_Reset(c *C) {
	st := joined(c)
	st.Reset()
	c.Check(st.NChannels(), Equals, 0)
	c.Check(st.NUsers(), Equals, 0)
}
