package parse

import (
	"github.com/aarondl/triggerbot/irc"
	. "gopkg.in/check.v1"
)

func mustParse(c *C, line string) *irc.Message {
	m, err := Parse(line)
	c.Assert(err, IsNil)
	return m
}

func (s *s) TestCommand_Prefix(c *C) {
	m := mustParse(c, ":a!b@c PRIVMSG #chan :!Weather  london uk")
	c.Check(Command(m, []string{".", "!"}), Equals, true)
	c.Check(m.IsCommand, Equals, true)
	c.Check(m.Command, Equals, "Weather")
	c.Check(m.CommandParams, DeepEquals, []string{"london", "uk"})
}

func (s *s) TestCommand_NickPrefix(c *C) {
	m := mustParse(c, ":a!b@c PRIVMSG #chan :bot: help me")
	c.Check(Command(m, []string{"!", "Bot:", "Bot,"}), Equals, true)
	c.Check(m.Command, Equals, "help")
	c.Check(m.CommandParams, DeepEquals, []string{"me"})
}

func (s *s) TestCommand_NoPrefixInChannel(c *C) {
	m := mustParse(c, ":a!b@c PRIVMSG #chan :status")
	c.Check(Command(m, []string{"!"}), Equals, false)
	c.Check(m.IsCommand, Equals, false)
	c.Check(m.Command, Equals, "")

	m = mustParse(c, ":a!b@c PRIVMSG #chan :!")
	c.Check(Command(m, []string{"!"}), Equals, false)
}

func (s *s) TestCommand_Query(c *C) {
	m := mustParse(c, ":a!b@c PRIVMSG Bot :status")
	c.Check(Command(m, []string{"!"}), Equals, true)
	c.Check(m.IsCommand, Equals, true)
	c.Check(m.Command, Equals, "status")
	c.Check(len(m.CommandParams), Equals, 0)

	m = mustParse(c, ":a!b@c PRIVMSG Bot :!status now")
	c.Check(Command(m, []string{"!"}), Equals, true)
	c.Check(m.Command, Equals, "status")
	c.Check(m.CommandParams, DeepEquals, []string{"now"})
}

func (s *s) TestCommand_NotPrivmsg(c *C) {
	for _, line := range []string{
		":a!b@c NOTICE Bot :status",
		":a!b@c PRIVMSG Bot :\x01ACTION status\x01",
		":a!b@c PRIVMSG Bot :\x01VERSION\x01",
		":a!b@c JOIN #chan",
	} {
		m := mustParse(c, line)
		c.Check(Command(m, []string{"!"}), Equals, false, Commentf("%s", line))
		c.Check(m.IsCommand, Equals, false)
	}
}
