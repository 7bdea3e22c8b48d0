package main

import (
	"github.com/aarondl/triggerbot/data"
	"github.com/aarondl/triggerbot/dispatch"
	"github.com/aarondl/triggerbot/irc"
	"github.com/pkg/errors"
)

const (
	errMsgNotChannel = "Must be a channel that the bot is on."
	errMsgNoFlags    = "Access denied. You need one of the flags: ov"
)

// autoOp gives channel modes to known users: +o for the o flag, +v for the
// v flag. It does so when they join and on request with the up trigger.
type autoOp struct {
	*dispatch.Triggers
	user func(*irc.Message) *data.StoredUser
}

func newAutoOp(user func(*irc.Message) *data.StoredUser) *autoOp {
	a := &autoOp{Triggers: dispatch.NewTriggers(), user: user}
	a.Register("up", a.up)
	return a
}

// Join implements dispatch.JoinHandler.
func (a *autoOp) Join(w irc.Writer, m *irc.Message) error {
	_, err := putPeopleUp(w, m.Target, m.Nick, a.user(m))
	return err
}

func (a *autoOp) up(w irc.Writer, m *irc.Message) error {
	if !m.InChannel() {
		return errors.New(errMsgNotChannel)
	}
	ok, err := putPeopleUp(w, m.Target, m.Nick, a.user(m))
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errMsgNoFlags)
	}
	return nil
}

// putPeopleUp sets the best mode the user's flags allow, reporting whether
// there was one.
func putPeopleUp(w irc.Writer, channel, nick string, user *data.StoredUser) (bool, error) {
	if user == nil {
		return false, nil
	}

	var mode string
	switch {
	case user.Access.HasFlag('o'):
		mode = "+o"
	case user.Access.HasFlag('v'):
		mode = "+v"
	default:
		return false, nil
	}

	err := w.Rawf("%s %s %s :%s", irc.MODE, channel, mode, nick)
	return true, errors.Wrapf(err, "autoop: %s %s", mode, nick)
}
