package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aarondl/triggerbot/data"
	"github.com/aarondl/triggerbot/dispatch"
	"github.com/aarondl/triggerbot/irc"
	"github.com/pkg/errors"
)

const (
	register = `register`
	auth     = `auth`
	logout   = `logout`
	whoami   = `whoami`
	access   = `access`
	deluser  = `deluser`
	passwd   = `passwd`
	masks    = `masks`
	addmask  = `addmask`
	delmask  = `delmask`

	// adminLevel is what access and deluser require.
	adminLevel uint8 = 100
	// firstUserLevel is given to the very first registered user.
	firstUserLevel uint8 = 255
	allLetters           = `abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ`

	errMsgInternal  = `There was an internal error, try again later.`
	errFmtInternal  = `bot: Error processing command %v`
	errMsgAuthed    = `You are already authenticated.`
	errMsgNotAuthed = `You are not authenticated.`
	errMsgPrivate   = `That command only works in a private message.`
	errFmtUsage     = `Usage: %v`

	errFmtUserNotFound = `The user [%v] could not be found.`
	errMsgBadPassword  = `Invalid password.`
	errMsgBadHost      = `Your host is not allowed to use that account.`

	registerUsage        = `register <username> <password>`
	registerSuccess      = `Registered [%v] successfully. You have been automatically authenticated.`
	registerSuccessFirst = `Registered [%v] successfully. As the first user, ` +
		`you have been given all permissions and privileges as well as being ` +
		`automatically authenticated. \o/`
	registerFailure = `The username [%v] is already registered.`
	authUsage       = `auth <username> <password>`
	authSuccess     = `Successfully authenticated [%v].`
	logoutSuccess   = `Successfully logged out.`
	whoamiSuccess   = `You are [%v], access: %v`
	accessUsage     = `access <username> [level] [flags]`
	accessSuccess   = `Access for [%v]: %v`
	deluserUsage    = `deluser <username>`
	deluserSuccess  = `Removed user [%v].`
	passwdUsage     = `passwd <oldpassword> <newpassword>`
	passwdSuccess   = `Successfully updated your password.`
	passwdFailure   = `Old password did not match the current password.`
	masksSuccess    = `Masks: %v`
	masksFailure    = `No masks set.`
	maskUsage       = `%v <mask>`
	addmaskSuccess  = `Host [%v] added successfully.`
	addmaskFailure  = `Host [%v] already exists.`
	delmaskSuccess  = `Host [%v] removed successfully.`
	delmaskFailure  = `Host [%v] not found.`
)

// coreCommands are the bot's own triggers, they manage the accounts in the
// access store. Answers go to the caller as notices, failures are returned
// so the dispatcher reports them.
type coreCommands struct {
	*dispatch.Triggers
	bot *Bot
}

// newCoreCommands creates the core triggers and sets their requirements.
func newCoreCommands(b *Bot) *coreCommands {
	c := &coreCommands{Triggers: dispatch.NewTriggers(), bot: b}

	c.Register(register, c.register)
	c.Register(auth, c.auth)
	c.Register(logout, c.logout)
	c.Register(whoami, c.whoami)
	c.Register(access, c.access)
	c.Register(deluser, c.deluser)
	c.Register(passwd, c.passwd)
	c.Register(masks, c.masks)
	c.Register(addmask, c.addmask)
	c.Register(delmask, c.delmask)

	b.permission.Require(access, adminLevel)
	b.permission.Require(deluser, adminLevel)
	b.audit.Redact(register, auth, passwd)

	return c
}

// internal logs the real error and hands the user something vague.
func (c *coreCommands) internal(m *irc.Message, err error) error {
	c.bot.Error(errors.Wrapf(err, errFmtInternal, m.Command).Error(), "nick", m.Nick)
	return errors.New(errMsgInternal)
}

// authed returns the user logged in from the message's host.
func (c *coreCommands) authed(m *irc.Message) (*data.StoredUser, error) {
	user := c.bot.store.AuthedUser(m.Sender())
	if user == nil {
		return nil, errors.New(errMsgNotAuthed)
	}
	return user, nil
}

func usage(format string) error {
	return errors.Errorf(errFmtUsage, format)
}

func (c *coreCommands) register(w irc.Writer, m *irc.Message) error {
	if m.InChannel() {
		return errors.New(errMsgPrivate)
	}
	if len(m.CommandParams) != 2 {
		return usage(registerUsage)
	}
	if c.bot.store.AuthedUser(m.Sender()) != nil {
		return errors.New(errMsgAuthed)
	}

	store := c.bot.store
	username, password := m.CommandParams[0], m.CommandParams[1]

	existing, err := store.Usernames()
	if err != nil {
		return c.internal(m, err)
	}
	first := len(existing) == 0

	user, err := data.NewStoredUser(username, password)
	if err != nil {
		return c.internal(m, err)
	}
	if first {
		user.Access = data.NewAccess(firstUserLevel, allLetters)
	}

	if err = store.AddUser(user); err == data.ErrUserExists {
		return errors.Errorf(registerFailure, user.Username)
	} else if err != nil {
		return c.internal(m, err)
	}

	if _, err = store.AuthUser(m.Sender(), username, password); err != nil {
		return c.internal(m, err)
	}

	reply := registerSuccess
	if first {
		reply = registerSuccessFirst
	}
	return w.Notice(m.Nick, fmt.Sprintf(reply, user.Username))
}

func (c *coreCommands) auth(w irc.Writer, m *irc.Message) error {
	if m.InChannel() {
		return errors.New(errMsgPrivate)
	}
	if len(m.CommandParams) != 2 {
		return usage(authUsage)
	}
	if c.bot.store.AuthedUser(m.Sender()) != nil {
		return errors.New(errMsgAuthed)
	}

	username := m.CommandParams[0]
	user, err := c.bot.store.AuthUser(m.Sender(), username, m.CommandParams[1])
	switch err {
	case nil:
	case data.ErrUserNotFound:
		return errors.Errorf(errFmtUserNotFound, username)
	case data.ErrUserBadPassword:
		return errors.New(errMsgBadPassword)
	case data.ErrUserBadHost:
		return errors.New(errMsgBadHost)
	default:
		return c.internal(m, err)
	}

	return w.Notice(m.Nick, fmt.Sprintf(authSuccess, user.Username))
}

func (c *coreCommands) logout(w irc.Writer, m *irc.Message) error {
	if _, err := c.authed(m); err != nil {
		return err
	}
	c.bot.store.Logout(m.Sender())
	return w.Notice(m.Nick, logoutSuccess)
}

func (c *coreCommands) whoami(w irc.Writer, m *irc.Message) error {
	user := c.bot.permission.User(m)
	if user == nil {
		return errors.New(errMsgNotAuthed)
	}
	return w.Notice(m.Nick, fmt.Sprintf(whoamiSuccess, user.Username, user.Access))
}

// access shows a user's access, or sets the level and adds flags when they
// are given.
func (c *coreCommands) access(w irc.Writer, m *irc.Message) error {
	args := m.CommandParams
	if len(args) < 1 || len(args) > 3 {
		return usage(accessUsage)
	}

	store := c.bot.store
	user, err := store.FindUser(args[0])
	if err != nil {
		return c.internal(m, err)
	}
	if user == nil {
		return errors.Errorf(errFmtUserNotFound, args[0])
	}

	if len(args) > 1 {
		level, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return usage(accessUsage)
		}
		user = user.Clone()
		user.Access.Level = uint8(level)
		if len(args) > 2 {
			user.Access.SetFlags(args[2])
		}
		if err = store.SaveUser(user); err != nil {
			return c.internal(m, err)
		}
	}

	return w.Notice(m.Nick, fmt.Sprintf(accessSuccess, user.Username, user.Access))
}

func (c *coreCommands) deluser(w irc.Writer, m *irc.Message) error {
	if len(m.CommandParams) != 1 {
		return usage(deluserUsage)
	}

	username := m.CommandParams[0]
	removed, err := c.bot.store.RemoveUser(username)
	if err != nil {
		return c.internal(m, err)
	}
	if !removed {
		return errors.Errorf(errFmtUserNotFound, username)
	}
	return w.Notice(m.Nick, fmt.Sprintf(deluserSuccess, strings.ToLower(username)))
}

func (c *coreCommands) passwd(w irc.Writer, m *irc.Message) error {
	if m.InChannel() {
		return errors.New(errMsgPrivate)
	}
	user, err := c.authed(m)
	if err != nil {
		return err
	}
	if len(m.CommandParams) != 2 {
		return usage(passwdUsage)
	}

	if !user.VerifyPassword(m.CommandParams[0]) {
		return errors.New(passwdFailure)
	}
	user = user.Clone()
	if err = user.SetPassword(m.CommandParams[1]); err != nil {
		return c.internal(m, err)
	}
	if err = c.bot.store.SaveUser(user); err != nil {
		return c.internal(m, err)
	}
	return w.Notice(m.Nick, passwdSuccess)
}

func (c *coreCommands) masks(w irc.Writer, m *irc.Message) error {
	user, err := c.authed(m)
	if err != nil {
		return err
	}
	if len(user.Masks) == 0 {
		return w.Notice(m.Nick, masksFailure)
	}
	return w.Notice(m.Nick, fmt.Sprintf(masksSuccess, strings.Join(user.Masks, " ")))
}

func (c *coreCommands) addmask(w irc.Writer, m *irc.Message) error {
	return c.editMask(w, m, addmask)
}

func (c *coreCommands) delmask(w irc.Writer, m *irc.Message) error {
	return c.editMask(w, m, delmask)
}

// editMask adds or removes a mask of the authed user.
func (c *coreCommands) editMask(w irc.Writer, m *irc.Message, which string) error {
	user, err := c.authed(m)
	if err != nil {
		return err
	}
	if len(m.CommandParams) != 1 {
		return errors.Errorf(errFmtUsage, fmt.Sprintf(maskUsage, which))
	}

	mask := m.CommandParams[0]
	user = user.Clone()
	var changed bool
	var success, failure string
	if which == addmask {
		changed, success, failure = user.AddMask(mask), addmaskSuccess, addmaskFailure
	} else {
		changed, success, failure = user.DelMask(mask), delmaskSuccess, delmaskFailure
	}
	if !changed {
		return errors.Errorf(failure, mask)
	}

	if err = c.bot.store.SaveUser(user); err != nil {
		return c.internal(m, err)
	}
	return w.Notice(m.Nick, fmt.Sprintf(success, mask))
}
