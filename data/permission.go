package data

import (
	"strings"
	"sync"

	"github.com/aarondl/triggerbot/irc"
)

// Permission decides who may run which trigger. Triggers nobody called
// Require for are open to everyone. For the rest the sender must be logged
// in, either by host through Store.AuthUser or by a services account that
// names a stored user, and have at least the required level.
type Permission struct {
	store *Store
	state *State

	protect  sync.RWMutex
	required map[string]uint8
}

// NewPermission creates a permission checker. state may be nil, then only
// host logins count.
func NewPermission(store *Store, state *State) *Permission {
	return &Permission{
		store:    store,
		state:    state,
		required: make(map[string]uint8),
	}
}

// Require sets the level needed to run trigger.
func (p *Permission) Require(trigger string, level uint8) {
	p.protect.Lock()
	p.required[strings.ToLower(trigger)] = level
	p.protect.Unlock()
}

// Required returns the level needed for trigger, ok is false when the
// trigger is open to everyone.
func (p *Permission) Required(trigger string) (level uint8, ok bool) {
	p.protect.RLock()
	defer p.protect.RUnlock()
	level, ok = p.required[strings.ToLower(trigger)]
	return level, ok
}

// User finds the stored user behind a message's sender.
func (p *Permission) User(m *irc.Message) *StoredUser {
	if user := p.store.AuthedUser(m.Sender()); user != nil {
		return user
	}

	if p.state == nil {
		return nil
	}
	account, known := p.state.Account(m.Nick)
	if !known || len(account) == 0 {
		return nil
	}
	user, err := p.store.FindUser(account)
	if err != nil {
		return nil
	}
	return user
}

// HasPermission implements dispatch.Permission.
func (p *Permission) HasPermission(m *irc.Message, trigger string) bool {
	level, ok := p.Required(trigger)
	if !ok {
		return true
	}

	user := p.User(m)
	return user != nil && user.Access.HasLevel(level)
}
