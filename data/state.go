/*
Package data turns the messages seen on a connection into a roster of
channels and users, and keeps the access store and trigger audit log.
*/
package data

import (
	"sort"
	"strings"
	"sync"

	"github.com/aarondl/triggerbot/irc"
)

// User is someone we share a channel with, or have whois'd.
type User struct {
	Nick  string
	Ident string
	Host  string
	// Account is the services account from a 330, empty if not logged in or
	// unknown. AccountKnown tells the two apart.
	Account      string
	AccountKnown bool
	// Registered is set by a 307.
	Registered bool
}

// Fullhost returns nick!ident@host, or the nick when the rest is unknown.
func (u User) Fullhost() string {
	if len(u.Ident) == 0 && len(u.Host) == 0 {
		return u.Nick
	}
	return u.Nick + "!" + u.Ident + "@" + u.Host
}

// Channel is a channel we are in.
type Channel struct {
	Name  string
	Topic string
}

// State is the roster for one connection.
type State struct {
	protect sync.RWMutex

	info *irc.NetworkInfo
	self string

	channels     map[string]*Channel
	users        map[string]*User
	channelUsers map[string]map[string]struct{}
	userChannels map[string]map[string]struct{}
}

// NewState creates an empty roster.
func NewState() *State {
	s := &State{info: irc.NewNetworkInfo()}
	s.reset()
	return s
}

func (s *State) reset() {
	s.channels = make(map[string]*Channel)
	s.users = make(map[string]*User)
	s.channelUsers = make(map[string]map[string]struct{})
	s.userChannels = make(map[string]map[string]struct{})
}

// Reset forgets everything, used when the connection drops.
func (s *State) Reset() {
	s.protect.Lock()
	s.reset()
	s.info = irc.NewNetworkInfo()
	s.protect.Unlock()
}

// Info is what the server said about itself.
func (s *State) Info() *irc.NetworkInfo {
	s.protect.RLock()
	defer s.protect.RUnlock()
	return s.info
}

// SetSelf tells the state which nick is ours.
func (s *State) SetSelf(nick string) {
	s.protect.Lock()
	s.self = irc.Fold(nick)
	s.protect.Unlock()
}

// Update applies a message to the roster.
func (s *State) Update(m *irc.Message) {
	s.protect.Lock()
	defer s.protect.Unlock()

	switch m.Kind {
	case irc.KindNick:
		if len(m.Params) > 0 {
			s.rename(m.Nick, m.Params[0])
		}
	case irc.KindQuit:
		s.removeUser(m.Nick)
	case irc.KindNumeric:
		s.numeric(m)
	case irc.KindNamed:
		switch {
		case m.Is(irc.JOIN):
			s.join(m.Target, m.Nick, m.Ident, m.Host)
		case m.Is(irc.PART):
			s.part(m.Target, m.Nick)
		case m.Is(irc.KICK):
			if len(m.Params) > 0 {
				s.part(m.Target, m.Params[0])
			}
		case m.Is(irc.TOPIC):
			if ch, ok := s.channels[irc.Fold(m.Target)]; ok {
				ch.Topic = m.Text()
			}
		}
	}
}

func (s *State) numeric(m *irc.Message) {
	p := m.Params

	switch m.Numeric {
	case irc.RPL_MYINFO:
		s.info.ParseMyInfo(m)
	case irc.RPL_ISUPPORT:
		s.info.ParseISupport(m)
	case irc.RPL_WHOREPLY:
		// <chan> <ident> <host> <server> <nick> <flags> :<hops> <realname>
		if len(p) < 5 {
			return
		}
		u := s.ensureUser(p[4])
		u.Ident, u.Host = p[1], p[2]
		if _, ok := s.channels[irc.Fold(p[0])]; ok {
			s.addToChannel(p[0], p[4])
		}
	case irc.RPL_NAMREPLY:
		// <type> <chan> :<names>
		if len(p) < 3 {
			return
		}
		if _, ok := s.channels[irc.Fold(p[1])]; !ok {
			return
		}
		for _, name := range p[2:] {
			name = s.info.StripPrefix(name)
			nick, ident, host, ok := irc.Split(name)
			if !ok {
				nick = name
			}
			u := s.ensureUser(nick)
			if ok {
				u.Ident, u.Host = ident, host
			}
			s.addToChannel(p[1], nick)
		}
	case irc.RPL_WHOISREGNICK:
		if len(p) > 0 {
			s.ensureUser(p[0]).Registered = true
		}
	case irc.RPL_WHOISACCOUNT:
		if len(p) > 1 {
			u := s.ensureUser(p[0])
			u.Account, u.AccountKnown = p[1], true
		}
	case irc.RPL_ENDOFWHOIS:
		if len(p) > 0 {
			if u, ok := s.users[irc.Fold(p[0])]; ok {
				u.AccountKnown = true
			}
		}
	}
}

func (s *State) ensureUser(nick string) *User {
	key := irc.Fold(nick)
	u, ok := s.users[key]
	if !ok {
		u = &User{Nick: nick}
		s.users[key] = u
	}
	return u
}

func (s *State) join(channel, nick, ident, host string) {
	key := irc.Fold(channel)
	if irc.Fold(nick) == s.self {
		if _, ok := s.channels[key]; !ok {
			s.channels[key] = &Channel{Name: channel}
		}
	} else if _, ok := s.channels[key]; !ok {
		return
	}

	u := s.ensureUser(nick)
	if len(ident) > 0 {
		u.Ident, u.Host = ident, host
	}
	s.addToChannel(channel, nick)
}

func (s *State) addToChannel(channel, nick string) {
	ch, n := irc.Fold(channel), irc.Fold(nick)

	if s.channelUsers[ch] == nil {
		s.channelUsers[ch] = make(map[string]struct{})
	}
	s.channelUsers[ch][n] = struct{}{}

	if s.userChannels[n] == nil {
		s.userChannels[n] = make(map[string]struct{})
	}
	s.userChannels[n][ch] = struct{}{}
}

func (s *State) part(channel, nick string) {
	ch, n := irc.Fold(channel), irc.Fold(nick)

	if n == s.self {
		for other := range s.channelUsers[ch] {
			s.leave(ch, other)
		}
		delete(s.channelUsers, ch)
		delete(s.channels, ch)
		return
	}

	s.leave(ch, n)
}

// leave removes a folded nick from a folded channel, dropping the user
// once they share no channels with us.
func (s *State) leave(ch, n string) {
	delete(s.channelUsers[ch], n)
	delete(s.userChannels[n], ch)
	if len(s.userChannels[n]) == 0 {
		delete(s.userChannels, n)
		if n != s.self {
			delete(s.users, n)
		}
	}
}

func (s *State) removeUser(nick string) {
	n := irc.Fold(nick)
	for ch := range s.userChannels[n] {
		delete(s.channelUsers[ch], n)
	}
	delete(s.userChannels, n)
	delete(s.users, n)
}

func (s *State) rename(oldNick, newNick string) {
	o, n := irc.Fold(oldNick), irc.Fold(newNick)
	if o == s.self {
		s.self = n
	}

	u, ok := s.users[o]
	if !ok {
		return
	}
	delete(s.users, o)
	u.Nick = newNick
	s.users[n] = u

	chans := s.userChannels[o]
	delete(s.userChannels, o)
	if chans == nil {
		return
	}
	s.userChannels[n] = chans
	for ch := range chans {
		delete(s.channelUsers[ch], o)
		s.channelUsers[ch][n] = struct{}{}
	}
}

// User looks up a user by nick or nick!ident@host.
func (s *State) User(nickorhost string) (User, bool) {
	s.protect.RLock()
	defer s.protect.RUnlock()

	u, ok := s.users[irc.Fold(irc.Nick(nickorhost))]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Account returns the services account of nick. known is false until a
// whois for the nick finished.
func (s *State) Account(nick string) (account string, known bool) {
	u, ok := s.User(nick)
	if !ok {
		return "", false
	}
	return u.Account, u.AccountKnown
}

// Channel looks up a channel we're in.
func (s *State) Channel(name string) (Channel, bool) {
	s.protect.RLock()
	defer s.protect.RUnlock()

	ch, ok := s.channels[irc.Fold(name)]
	if !ok {
		return Channel{}, false
	}
	return *ch, true
}

// Channels lists the channels we're in.
func (s *State) Channels() []string {
	s.protect.RLock()
	defer s.protect.RUnlock()

	names := make([]string, 0, len(s.channels))
	for _, ch := range s.channels {
		names = append(names, ch.Name)
	}
	sort.Strings(names)
	return names
}

// ChannelUsers lists the nicks in a channel.
func (s *State) ChannelUsers(channel string) []string {
	s.protect.RLock()
	defer s.protect.RUnlock()

	var nicks []string
	for n := range s.channelUsers[irc.Fold(channel)] {
		if u, ok := s.users[n]; ok {
			nicks = append(nicks, u.Nick)
		}
	}
	sort.Slice(nicks, func(i, j int) bool {
		return strings.ToLower(nicks[i]) < strings.ToLower(nicks[j])
	})
	return nicks
}

// UserChannels lists the channels we share with nick.
func (s *State) UserChannels(nick string) []string {
	s.protect.RLock()
	defer s.protect.RUnlock()

	var names []string
	for ch := range s.userChannels[irc.Fold(nick)] {
		if c, ok := s.channels[ch]; ok {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// IsOn checks if nick is in channel.
func (s *State) IsOn(channel, nick string) bool {
	s.protect.RLock()
	defer s.protect.RUnlock()

	_, ok := s.channelUsers[irc.Fold(channel)][irc.Fold(nick)]
	return ok
}

// NUsers is how many users are tracked.
func (s *State) NUsers() int {
	s.protect.RLock()
	defer s.protect.RUnlock()
	return len(s.users)
}

// NChannels is how many channels we're in.
func (s *State) NChannels() int {
	s.protect.RLock()
	defer s.protect.RUnlock()
	return len(s.channels)
}
