package data

import (
	"bytes"
	"encoding/gob"
	"strings"

	"github.com/aarondl/triggerbot/irc"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	// errMissingUnameOrPwd is given when the username or the password of
	// a user is empty string.
	errMissingUnameOrPwd = errors.New("data: Missing username or password")
	// errDuplicateMask is given when a duplicate mask is passed into the
	// NewStoredUser method.
	errDuplicateMask = errors.New("data: Duplicate mask in user creation")
)

// StoredUserPwdCost is the cost factor for bcrypt. It should not be set
// unless the reasoning is good and the consequences are known.
var StoredUserPwdCost = bcrypt.DefaultCost

// StoredUser is a user of the bot, protected by a username and crypted
// password combo. Masks optionally restrict the hosts it may log in from.
type StoredUser struct {
	Username string
	Password []byte
	Masks    []string
	Access   Access
}

// NewStoredUser creates a user. Requires username and password, but masks
// are optional.
func NewStoredUser(username, password string, masks ...string) (*StoredUser, error) {
	if len(username) == 0 || len(password) == 0 {
		return nil, errMissingUnameOrPwd
	}

	s := &StoredUser{Username: strings.ToLower(username)}
	if err := s.SetPassword(password); err != nil {
		return nil, err
	}

	for _, mask := range masks {
		if !s.AddMask(mask) {
			return nil, errDuplicateMask
		}
	}

	return s, nil
}

// SetPassword encrypts the password and stores it.
func (s *StoredUser) SetPassword(password string) error {
	pwd, err := bcrypt.GenerateFromPassword([]byte(password), StoredUserPwdCost)
	if err != nil {
		return errors.Wrap(err, "data: hash password")
	}
	s.Password = pwd
	return nil
}

// VerifyPassword checks the password against the stored hash.
func (s *StoredUser) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(s.Password, []byte(password)) == nil
}

// AddMask adds a mask, returns false if it was already there.
func (s *StoredUser) AddMask(mask string) bool {
	mask = strings.ToLower(mask)
	for _, m := range s.Masks {
		if m == mask {
			return false
		}
	}
	s.Masks = append(s.Masks, mask)
	return true
}

// DelMask removes a mask, returns false if it wasn't there.
func (s *StoredUser) DelMask(mask string) bool {
	mask = strings.ToLower(mask)
	for i, m := range s.Masks {
		if m == mask {
			s.Masks = append(s.Masks[:i], s.Masks[i+1:]...)
			return true
		}
	}
	return false
}

// ValidHost is true when the user has no masks or one of them matches host.
func (s *StoredUser) ValidHost(host string) bool {
	if len(s.Masks) == 0 {
		return true
	}
	for _, m := range s.Masks {
		if irc.Mask(m).Match(host) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Users handed out by a Store are shared, they
// are changed through a clone that is then saved.
func (s *StoredUser) Clone() *StoredUser {
	c := *s
	c.Password = append([]byte(nil), s.Password...)
	c.Masks = append([]string(nil), s.Masks...)
	return &c
}

// String shows the username and access.
func (s *StoredUser) String() string {
	return s.Username + " " + s.Access.String()
}

// serialize encodes the user for storage.
func (s *StoredUser) serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, errors.Wrap(err, "data: encode user")
	}
	return buf.Bytes(), nil
}

// deserialize decodes a stored user.
func deserialize(serialized []byte) (*StoredUser, error) {
	s := &StoredUser{}
	if err := gob.NewDecoder(bytes.NewReader(serialized)).Decode(s); err != nil {
		return nil, errors.Wrap(err, "data: decode user")
	}
	return s, nil
}
