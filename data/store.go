package data

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/cznic/kv"
	"github.com/pkg/errors"
)

var (
	// nMaxCache is how many users are kept decoded in memory.
	nMaxCache = 1000

	// ErrUserNotFound is returned when a username is not in the store.
	ErrUserNotFound = errors.New("data: User not found")
	// ErrUserBadPassword is returned on a failed password check.
	ErrUserBadPassword = errors.New("data: User password does not match")
	// ErrUserBadHost is returned when the host matches none of the masks.
	ErrUserBadHost = errors.New("data: Host does not match stored hosts")
	// ErrUserExists is returned when adding a username that is taken.
	ErrUserExists = errors.New("data: User already exists")
)

// DBProvider creates the kv database for a Store.
type DBProvider func() (*kv.DB, error)

// MemStoreProvider creates an in-memory database.
func MemStoreProvider() (*kv.DB, error) {
	return kv.CreateMem(&kv.Options{})
}

// MakeFileStoreProvider opens the database at filename, creating it when it
// does not exist.
func MakeFileStoreProvider(filename string) DBProvider {
	return func() (*kv.DB, error) {
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			return kv.Create(filename, &kv.Options{})
		}
		return kv.Open(filename, &kv.Options{})
	}
}

// Store keeps StoredUsers in a kv database, caches their lookup and
// remembers which hosts are logged in as which user.
type Store struct {
	protect sync.RWMutex
	db      *kv.DB
	cache   map[string]*StoredUser
	authed  map[string]string
}

// NewStore initializes a store.
func NewStore(provider DBProvider) (*Store, error) {
	db, err := provider()
	if err != nil {
		return nil, errors.Wrap(err, "data: open store")
	}

	return &Store{
		db:     db,
		cache:  make(map[string]*StoredUser),
		authed: make(map[string]string),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.protect.Lock()
	defer s.protect.Unlock()
	return s.db.Close()
}

// AddUser adds a new user to the database.
func (s *Store) AddUser(user *StoredUser) error {
	s.protect.Lock()
	defer s.protect.Unlock()

	existing, err := s.findUser(user.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrUserExists
	}
	return s.saveUser(user)
}

// SaveUser writes a user to the database, replacing what was there.
func (s *Store) SaveUser(user *StoredUser) error {
	s.protect.Lock()
	defer s.protect.Unlock()
	return s.saveUser(user)
}

func (s *Store) saveUser(user *StoredUser) error {
	serialized, err := user.serialize()
	if err != nil {
		return err
	}

	if err = s.db.Set([]byte(user.Username), serialized); err != nil {
		return errors.Wrapf(err, "data: save user %s", user.Username)
	}

	s.checkCacheLimits()
	s.cache[user.Username] = user
	return nil
}

// RemoveUser removes a user from the database and logs out all of their
// hosts. Returns false if the user did not exist.
func (s *Store) RemoveUser(username string) (bool, error) {
	username = strings.ToLower(username)

	s.protect.Lock()
	defer s.protect.Unlock()

	user, err := s.findUser(username)
	if err != nil || user == nil {
		return false, err
	}

	delete(s.cache, username)
	for host, name := range s.authed {
		if name == username {
			delete(s.authed, host)
		}
	}

	if err = s.db.Delete([]byte(username)); err != nil {
		return false, errors.Wrapf(err, "data: remove user %s", username)
	}
	return true, nil
}

// FindUser looks up a user by name, user is nil if not found.
func (s *Store) FindUser(username string) (*StoredUser, error) {
	s.protect.Lock()
	defer s.protect.Unlock()
	return s.findUser(strings.ToLower(username))
}

// AuthUser logs host in as username. An already authenticated host gets its
// user back without a password check.
func (s *Store) AuthUser(host, username, password string) (*StoredUser, error) {
	s.protect.Lock()
	defer s.protect.Unlock()

	if name, ok := s.authed[host]; ok {
		if user, err := s.findUser(name); err == nil && user != nil {
			return user, nil
		}
	}

	user, err := s.findUser(strings.ToLower(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.ValidHost(host) {
		return nil, ErrUserBadHost
	}
	if !user.VerifyPassword(password) {
		return nil, ErrUserBadPassword
	}

	s.authed[host] = user.Username
	return user, nil
}

// AuthedUser returns the user host is logged in as, nil if it isn't.
func (s *Store) AuthedUser(host string) *StoredUser {
	s.protect.Lock()
	defer s.protect.Unlock()

	name, ok := s.authed[host]
	if !ok {
		return nil
	}
	user, err := s.findUser(name)
	if err != nil {
		return nil
	}
	return user
}

// Logout forgets an authenticated host.
func (s *Store) Logout(host string) {
	s.protect.Lock()
	delete(s.authed, host)
	s.protect.Unlock()
}

// Rehost moves a login to a new host, used when a nick changes.
func (s *Store) Rehost(oldHost, newHost string) {
	s.protect.Lock()
	defer s.protect.Unlock()

	if name, ok := s.authed[oldHost]; ok {
		delete(s.authed, oldHost)
		s.authed[newHost] = name
	}
}

// LogoutAll forgets every authenticated host, used on disconnect.
func (s *Store) LogoutAll() {
	s.protect.Lock()
	s.authed = make(map[string]string)
	s.protect.Unlock()
}

// Usernames lists every stored username in order.
func (s *Store) Usernames() ([]string, error) {
	s.protect.RLock()
	defer s.protect.RUnlock()

	enum, err := s.db.SeekFirst()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "data: list users")
	}

	var names []string
	for {
		key, _, err := enum.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "data: list users")
		}
		names = append(names, string(key))
	}

	sort.Strings(names)
	return names, nil
}

// findUser looks up a user based on username. It caches the result if found.
func (s *Store) findUser(username string) (*StoredUser, error) {
	if cached, ok := s.cache[username]; ok {
		return cached, nil
	}

	serialized, err := s.db.Get(nil, []byte(username))
	if err != nil {
		return nil, errors.Wrapf(err, "data: find user %s", username)
	}
	if serialized == nil {
		return nil, nil
	}

	user, err := deserialize(serialized)
	if err != nil {
		return nil, err
	}

	s.checkCacheLimits()
	s.cache[username] = user
	return user, nil
}

// checkCacheLimits verifies if adding one to the size of the cache will
// cross its boundaries, if so, it dumps the cache.
func (s *Store) checkCacheLimits() {
	if len(s.cache)+1 > nMaxCache {
		s.cache = make(map[string]*StoredUser)
	}
}
