package data

import (
	"testing"

	"github.com/aarondl/triggerbot/irc"
	"github.com/aarondl/triggerbot/parse"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	// Speed up bcrypt for tests.
	StoredUserPwdCost = bcrypt.MinCost
	// Invalidate the Store cache enough to be testable.
	nMaxCache = 1
}

// fataler is satisfied by both *testing.T and *check.C.
type fataler interface {
	Fatal(args ...interface{})
}

func mustParse(t fataler, line string) *irc.Message {
	m, err := parse.Parse(line)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(MemStoreProvider)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
