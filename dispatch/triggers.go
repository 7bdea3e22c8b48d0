package dispatch

import (
	"sort"
	"strings"
	"sync"

	"github.com/aarondl/triggerbot/irc"
)

// TriggerFunc runs a trigger. A returned error is shown to the user that
// invoked it.
type TriggerFunc func(w irc.Writer, m *irc.Message) error

// Triggers maps lowercased command words to their functions. A plugin embeds
// a *Triggers to become a TriggerHandler. The Dispatcher only reads it.
type Triggers struct {
	mut sync.RWMutex
	fns map[string]TriggerFunc
}

// NewTriggers creates an empty trigger set.
func NewTriggers() *Triggers {
	return &Triggers{fns: make(map[string]TriggerFunc)}
}

// TriggerMap implements TriggerHandler.
func (t *Triggers) TriggerMap() *Triggers {
	return t
}

// Register binds word to fn, replacing any previous binding.
func (t *Triggers) Register(word string, fn TriggerFunc) {
	t.mut.Lock()
	if t.fns == nil {
		t.fns = make(map[string]TriggerFunc)
	}
	t.fns[strings.ToLower(word)] = fn
	t.mut.Unlock()
}

// Unregister removes word, reporting whether it was bound.
func (t *Triggers) Unregister(word string) bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	word = strings.ToLower(word)
	_, ok := t.fns[word]
	delete(t.fns, word)
	return ok
}

// Lookup finds the function bound to word, ignoring case.
func (t *Triggers) Lookup(word string) (TriggerFunc, bool) {
	t.mut.RLock()
	defer t.mut.RUnlock()
	fn, ok := t.fns[strings.ToLower(word)]
	return fn, ok
}

// Words lists the bound words in order.
func (t *Triggers) Words() []string {
	t.mut.RLock()
	words := make([]string, 0, len(t.fns))
	for w := range t.fns {
		words = append(words, w)
	}
	t.mut.RUnlock()

	sort.Strings(words)
	return words
}
