package data

import (
	"strings"
	"sync"
	"time"

	"github.com/aarondl/triggerbot/irc"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS responded_triggers (
	id      TEXT PRIMARY KEY,
	at      INTEGER NOT NULL,
	network TEXT NOT NULL,
	nick    TEXT NOT NULL,
	host    TEXT NOT NULL,
	target  TEXT NOT NULL,
	word    TEXT NOT NULL,
	params  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS responded_triggers_at ON responded_triggers (at);
`

// AuditEntry is one trigger that responded to a message.
type AuditEntry struct {
	ID      string    `db:"id"`
	At      time.Time `db:"-"`
	Network string    `db:"network"`
	Nick    string    `db:"nick"`
	Host    string    `db:"host"`
	Target  string    `db:"target"`
	Trigger string    `db:"word"`
	Params  string    `db:"params"`

	AtNano int64 `db:"at"`
}

// redactedParams replaces the parameters of redacted triggers.
const redactedParams = "[redacted]"

// AuditLog records every message a trigger responded to in sqlite.
type AuditLog struct {
	db      *sqlx.DB
	network string
	now     func() time.Time

	protect  sync.RWMutex
	redacted map[string]bool
}

// OpenAuditLog opens or creates the audit database at path.
func OpenAuditLog(path, network string) (*AuditLog, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "data: open audit log %s", path)
	}
	// sqlite allows one writer, and :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "data: create audit schema")
	}

	return &AuditLog{
		db:       db,
		network:  network,
		now:      time.Now,
		redacted: make(map[string]bool),
	}, nil
}

// Redact stops the parameters of the given triggers from being recorded,
// for triggers that take passwords.
func (a *AuditLog) Redact(triggers ...string) {
	a.protect.Lock()
	defer a.protect.Unlock()
	for _, t := range triggers {
		a.redacted[strings.ToLower(t)] = true
	}
}

// Close closes the database.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

// Audit records m if a trigger responded to it, other messages are ignored.
func (a *AuditLog) Audit(m *irc.Message) error {
	trigger := m.RespondedTrigger()
	if len(trigger) == 0 {
		return nil
	}

	at := m.Time
	if at.IsZero() {
		at = a.now()
	}

	params := strings.Join(m.CommandParams, " ")
	a.protect.RLock()
	if a.redacted[trigger] {
		params = redactedParams
	}
	a.protect.RUnlock()

	_, err := a.db.Exec(`INSERT INTO responded_triggers
		(id, at, network, nick, host, target, word, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), at.UnixNano(), a.network, m.Nick,
		m.Ident+"@"+m.Host, m.Target, trigger, params,
	)
	return errors.Wrap(err, "data: audit")
}

// Recent returns the last n entries, newest first.
func (a *AuditLog) Recent(n int) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := a.db.Select(&entries, `SELECT
		id, at, network, nick, host, target, word, params
		FROM responded_triggers ORDER BY at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "data: recent audit")
	}

	for i := range entries {
		entries[i].At = time.Unix(0, entries[i].AtNano)
	}
	return entries, nil
}
