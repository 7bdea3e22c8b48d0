package data

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aarondl/triggerbot/parse"
)

func openAudit(t *testing.T) *AuditLog {
	t.Helper()
	a, err := OpenAuditLog(filepath.Join(t.TempDir(), "audit.sqlite"), "ircnet")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAuditLog(t *testing.T) {
	t.Parallel()
	a := openAudit(t)
	base := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, line := range []string{
		":nick1!user1@host1 PRIVMSG #chan :!weather london uk",
		":nick2!user2@host2 PRIVMSG Bot :seen nick1",
	} {
		m := mustParse(t, line)
		parse.Command(m, []string{"!"})
		m.Time = base.Add(time.Duration(i) * time.Minute)
		m.MarkResponded(m.Command)
		if err := a.Audit(m); err != nil {
			t.Fatal(err)
		}
	}

	// Not responded to, not recorded.
	if err := a.Audit(mustParse(t, ":x!y@z PRIVMSG #chan :hello")); err != nil {
		t.Fatal(err)
	}

	entries, err := a.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatal("Expected 2 entries, got:", len(entries))
	}

	newest := entries[0]
	if newest.Nick != "nick2" || newest.Trigger != "seen" || newest.Params != "nick1" {
		t.Error("Newest entry wrong:", newest)
	}
	if newest.Target != "Bot" || newest.Network != "ircnet" || newest.Host != "user2@host2" {
		t.Error("Newest entry wrong:", newest)
	}
	if !newest.At.Equal(base.Add(time.Minute)) {
		t.Errorf("Expected: %v, got: %v", base.Add(time.Minute), newest.At)
	}
	if len(newest.ID) == 0 || newest.ID == entries[1].ID {
		t.Error("Ids should be unique:", newest.ID, entries[1].ID)
	}

	if entries[1].Trigger != "weather" || entries[1].Params != "london uk" {
		t.Error("Oldest entry wrong:", entries[1])
	}

	if entries, err = a.Recent(1); err != nil || len(entries) != 1 {
		t.Error("Limit not applied:", len(entries), err)
	}
}

func TestAuditLog_DefaultTime(t *testing.T) {
	t.Parallel()
	a := openAudit(t)
	now := time.Date(2021, 5, 5, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	m := mustParse(t, ":nick!u@h PRIVMSG Bot :ping")
	m.Time = time.Time{}
	m.MarkResponded("ping")
	if err := a.Audit(m); err != nil {
		t.Fatal(err)
	}

	entries, err := a.Recent(1)
	if err != nil || len(entries) != 1 {
		t.Fatal("Expected an entry:", err)
	}
	if !entries[0].At.Equal(now) {
		t.Errorf("Expected: %v, got: %v", now, entries[0].At)
	}
}

func TestAuditLog_Redact(t *testing.T) {
	t.Parallel()
	a := openAudit(t)
	a.Redact("Auth")

	m := mustParse(t, ":nick!u@h PRIVMSG Bot :auth user secret")
	parse.Command(m, nil)
	m.MarkResponded("auth")
	if err := a.Audit(m); err != nil {
		t.Fatal(err)
	}

	entries, err := a.Recent(1)
	if err != nil || len(entries) != 1 {
		t.Fatal("Expected an entry:", err)
	}
	if entries[0].Params != redactedParams {
		t.Errorf("Expected: %v, got: %v", redactedParams, entries[0].Params)
	}
}
