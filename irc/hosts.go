package irc

import (
	"regexp"
	"strings"
)

var (
	// rgxHost validates and splits nick!ident@host sources.
	rgxHost = regexp.MustCompile(
		`^` +
			`([^!@\s]+)` + // nickname
			`!([^\0@\s]+)` + // ident
			`@([^\0\s]+)` + // host
			`$`,
	)

	// rfc1459 considers {}|^ the lowercase forms of []\~
	foldReplacer = strings.NewReplacer("[", "{", "]", "}", `\`, "|", "~", "^")
)

// Split breaks a nick!ident@host source into its parts. ok is false when the
// source is not in that form, as is the case for server names.
func Split(source string) (nick, ident, host string, ok bool) {
	fragments := rgxHost.FindStringSubmatch(source)
	if len(fragments) == 0 {
		return "", "", "", false
	}
	return fragments[1], fragments[2], fragments[3], true
}

// Nick returns the nick portion of a source.
func Nick(source string) string {
	if i := strings.IndexAny(source, "!@"); i >= 0 {
		return source[:i]
	}
	return source
}

// Fold lowercases a nick or channel the way servers compare them.
func Fold(name string) string {
	return foldReplacer.Replace(strings.ToLower(name))
}

// Mask is a nick!ident@host pattern that may contain the wildcards * and ?.
type Mask string

// Match checks a nick!ident@host source against the mask, ignoring case.
func (m Mask) Match(source string) bool {
	return wildcardMatch(strings.ToLower(string(m)), strings.ToLower(source))
}

// wildcardMatch walks the pattern once, remembering the last * seen so a
// failed match can resume from it with one more character consumed.
func wildcardMatch(pattern, s string) bool {
	p, i := 0, 0
	star, resume := -1, 0

	for i < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[i]):
			p++
			i++
		case p < len(pattern) && pattern[p] == '*':
			star, resume = p, i
			p++
		case star >= 0:
			resume++
			p, i = star+1, resume
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
