package data

import (
	"strconv"
	"strings"
)

const (
	none     = "none"
	allFlags = `-ALL-`

	nAlphabet          = 26
	allFlagsNum uint64 = 1<<(nAlphabet*2) - 1
)

// Access is a level 0-255 plus flags a-zA-Z.
type Access struct {
	Level uint8
	Flags uint64
}

// NewAccess creates an access with the level and flags given.
func NewAccess(level uint8, flags ...string) Access {
	a := Access{Level: level}
	a.SetFlags(flags...)
	return a
}

// HasLevel checks that the level is >= the given level.
func (a Access) HasLevel(level uint8) bool {
	return a.Level >= level
}

// SetFlags sets every letter in flags.
func (a *Access) SetFlags(flags ...string) {
	a.Flags |= flagBits(flags...)
}

// ClearFlags clears every letter in flags.
func (a *Access) ClearFlags(flags ...string) {
	a.Flags &^= flagBits(flags...)
}

// HasFlag checks a single flag.
func (a Access) HasFlag(flag rune) bool {
	bit := flagBit(flag)
	return bit != 0 && a.Flags&bit == bit
}

// HasFlags is true when any of the letters in flags are set.
func (a Access) HasFlags(flags ...string) bool {
	return a.Flags&flagBits(flags...) != 0
}

// IsZero checks if this access has no flags and no level.
func (a Access) IsZero() bool {
	return a.Flags == 0 && a.Level == 0
}

// String transforms the Access into a human-readable format: "100 abZ".
func (a Access) String() string {
	if a.IsZero() {
		return none
	}

	var parts []string
	if a.Level != 0 {
		parts = append(parts, strconv.Itoa(int(a.Level)))
	}
	if a.Flags != 0 {
		parts = append(parts, flagString(a.Flags))
	}
	return strings.Join(parts, " ")
}

// flagBits creates a mask containing all the letters given.
func flagBits(flags ...string) (bits uint64) {
	for _, f := range flags {
		for _, r := range f {
			bits |= flagBit(r)
		}
	}
	return bits
}

// flagBit maps a-z to bits 0-25 and A-Z to 26-51.
func flagBit(flag rune) uint64 {
	switch {
	case flag >= 'a' && flag <= 'z':
		return 1 << uint(flag-'a')
	case flag >= 'A' && flag <= 'Z':
		return 1 << uint(flag-'A'+nAlphabet)
	}
	return 0
}

// flagString maps the bits back to letters.
func flagString(bits uint64) string {
	if bits&allFlagsNum == allFlagsNum {
		return allFlags
	}

	var b strings.Builder
	for i := 0; i < nAlphabet*2; i++ {
		if bits&(1<<uint(i)) == 0 {
			continue
		}
		if i < nAlphabet {
			b.WriteByte(byte('a' + i))
		} else {
			b.WriteByte(byte('A' + i - nAlphabet))
		}
	}
	return b.String()
}
