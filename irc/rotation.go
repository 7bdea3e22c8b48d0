package irc

import "errors"

var errEmptyRotation = errors.New("irc: A rotation requires at least one item.")

// Rotation is a fixed circular list of servers or nicknames with a current
// position. It is not safe for concurrent use, the owner guards it.
type Rotation struct {
	items []string
	pos   int
}

// NewRotation creates a rotation positioned at the first item.
func NewRotation(items ...string) (*Rotation, error) {
	if len(items) == 0 {
		return nil, errEmptyRotation
	}

	r := &Rotation{items: make([]string, len(items))}
	copy(r.items, items)
	return r, nil
}

// Current returns the item at the current position.
func (r *Rotation) Current() string {
	return r.items[r.pos]
}

// Next advances the position by one, wrapping at the end, and returns the
// new current item.
func (r *Rotation) Next() string {
	r.pos = (r.pos + 1) % len(r.items)
	return r.items[r.pos]
}

// Position is the index of the current item.
func (r *Rotation) Position() int {
	return r.pos
}

// Len is the number of items in the rotation.
func (r *Rotation) Len() int {
	return len(r.items)
}

// Items returns a copy of the items in their current order.
func (r *Rotation) Items() []string {
	cpy := make([]string, len(r.items))
	copy(cpy, r.items)
	return cpy
}

// Promote moves the current item to the front so that it is tried first
// next time, the order of the others is kept. The position becomes 0.
func (r *Rotation) Promote() {
	if r.pos == 0 {
		return
	}

	current := r.items[r.pos]
	copy(r.items[1:r.pos+1], r.items[:r.pos])
	r.items[0] = current
	r.pos = 0
}

// Reset moves the position back to the front without reordering.
func (r *Rotation) Reset() {
	r.pos = 0
}
