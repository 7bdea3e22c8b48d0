package inet

import (
	. "gopkg.in/check.v1"
)

func (s *s) TestQueue(c *C) {
	q := lineQueue{}
	c.Assert(q.Len(), Equals, 0)
	c.Assert(q.front, IsNil)
	c.Assert(q.back, IsNil)

	_, ok := q.Dequeue()
	c.Assert(ok, Equals, false)
}

func (s *s) TestQueue_Queuing(c *C) {
	q := lineQueue{}

	q.Enqueue()
	c.Assert(q.Len(), Equals, 0)

	q.Enqueue("one")
	q.Enqueue("two", "three")
	c.Assert(q.Len(), Equals, 3)

	for _, expect := range []string{"one", "two", "three"} {
		line, ok := q.Dequeue()
		c.Check(ok, Equals, true)
		c.Check(line, Equals, expect)
	}

	_, ok := q.Dequeue()
	c.Check(ok, Equals, false)
	c.Check(q.back, IsNil)

	q.Enqueue("four")
	line, _ := q.Dequeue()
	c.Check(line, Equals, "four")
}

func (s *s) TestQueue_Clear(c *C) {
	q := lineQueue{}
	q.Enqueue("a", "b")
	q.Clear()
	c.Check(q.Len(), Equals, 0)
	_, ok := q.Dequeue()
	c.Check(ok, Equals, false)
}
