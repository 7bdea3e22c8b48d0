package inet

// queueNode is the node structure underneath the lineQueue type.
type queueNode struct {
	next *queueNode
	line string
}

// lineQueue is a singly-linked queue of complete lines that have been read
// off the socket but not yet handed out by Read. It is guarded by the Conn.
type lineQueue struct {
	front  *queueNode
	back   *queueNode
	length int
}

// Enqueue adds lines to the back of the queue in order.
func (q *lineQueue) Enqueue(lines ...string) {
	for _, line := range lines {
		node := &queueNode{line: line}
		if q.length == 0 {
			q.front = node
		} else {
			q.back.next = node
		}
		q.back = node
		q.length++
	}
}

// Dequeue removes the line at the front of the queue.
func (q *lineQueue) Dequeue() (string, bool) {
	if q.length == 0 {
		return "", false
	}

	node := q.front
	q.front = node.next
	q.length--
	if q.length == 0 {
		q.back = nil
	}
	return node.line, true
}

// Len is the number of queued lines.
func (q *lineQueue) Len() int {
	return q.length
}

// Clear drops everything in the queue.
func (q *lineQueue) Clear() {
	q.front, q.back, q.length = nil, nil, 0
}
