/*
Package mocks provides an in-memory net.Conn for tests that need a socket.
*/
package mocks

import (
	"bytes"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// Conn is an in-memory net.Conn. Data given to Send is handed out by Read,
// everything written is recorded. A Read with nothing to hand out behaves as
// if its deadline passed.
type Conn struct {
	mut      sync.Mutex
	reads    bytes.Buffer
	written  bytes.Buffer
	readErr  error
	writeErr error
	closed   bool
	deadline time.Time
	nWrites  int
}

// NewConn creates an open mock connection.
func NewConn() *Conn {
	return &Conn{}
}

// Send queues data for the reader.
func (m *Conn) Send(data string) {
	m.mut.Lock()
	m.reads.WriteString(data)
	m.mut.Unlock()
}

// FailReads makes every following Read return err.
func (m *Conn) FailReads(err error) {
	m.mut.Lock()
	m.readErr = err
	m.mut.Unlock()
}

// FailWrites makes every following Write return err.
func (m *Conn) FailWrites(err error) {
	m.mut.Lock()
	m.writeErr = err
	m.mut.Unlock()
}

// Written is everything written so far.
func (m *Conn) Written() string {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.written.String()
}

// Lines is everything written so far split into lines without CRLF.
func (m *Conn) Lines() []string {
	written := strings.TrimSuffix(m.Written(), "\r\n")
	if len(written) == 0 {
		return nil
	}
	return strings.Split(written, "\r\n")
}

// Writes is the number of successful calls to Write.
func (m *Conn) Writes() int {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.nWrites
}

// IsClosed checks if Close was called.
func (m *Conn) IsClosed() bool {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.closed
}

// Deadline is the last read deadline set.
func (m *Conn) Deadline() time.Time {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.deadline
}

func (m *Conn) Read(buffer []byte) (int, error) {
	m.mut.Lock()
	defer m.mut.Unlock()

	switch {
	case m.closed:
		return 0, net.ErrClosed
	case m.readErr != nil:
		return 0, m.readErr
	case m.reads.Len() == 0:
		return 0, os.ErrDeadlineExceeded
	}

	n, err := m.reads.Read(buffer)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (m *Conn) Write(written []byte) (int, error) {
	m.mut.Lock()
	defer m.mut.Unlock()

	switch {
	case m.closed:
		return 0, net.ErrClosed
	case m.writeErr != nil:
		return 0, m.writeErr
	}

	m.nWrites++
	return m.written.Write(written)
}

func (m *Conn) Close() error {
	m.mut.Lock()
	m.closed = true
	m.mut.Unlock()
	return nil
}

func (m *Conn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func (m *Conn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6667}
}

func (m *Conn) SetDeadline(t time.Time) error {
	return m.SetReadDeadline(t)
}

func (m *Conn) SetReadDeadline(t time.Time) error {
	m.mut.Lock()
	m.deadline = t
	m.mut.Unlock()
	return nil
}

func (m *Conn) SetWriteDeadline(_ time.Time) error {
	return nil
}
