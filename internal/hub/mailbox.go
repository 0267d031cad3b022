package hub

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by a closed mailbox.
	ErrClosed = errors.New("mailbox closed")
	// ErrFull is returned when the reply queue is at its limit.
	ErrFull = errors.New("reply queue full")
)

// DefaultReplyLimit bounds the replies waiting for one connection.
const DefaultReplyLimit = 64

type entry struct {
	state bool
	data  []byte
}

// Mailbox is the outgoing queue of one connection. Messages leave in
// arrival order, except that at most one state message is pending: a new
// state replaces the pending one in place. A slow reader therefore holds
// at most the latest table plus a bounded number of replies.
type Mailbox struct {
	mu       sync.Mutex
	queue    []entry
	stateIdx int
	replies  int
	limit    int
	closed   bool

	notify chan struct{}
	done   chan struct{}
}

// NewMailbox creates a mailbox holding at most replyLimit replies.
func NewMailbox(replyLimit int) *Mailbox {
	if replyLimit <= 0 {
		replyLimit = DefaultReplyLimit
	}
	return &Mailbox{
		stateIdx: -1,
		limit:    replyLimit,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// PutState queues a state message, replacing any pending one.
func (m *Mailbox) PutState(msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.stateIdx >= 0 {
		m.queue[m.stateIdx].data = msg
		return nil
	}
	m.stateIdx = len(m.queue)
	m.queue = append(m.queue, entry{state: true, data: msg})
	m.wake()
	return nil
}

// PutReply queues a reply to one command.
func (m *Mailbox) PutReply(msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.replies >= m.limit {
		return ErrFull
	}
	m.replies++
	m.queue = append(m.queue, entry{data: msg})
	m.wake()
	return nil
}

func (m *Mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a message is available, the mailbox is closed or ctx
// is done.
func (m *Mailbox) Next(ctx context.Context) ([]byte, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if len(m.queue) > 0 {
			e := m.queue[0]
			m.queue[0] = entry{}
			m.queue = m.queue[1:]
			if e.state {
				m.stateIdx = -1
			} else {
				m.replies--
				if m.stateIdx > 0 {
					m.stateIdx--
				}
			}
			m.mu.Unlock()
			return e.data, nil
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-m.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close wakes the reader and rejects further messages. Safe to call twice.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.queue = nil
		close(m.done)
	}
	return nil
}

// Done is closed when the mailbox is closed.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Peer is an Observer backed by a Mailbox, used by connection handlers
// that drain the mailbox from their own writer goroutine.
type Peer struct {
	*Mailbox
	id string
}

// NewPeer creates a peer with the given observer id.
func NewPeer(id string, replyLimit int) *Peer {
	return &Peer{Mailbox: NewMailbox(replyLimit), id: id}
}

// ID implements Observer.
func (p *Peer) ID() string { return p.id }

// Send implements Observer.
func (p *Peer) Send(msg []byte) error { return p.PutState(msg) }
