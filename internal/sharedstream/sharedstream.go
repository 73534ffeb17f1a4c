// Package sharedstream fans a single upstream HTTP stream out to
// multiple subscribers keyed by (target, virtual_id), per spec §4.11:
// the first subscriber opens the upstream; later subscribers to the
// same key join the same fan-out instead of dialing their own
// upstream connection.
package sharedstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// DefaultChunkBuffer is the default bounded per-subscriber channel
// capacity (spec §4.11's "capacity configurable, default 2048 chunks").
const DefaultChunkBuffer = 2048

// Chunk is one unit forwarded to subscribers: either a byte payload or
// a terminal error (io.EOF for a clean upstream close).
type Chunk struct {
	Data []byte
	Err  error
}

// Key identifies one shared stream.
type Key struct {
	Target    string
	VirtualID uint32
}

func (k Key) String() string { return fmt.Sprintf("%s:%d", k.Target, k.VirtualID) }

// Subscriber is one client's view onto a shared stream.
type Subscriber struct {
	ID   string
	Ch   chan Chunk
	done chan struct{}
}

// Close detaches the subscriber; the fan-out loop notices on its next
// send attempt and removes it.
func (s *Subscriber) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

type entry struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	closeFlag   bool
	cancel      context.CancelFunc
}

// Manager is the process-wide shared-stream registry.
type Manager struct {
	mu      sync.Mutex
	entries map[Key]*entry

	// ChunkBuffer overrides DefaultChunkBuffer when non-zero.
	ChunkBuffer int
}

// NewManager returns an empty registry.
func NewManager() *Manager {
	return &Manager{entries: map[Key]*entry{}}
}

func (m *Manager) chunkBuffer() int {
	if m.ChunkBuffer > 0 {
		return m.ChunkBuffer
	}
	return DefaultChunkBuffer
}

// Opener dials the upstream for key and returns a reader of its body.
// Subscribe calls it at most once per shared stream (only for the
// subscriber that creates the entry); callers joining an existing
// entry never trigger a new dial.
type Opener func(ctx context.Context, key Key) (io.ReadCloser, error)

// Subscribe attaches a new client to key's shared stream, opening the
// upstream via open if no live entry exists yet. The returned
// Subscriber's Ch receives chunks until an error Chunk (including
// io.EOF on clean upstream close) or the subscriber is dropped for
// falling behind.
func (m *Manager) Subscribe(ctx context.Context, key Key, open Opener) (*Subscriber, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !e.closed() {
		sub := m.addSubscriber(e)
		m.mu.Unlock()
		return sub, nil
	}

	fanoutCtx, cancel := context.WithCancel(context.Background())
	e = &entry{subscribers: map[string]*Subscriber{}, cancel: cancel}
	m.entries[key] = e
	sub := m.addSubscriber(e)
	m.mu.Unlock()

	body, err := open(fanoutCtx, key)
	if err != nil {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		cancel()
		sub.Close()
		return nil, err
	}

	go m.fanout(fanoutCtx, key, e, body)
	return sub, nil
}

func (e *entry) closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeFlag
}

func (m *Manager) addSubscriber(e *entry) *Subscriber {
	sub := &Subscriber{ID: uuid.NewString(), Ch: make(chan Chunk, m.chunkBuffer()), done: make(chan struct{})}
	e.mu.Lock()
	e.subscribers[sub.ID] = sub
	e.mu.Unlock()
	return sub
}

// Unsubscribe removes sub from key's entry, if it still exists.
func (m *Manager) Unsubscribe(key Key, sub *Subscriber) {
	sub.Close()
	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	delete(e.subscribers, sub.ID)
	empty := len(e.subscribers) == 0
	e.mu.Unlock()
	if empty {
		m.closeEntry(key, e)
	}
}

func (m *Manager) closeEntry(key Key, e *entry) {
	e.mu.Lock()
	if e.closeFlag {
		e.mu.Unlock()
		return
	}
	e.closeFlag = true
	e.cancel()
	e.mu.Unlock()

	m.mu.Lock()
	if cur, ok := m.entries[key]; ok && cur == e {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}

// fanout reads chunks from body and forwards each to every live
// subscriber, dropping any subscriber whose channel is full (a send
// failure per spec §4.11's fan-out rules) rather than blocking the
// upstream read loop.
func (m *Manager) fanout(ctx context.Context, key Key, e *entry, body io.ReadCloser) {
	defer body.Close()
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			m.broadcast(e, Chunk{Err: context.Canceled})
			m.closeEntry(key, e)
			return
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			if m.broadcast(e, Chunk{Data: data}) == 0 {
				m.closeEntry(key, e)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				m.broadcast(e, Chunk{Err: io.EOF})
			} else {
				m.broadcast(e, Chunk{Err: err})
			}
			m.closeEntry(key, e)
			return
		}
	}
}

// broadcast sends chunk to every live subscriber, dropping any whose
// buffer is full or that has closed itself. Returns the number of
// subscribers the chunk was delivered to.
func (m *Manager) broadcast(e *entry, chunk Chunk) int {
	e.mu.Lock()
	subs := make([]*Subscriber, 0, len(e.subscribers))
	for _, s := range e.subscribers {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		select {
		case <-s.done:
			m.dropSubscriber(e, s.ID)
			continue
		default:
		}
		select {
		case s.Ch <- chunk:
			delivered++
		default:
			m.dropSubscriber(e, s.ID)
		}
	}
	return delivered
}

func (m *Manager) dropSubscriber(e *entry, id string) {
	e.mu.Lock()
	delete(e.subscribers, id)
	e.mu.Unlock()
}

// Count returns the number of live subscribers for key, for metrics.
func (m *Manager) Count(key Key) int {
	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}
