package server

import (
	"sync"
	"sync/atomic"
	"time"
)

// Subscriber is one admitted connection. The hub enqueues encoded frames;
// the connection's write pump drains Outbound until Done closes.
type Subscriber struct {
	playerID  string
	sessionID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	initSent atomic.Bool
	dropped  atomic.Uint64

	mu            sync.Mutex
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

func newSubscriber(playerID, sessionID string, queue int, now time.Time) *Subscriber {
	if queue <= 0 {
		queue = outboundQueueSize
	}
	return &Subscriber{
		playerID:      playerID,
		sessionID:     sessionID,
		send:          make(chan []byte, queue),
		done:          make(chan struct{}),
		lastHeartbeat: now,
	}
}

// PlayerID returns the account this connection plays as.
func (s *Subscriber) PlayerID() string { return s.playerID }

// SessionID returns the per-connection id used to fence reconnects.
func (s *Subscriber) SessionID() string { return s.sessionID }

// Outbound yields frames in enqueue order.
func (s *Subscriber) Outbound() <-chan []byte { return s.send }

// Done closes when the hub drops the subscriber.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Enqueue offers data without blocking. A full queue drops the frame.
func (s *Subscriber) Enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped reports how many frames the full queue discarded.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Close signals the write pump to stop. Safe to call more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Closed reports whether Close ran.
func (s *Subscriber) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// recordHeartbeat stores receipt time and, when the client stamp is sane,
// the round trip.
func (s *Subscriber) recordHeartbeat(receivedAt time.Time, clientSent int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = receivedAt
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(heartbeatWindow)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			s.lastRTT = rtt
		}
	}
	return s.lastRTT
}

func (s *Subscriber) heartbeat() (time.Time, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat, s.lastRTT
}
