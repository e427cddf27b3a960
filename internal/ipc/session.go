package ipc

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/multiwin/internal/platform"
)

const (
	flushTimeout = time.Second
	replyTimeout = 5 * time.Second
)

// Session is one client connection. Replies and events share a single
// outbound queue drained by the session's writer goroutine.
type Session struct {
	id   string
	conn net.Conn
	out  chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu     sync.Mutex
	window platform.WindowID
}

func newSession(conn net.Conn, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Session{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// Window returns the attached window, or NoWindow.
func (s *Session) Window() platform.WindowID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

func (s *Session) setWindow(id platform.WindowID) {
	s.mu.Lock()
	s.window = id
	s.mu.Unlock()
}

func (s *Session) caller() Caller {
	return Caller{SessionID: s.id, WindowID: s.Window()}
}

// send queues an event without blocking. It reports false when the queue is
// full or the session is gone.
func (s *Session) send(resp *Response) bool {
	data, err := encodeLine(resp)
	if err != nil {
		return false
	}

	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}

// reply queues a response. When the queue is full it waits for room, for the
// session to close, or for replyTimeout.
func (s *Session) reply(resp *Response) bool {
	data, err := encodeLine(resp)
	if err != nil {
		return false
	}

	select {
	case s.out <- data:
		return true
	default:
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()
	select {
	case s.out <- data:
		return true
	case <-s.done:
		return false
	case <-timer.C:
		return false
	}
}

// writeLoop owns the connection. On close it flushes whatever is already
// queued, so a reply sent just before shutdown still reaches the peer.
func (s *Session) writeLoop() {
	defer s.conn.Close()
	for {
		select {
		case data := <-s.out:
			if _, err := s.conn.Write(data); err != nil {
				s.close()
				return
			}
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *Session) flush() {
	s.conn.SetWriteDeadline(time.Now().Add(flushTimeout))
	for {
		select {
		case data := <-s.out:
			if _, err := s.conn.Write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func encodeLine(resp *Response) ([]byte, error) {
	data, err := resp.Marshal()
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
