package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/1broseidon/multiwin/internal/platform"
)

// DefaultEventBuffer is the per-session outbound queue length.
const DefaultEventBuffer = 64

// ServerOptions configures a Server.
type ServerOptions struct {
	EventBuffer int
	Logger      *slog.Logger
}

// Server accepts client sessions on a unix socket, routes their requests and
// owns the per-window endpoints events are delivered through.
type Server struct {
	socketPath  string
	listener    net.Listener
	router      *Router
	logger      *slog.Logger
	eventBuffer int

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	endpoints    map[platform.WindowID]*Endpoint
	sessions     map[string]*Session
	shuttingDown bool
	wg           sync.WaitGroup
	// requests counts handleLine calls that have not replied yet.
	requests sync.WaitGroup
}

// NewServer creates a server that will listen on socketPath.
func NewServer(socketPath string, router *Router, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		socketPath:  socketPath,
		router:      router,
		logger:      logger,
		eventBuffer: opts.EventBuffer,
		ctx:         ctx,
		cancel:      cancel,
		endpoints:   make(map[platform.WindowID]*Endpoint),
		sessions:    make(map[string]*Session),
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	// Remove a stale socket left by a previous run.
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isShuttingDown() {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(conn)
		}()
	}
}

// ServeConn runs a session over conn until the peer disconnects. Exposed so
// tests and in-process clients can use net.Pipe.
func (s *Server) ServeConn(conn net.Conn) {
	sess := newSession(conn, s.eventBuffer)
	if !s.addSession(sess) {
		conn.Close()
		return
	}
	defer s.removeSession(sess)

	go sess.writeLoop()
	s.logger.Debug("session opened", "session", sess.ID())

	reader := bufio.NewReader(conn)
	for {
		data, err := reader.ReadBytes('\n')
		if len(data) > 0 {
			s.handleLine(sess, data)
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("IPC read error", "session", sess.ID(), "error", err)
			}
			return
		}
	}
}

func (s *Server) handleLine(sess *Session, data []byte) {
	if !s.beginRequest() {
		sess.reply(NewErrorResponse("daemon is shutting down"))
		return
	}
	defer s.requests.Done()

	req, err := ParseRequest(data)
	if err != nil {
		sess.reply(NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	var resp *Response
	switch req.Command {
	case CommandAttach:
		resp = s.handleAttach(sess, req)
	default:
		resp = s.router.Serve(s.ctx, req, sess.caller())
	}
	resp.ID = req.ID
	sess.reply(resp)
}

func (s *Server) handleAttach(sess *Session, req *Request) *Response {
	var p WindowPayload
	if err := DecodePayload(req.Payload, &p); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid attach payload: %v", err))
	}

	ep, ok := s.Endpoint(p.WindowID)
	if !ok {
		return NewErrorResponse(fmt.Sprintf("Window %d not found", p.WindowID))
	}

	if prev := sess.Window(); prev != platform.NoWindow && prev != p.WindowID {
		if old, ok := s.Endpoint(prev); ok {
			old.detach(sess)
		}
	}
	if err := ep.attach(sess); err != nil {
		return NewErrorResponse(err.Error())
	}

	s.logger.Info("session attached", "session", sess.ID(), "window", p.WindowID)
	resp, _ := NewOKResponse(WindowPayload{WindowID: p.WindowID})
	return resp
}

// OpenEndpoint creates the message channel for a new window.
func (s *Server) OpenEndpoint(id platform.WindowID) *Endpoint {
	ep := newEndpoint(id, s.logger, s.forgetEndpoint)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[id]; ok {
		s.logger.Warn("replacing open endpoint", "window", id)
	}
	s.endpoints[id] = ep
	return ep
}

// Endpoint returns the open endpoint for a window.
func (s *Server) Endpoint(id platform.WindowID) (*Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[id]
	return ep, ok
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) forgetEndpoint(ep *Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endpoints[ep.id] == ep {
		delete(s.endpoints, ep.id)
	}
}

func (s *Server) addSession(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.sessions[sess.ID()] = sess
	return true
}

func (s *Server) removeSession(sess *Session) {
	if id := sess.Window(); id != platform.NoWindow {
		if ep, ok := s.Endpoint(id); ok {
			ep.detach(sess)
		}
	}
	sess.close()

	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()

	s.logger.Debug("session closed", "session", sess.ID())
}

func (s *Server) beginRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.requests.Add(1)
	return true
}

func (s *Server) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

// Stop closes the listener, lets in-flight requests reply, then closes every
// session and removes the socket.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.requests.Wait()
	s.cancel()

	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}
