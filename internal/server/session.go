package server

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"barstock/internal/broker"
)

type sessionState int32

const (
	stateConnecting sessionState = iota
	stateActive
	stateClosing
	stateClosed
)

const sessionWriteWait = 5 * time.Second

// connectionSession is the per-connection state machine. It owns its websocket
// exclusively, probes the client with pings on a fixed interval, and treats a
// missing pong inside the timeout window as a dead peer. Every exit path
// (client close, protocol violation, heartbeat timeout, write failure) funnels
// through shutdown, which unregisters from the broker exactly once.
type connectionSession struct {
	id    string
	user  broker.UserInfo
	scope broker.Scope
	conn  *websocket.Conn
	hub   *broker.Broker

	events chan broker.Event
	done   chan struct{}
	state  atomic.Int32
	once   sync.Once

	pingInterval time.Duration
	pongTimeout  time.Duration
}

func newConnectionSession(conn *websocket.Conn, hub *broker.Broker, scope broker.Scope, user broker.UserInfo, pingInterval, pongTimeout time.Duration) *connectionSession {
	s := &connectionSession{
		id:           uuid.NewString(),
		user:         user,
		scope:        scope,
		conn:         conn,
		hub:          hub,
		events:       make(chan broker.Event, 32),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
	}
	s.state.Store(int32(stateConnecting))
	return s
}

func (s *connectionSession) ID() string            { return s.id }
func (s *connectionSession) User() broker.UserInfo { return s.user }

// Deliver queues an event for the write loop. Never blocks; reports false
// when the session's buffer is full.
func (s *connectionSession) Deliver(event broker.Event) bool {
	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}

// run registers the session and pumps frames until it closes. Blocks for the
// session's lifetime.
func (s *connectionSession) run() {
	s.state.Store(int32(stateActive))
	s.hub.Connect(s.scope, s)
	log.Printf("session active session=%s user=%s", s.id, s.user.Name)
	go s.writeLoop()
	s.readLoop()
}

// readLoop enforces liveness. Gorilla handles ping/pong/close control frames
// inside ReadMessage, so any message it returns is a data frame, which the
// protocol does not allow from clients.
func (s *connectionSession) readLoop() {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.shutdown("read: " + err.Error())
			return
		}
		s.shutdown("protocol violation: unexpected data frame")
		return
	}
}

func (s *connectionSession) writeLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.conn.WriteJSON(event); err != nil {
				s.shutdown("write: " + err.Error())
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(sessionWriteWait)); err != nil {
				s.shutdown("ping: " + err.Error())
				return
			}
		}
	}
}

// shutdown is idempotent: whichever path reaches it first unregisters the
// session and releases the transport; later calls are no-ops.
func (s *connectionSession) shutdown(reason string) {
	s.once.Do(func() {
		s.state.Store(int32(stateClosing))
		s.hub.Disconnect(s.scope, s.id)
		close(s.done)
		_ = s.conn.Close()
		s.state.Store(int32(stateClosed))
		log.Printf("session closed session=%s reason=%s", s.id, reason)
	})
}
