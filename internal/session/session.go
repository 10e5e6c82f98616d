// Package session implements the per-connection state machine: the
// hardest and most central piece of this server. A Session owns one
// accepted connection, dispatches every inbound Packet to its current
// State, and tracks the bookkeeping (userId, failed login count, the single
// in-flight transfer, idle activity) the states consult.
package session

import (
	"sync"
	"time"

	"github.com/deb2000-sudo/cloudvault/internal/auth"
	"github.com/deb2000-sudo/cloudvault/internal/logging"
	"github.com/deb2000-sudo/cloudvault/internal/protocol"
	"github.com/deb2000-sudo/cloudvault/internal/storage"
	"github.com/deb2000-sudo/cloudvault/internal/transfer"
	"github.com/google/uuid"
)

// Deps bundles the collaborators every state's Handle may call into. It is
// constructed once per server and shared read-only across all sessions --
// the collaborators themselves are responsible for their own internal
// locking (see internal/auth.FileUserRepository, internal/storage.FilesystemBackend).
type Deps struct {
	Users   auth.UserRepository
	Storage storage.Backend
	Log     logging.Logger
}

// State is one node of the session state machine. Exactly one State is
// active at a time; Handle is a pure function of (state, packet) plus
// whatever the state needs to read from Session, matching testable
// property 2 (state legality is a pure function of (state, commandCode)).
type State interface {
	Name() string
	OnEnter(s *Session)
	OnExit(s *Session)
	// Handle processes p and returns the response to send (nil to send
	// nothing) and the state to transition to (itself, for no transition).
	Handle(s *Session, p *protocol.Packet) (resp *protocol.Packet, next State)
}

// maxFailedLogins is the lockout threshold from spec.md section 4.3.
const maxFailedLogins = 5

// Session is one accepted connection's lifecycle and mutable state. All
// fields below mu are only ever touched while holding it; Conn owns its own
// independent send/receive locks and is safe to use unguarded by Session's.
type Session struct {
	ID   string
	Conn *protocol.Conn
	deps Deps

	mu                   sync.Mutex
	state                State
	userID               string
	failedLoginAttempts  int
	transferCtx          *transfer.Context
	lastActivityAt       time.Time
	createdAt            time.Time
}

// New creates a session in AuthRequired over conn. OnEnter for the initial
// state is invoked before returning.
func New(conn *protocol.Conn, deps Deps) *Session {
	now := time.Now()
	s := &Session{
		ID:             uuid.NewString(),
		Conn:           conn,
		deps:           deps,
		lastActivityAt: now,
		createdAt:      now,
	}
	s.state = authRequiredState{}
	s.state.OnEnter(s)
	return s
}

// UserID returns the authenticated user, or "" before login.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// StateName returns the current state's name, for logging/metrics.
func (s *Session) StateName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Name()
}

// LastActivityAt returns the last time a packet was accepted from this
// session, consulted by the idle-session sweep.
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivityAt = time.Now()
	s.mu.Unlock()
}

// transition runs onExit/onEnter and swaps the active state. Called with
// s.mu NOT held; it acquires it itself.
func (s *Session) transition(next State) {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()

	if next == nil || sameState(cur, next) {
		return
	}
	cur.OnExit(s)

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	next.OnEnter(s)
}

func sameState(a, b State) bool {
	return a.Name() == b.Name()
}

// Dispatch is the single entry point every inbound Packet goes through: it
// updates activity tracking, hands the packet to the current state, and
// applies any resulting transition. Exported so both Run and tests can
// drive the state machine without going through a live network connection.
func (s *Session) Dispatch(p *protocol.Packet) *protocol.Packet {
	s.touch()

	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()

	resp, next := cur.Handle(s, p)
	s.transition(next)
	return resp
}

// IsDisconnecting reports whether the session has reached the terminal
// state; Run uses this to know when to stop reading and close the
// connection.
func (s *Session) IsDisconnecting() bool {
	return s.StateName() == disconnectingStateName
}

// ForceDisconnect transitions the session straight to Disconnecting,
// bypassing normal packet handling, and closes the connection so that a
// goroutine blocked in Conn.Receive (an idle connection, or one the sweep
// is evicting) wakes up immediately instead of waiting for another packet
// that may never arrive. Used by the idle-session sweep (spec.md section
// 4.3's T_sweep) and by graceful shutdown.
func (s *Session) ForceDisconnect() {
	s.transition(disconnectingState{})
	_ = s.Conn.Close()
}

// Run reads packets from Conn until the connection closes or the session
// reaches Disconnecting, dispatching each to the state machine and writing
// back any response. It is the goroutine body the acceptor spawns per
// connection -- an arbitrarily slow session blocks only this goroutine.
func (s *Session) Run() {
	defer s.Conn.Close()

	for {
		p, err := s.Conn.Receive()
		if err != nil {
			s.deps.Log.Debug("session receive error, closing",
				logging.String("sessionId", s.ID), logging.Err(err))
			s.ForceDisconnect()
			return
		}

		resp := s.Dispatch(p)
		if resp != nil {
			if err := s.Conn.Send(resp); err != nil {
				s.deps.Log.Debug("session send error, closing",
					logging.String("sessionId", s.ID), logging.Err(err))
				s.ForceDisconnect()
				return
			}
		}

		if s.IsDisconnecting() {
			return
		}
	}
}
