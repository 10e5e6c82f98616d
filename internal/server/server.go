package server

import (
	"fmt"
	"net"

	"github.com/robfig/cron/v3"

	"github.com/deb2000-sudo/cloudvault/internal/auth"
	"github.com/deb2000-sudo/cloudvault/internal/logging"
	"github.com/deb2000-sudo/cloudvault/internal/protocol"
	"github.com/deb2000-sudo/cloudvault/internal/session"
	"github.com/deb2000-sudo/cloudvault/internal/storage"
	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

// Server owns the listener, the session registry, the admission gate and
// the idle-sweep cron job -- the accept loop is grounded on the teacher's
// cmd/receiver/main.go runTCPReceiver, generalized from a one-shot receiver
// to the full session state machine.
type Server struct {
	cfg       *ConfigHolder
	log       logging.Logger
	users     auth.UserRepository
	storage   storage.Backend
	registry  *session.Registry
	admission *Admission
	cron      *cron.Cron
	stopWatch func()

	ln net.Listener
}

// New builds a Server from its collaborators without starting it. cfg is
// read once here to size the admission gate; later reloads only affect
// SessionTimeout and SweepInterval for jobs scheduled after New returns.
func New(cfg *ConfigHolder, log logging.Logger, users auth.UserRepository, backend storage.Backend) *Server {
	c := cfg.Get()
	return &Server{
		cfg:       cfg,
		log:       log,
		users:     users,
		storage:   backend,
		registry:  session.NewRegistry(),
		admission: NewAdmission(c.MaxConcurrentSessions, c.AdmissionBurst),
		cron:      cron.New(),
	}
}

// EnsureAdminUser creates the bootstrap Admin account unless a user named
// username already exists. It does not check whether the user store holds
// other users: a non-empty store without that username still gets the
// Admin account.
func EnsureAdminUser(users auth.UserRepository, username, password, email string) error {
	if _, err := users.GetByUsername(username); err == nil {
		return nil
	} else if err != auth.ErrUserNotFound {
		return err
	}
	_, err := users.CreateUser(username, password, email, model.RoleAdmin)
	return err
}

// Serve opens the listener bound to cfg.ListenAddr and runs it via ServeOn.
// It blocks until the accept loop exits.
func (s *Server) Serve() error {
	cfg := s.cfg.Get()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", cfg.ListenAddr, err)
	}
	return s.ServeOn(ln)
}

// ServeOn starts the idle-sweep cron job and the config watcher, then runs
// the accept loop against the caller-supplied listener until it is closed
// by Shutdown. Exported so tests (and callers embedding this server behind
// their own listener setup, e.g. for TLS termination) can supply a
// pre-bound listener instead of going through Serve's own net.Listen. It
// blocks until the accept loop exits.
func (s *Server) ServeOn(ln net.Listener) error {
	s.ln = ln
	s.log.Info("listening", logging.String("addr", ln.Addr().String()))

	stopWatch, err := s.cfg.WatchReload(s.log)
	if err != nil {
		s.log.Warn("config hot-reload disabled", logging.Err(err))
	} else {
		s.stopWatch = stopWatch
	}

	spec := fmt.Sprintf("@every %s", s.cfg.Get().SweepInterval)
	if _, err := s.cron.AddFunc(spec, s.sweepOnce); err != nil {
		return fmt.Errorf("server: schedule idle sweep: %w", err)
	}
	s.cron.Start()

	s.acceptLoop()
	return nil
}

func (s *Server) sweepOnce() {
	timeout := s.cfg.Get().SessionTimeout
	if n := s.registry.Sweep(timeout); n > 0 {
		s.log.Info("idle sweep evicted sessions", logging.Int("count", n))
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.log.Info("accept loop stopped", logging.Err(err))
			return
		}

		if !s.admission.TryAcquire() {
			s.log.Debug("admission gate rejected connection",
				logging.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(raw net.Conn) {
	defer s.admission.Release()

	protocol.EnableNoDelay(raw)
	pc := protocol.NewConn(raw)

	sess := session.New(pc, session.Deps{
		Users:   s.users,
		Storage: s.storage,
		Log:     s.log.With(logging.String("remote", raw.RemoteAddr().String())),
	})
	s.registry.Add(sess)
	defer s.registry.Remove(sess.ID)

	sess.Run()
}

// Shutdown stops accepting new connections, disconnects every live session,
// and stops the idle-sweep cron and config watcher. It does not wait for
// in-flight Run goroutines beyond their own ForceDisconnect-triggered exit.
func (s *Server) Shutdown() error {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.cron.Stop()
	s.registry.ForceDisconnectAll()
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

// SessionCount reports the number of sessions currently registered, for the
// health/resource reporting surface.
func (s *Server) SessionCount() int {
	return s.registry.Count()
}
