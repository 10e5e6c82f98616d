package server

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deb2000-sudo/cloudvault/internal/auth"
	"github.com/deb2000-sudo/cloudvault/internal/logging"
	"github.com/deb2000-sudo/cloudvault/internal/protocol"
	"github.com/deb2000-sudo/cloudvault/internal/storage"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	body := "listen_addr: \"127.0.0.1:0\"\nmax_concurrent_sessions: 2\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	holder, err := NewConfigHolder(configPath)
	if err != nil {
		t.Fatalf("NewConfigHolder: %v", err)
	}

	users, err := auth.NewFileUserRepository(filepath.Join(dir, "users.json"))
	if err != nil {
		t.Fatalf("NewFileUserRepository: %v", err)
	}
	backend, err := storage.NewFilesystemBackend(filepath.Join(dir, "storage"), logging.NewNop())
	if err != nil {
		t.Fatalf("NewFilesystemBackend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	srv := New(holder, logging.NewNop(), users, backend)
	return srv, configPath
}

func TestServerAcceptsLoginRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	if err := EnsureAdminUser(srv.users, "admin", "adminpw", "admin@example.com"); err != nil {
		t.Fatalf("EnsureAdminUser: %v", err)
	}
	if _, err := srv.users.CreateUser("alice", "hunter2", "alice@example.com", "User"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv.ln = ln
	go srv.acceptLoop()
	defer srv.Shutdown()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	pc := protocol.NewConn(conn)
	body, _ := json.Marshal(loginRequest{Username: "alice", Password: "hunter2"})
	if err := pc.Send(protocol.NewPacket(protocol.LoginRequest, "", nil, body)); err != nil {
		t.Fatalf("send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := pc.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if resp.Meta("Success") != "true" {
		t.Fatalf("login failed: %+v", resp)
	}
	if srv.SessionCount() != 1 {
		t.Fatalf("SessionCount = %d, want 1", srv.SessionCount())
	}
}

func TestServerAdmissionGateRejectsBeyondCapacity(t *testing.T) {
	srv, _ := newTestServer(t)
	// Drain the rate limiter burst so TryAcquire fails deterministically
	// rather than racing the test against refill timing.
	for srv.admission.TryAcquire() {
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv.ln = ln
	go srv.acceptLoop()
	defer srv.Shutdown()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected the rejected connection to be closed with no response")
	}
}
