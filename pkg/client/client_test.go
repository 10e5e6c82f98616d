package client

import (
	"bytes"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deb2000-sudo/cloudvault/internal/auth"
	"github.com/deb2000-sudo/cloudvault/internal/logging"
	"github.com/deb2000-sudo/cloudvault/internal/server"
	"github.com/deb2000-sudo/cloudvault/internal/storage"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("listen_addr: \"127.0.0.1:0\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	holder, err := server.NewConfigHolder(configPath)
	if err != nil {
		t.Fatalf("NewConfigHolder: %v", err)
	}

	users, err := auth.NewFileUserRepository(filepath.Join(dir, "users.json"))
	if err != nil {
		t.Fatalf("NewFileUserRepository: %v", err)
	}
	if _, err := users.CreateUser("carol", "s3cret!", "carol@example.com", "User"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	backend, err := storage.NewFilesystemBackend(filepath.Join(dir, "storage"), logging.NewNop())
	if err != nil {
		t.Fatalf("NewFilesystemBackend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	srv := server.New(holder, logging.NewNop(), users, backend)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.ServeOn(ln)
	t.Cleanup(func() { srv.Shutdown() })

	return ln.Addr().String()
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	addr := startTestServer(t)

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Login("carol", "s3cret!"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "payload.bin")
	want := make([]byte, 3*1024*1024+42) // spans multiple 1 MiB chunks
	if _, err := rand.Read(want); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	if err := os.WriteFile(srcPath, want, 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	fileID, err := c.Upload(srcPath, "", "application/octet-stream", false)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if fileID == "" {
		t.Fatal("Upload returned empty fileID")
	}

	dstPath := filepath.Join(dir, "downloaded.bin")
	if err := c.Download(fileID, dstPath, false); err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("downloaded content mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}

	if _, err := c.ListFiles(""); err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if _, err := c.DeleteFile(fileID); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
}

func TestLoginWithWrongPasswordFails(t *testing.T) {
	addr := startTestServer(t)

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Login("carol", "wrong-password"); err == nil {
		t.Fatal("Login with wrong password should have failed")
	}
}

func TestDialTimesOutQuicklyOnUnreachableAddr(t *testing.T) {
	// A closed local listener address should fail fast, not hang.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	done := make(chan error, 1)
	go func() {
		_, err := Dial(addr)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Dial to a closed port should have failed")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Dial did not return promptly")
	}
}
