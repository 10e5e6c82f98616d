// Package client implements the reference client library: dial a server,
// drive the LOGIN/CREATE_ACCOUNT/FILE_*/DIRECTORY_* wire protocol, and run
// the chunked upload/download loop. Grounded on the teacher's cmd/sender
// main.go (connect, then a chunk-send loop reporting progress), generalized
// from a one-file uploader to a full request/response client over
// internal/protocol, and wired to internal/retry for reconnect instead of
// never retrying at all.
package client

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/deb2000-sudo/cloudvault/internal/protocol"
	"github.com/deb2000-sudo/cloudvault/internal/retry"
	"github.com/deb2000-sudo/cloudvault/internal/telemetry"
)

// Client holds one connection to a server plus the reconnect policy keyed
// by that server's address.
type Client struct {
	addr   string
	conn   *protocol.Conn
	raw    net.Conn
	retry  *retry.Policy
	stats  *telemetry.Collector
	userID string
}

// Dial connects to addr and returns a ready Client. The connection is not
// retried here -- callers that want retry semantics use Reconnect.
func Dial(addr string) (*Client, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	protocol.EnableNoDelay(raw)
	return &Client{
		addr:  addr,
		conn:  protocol.NewConn(raw),
		raw:   raw,
		retry: retry.New(),
		stats: telemetry.NewCollector(),
	}, nil
}

// Stats reports the client's average bandwidth estimate (megabits per
// second) and most recent round-trip latency (milliseconds), derived from
// every roundTrip since Dial.
func (c *Client) Stats() (bandwidthMbps, latencyMs float64) {
	return c.stats.BandwidthMbps(), c.stats.LatencyMs()
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.raw.Close()
}

// Reconnect closes the current connection (if any) and redials addr,
// backing off per c.retry and refusing to dial at all while the circuit for
// addr is Open. It is the only place pkg/client consults internal/retry --
// the server core never retries.
func (c *Client) Reconnect() error {
	if state := c.retry.CircuitState(c.addr); state == retry.CircuitOpen {
		return fmt.Errorf("client: circuit open for %s, not retrying yet", c.addr)
	}

	if c.raw != nil {
		c.raw.Close()
	}

	var lastErr error
	for attempt := 1; c.retry.ShouldRetry(attempt); attempt++ {
		start := time.Now()
		raw, err := net.Dial("tcp", c.addr)
		if err == nil {
			protocol.EnableNoDelay(raw)
			c.raw = raw
			c.conn = protocol.NewConn(raw)
			c.retry.RecordSuccess(c.addr)
			return nil
		}
		lastErr = err
		c.retry.RecordFailure(c.addr)
		time.Sleep(c.retry.NextBackoff(attempt, time.Since(start)))
	}
	return fmt.Errorf("client: reconnect to %s failed after retries: %w", c.addr, lastErr)
}

func (c *Client) roundTrip(req *protocol.Packet) (*protocol.Packet, error) {
	start := time.Now()
	if err := c.conn.Send(req); err != nil {
		return nil, fmt.Errorf("client: send %s: %w", req.CommandCode, err)
	}
	c.stats.RecordBytesSent(len(req.Payload))
	resp, err := c.conn.Receive()
	if err != nil {
		return nil, fmt.Errorf("client: receive response to %s: %w", req.CommandCode, err)
	}
	c.stats.RecordRTT(time.Since(start))
	if resp.CommandCode == protocol.Error || resp.Meta("Success") == "false" {
		return resp, fmt.Errorf("client: %s failed: %s", req.CommandCode, resp.Meta("Message"))
	}
	return resp, nil
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Login authenticates and records the returned user id for subsequent
// requests.
func (c *Client) Login(username, password string) error {
	body, _ := json.Marshal(credentialsPayload{Username: username, Password: password})
	resp, err := c.roundTrip(protocol.NewPacket(protocol.LoginRequest, "", nil, body))
	if err != nil {
		return err
	}
	c.userID = resp.Meta("UserId")
	return nil
}

// CreateAccount registers a new user. It does not log the client in.
func (c *Client) CreateAccount(username, password, email string) (userID string, err error) {
	body, _ := json.Marshal(credentialsPayload{Username: username, Password: password, Email: email})
	resp, err := c.roundTrip(protocol.NewPacket(protocol.CreateAccountRequest, "", nil, body))
	if err != nil {
		return "", err
	}
	return resp.Meta("UserId"), nil
}

// Logout ends the session on the server side.
func (c *Client) Logout() error {
	_, err := c.roundTrip(protocol.NewPacket(protocol.LogoutRequest, c.userID, nil, nil))
	return err
}

func (c *Client) request(cmd protocol.CommandCode, meta map[string]string, payload []byte) (*protocol.Packet, error) {
	return c.roundTrip(protocol.NewPacket(cmd, c.userID, meta, payload))
}

// ListFiles lists files in directoryID ("root" for the user's root); an
// empty directoryID applies no directory filter and lists all the user's files.
func (c *Client) ListFiles(directoryID string) (*protocol.Packet, error) {
	return c.request(protocol.FileListRequest, map[string]string{"DirectoryId": directoryID}, nil)
}

// DirectoryContents lists both files and subdirectories of directoryID.
func (c *Client) DirectoryContents(directoryID string) (*protocol.Packet, error) {
	return c.request(protocol.DirectoryContentsRequest, map[string]string{"DirectoryId": directoryID}, nil)
}

// ListDirectories lists the subdirectories of parentID.
func (c *Client) ListDirectories(parentID string) (*protocol.Packet, error) {
	return c.request(protocol.DirectoryListRequest, map[string]string{"ParentDirectoryId": parentID}, nil)
}

type directoryCreateRequest struct {
	DirectoryName     string  `json:"directoryName"`
	ParentDirectoryID *string `json:"parentDirectoryId"`
}

// Mkdir creates a directory named name under parentID ("" means root).
func (c *Client) Mkdir(name, parentID string) (*protocol.Packet, error) {
	var parent *string
	if parentID != "" {
		parent = &parentID
	}
	body, _ := json.Marshal(directoryCreateRequest{DirectoryName: name, ParentDirectoryID: parent})
	return c.request(protocol.DirectoryCreateRequest, nil, body)
}

// Rmdir deletes directoryID, recursively if recursive is set.
func (c *Client) Rmdir(directoryID string, recursive bool) (*protocol.Packet, error) {
	return c.request(protocol.DirectoryDeleteRequest, map[string]string{
		"DirectoryId": directoryID,
		"Recursive":   boolString(recursive),
	}, nil)
}

// DeleteFile deletes fileID.
func (c *Client) DeleteFile(fileID string) (*protocol.Packet, error) {
	return c.request(protocol.FileDeleteRequest, map[string]string{"FileId": fileID}, nil)
}

type fileMoveRequest struct {
	FileID            string  `json:"fileId"`
	TargetDirectoryID *string `json:"targetDirectoryId"`
}

// MoveFile moves fileID into targetDirectoryID ("" means root).
func (c *Client) MoveFile(fileID, targetDirectoryID string) (*protocol.Packet, error) {
	var target *string
	if targetDirectoryID != "" {
		target = &targetDirectoryID
	}
	body, _ := json.Marshal(fileMoveRequest{FileID: fileID, TargetDirectoryID: target})
	return c.request(protocol.FileMoveRequest, nil, body)
}

type directoryRenameRequest struct {
	DirectoryID string `json:"directoryId"`
	NewName     string `json:"newName"`
}

// RenameDirectory renames directoryID to newName.
func (c *Client) RenameDirectory(directoryID, newName string) (*protocol.Packet, error) {
	body, _ := json.Marshal(directoryRenameRequest{DirectoryID: directoryID, NewName: newName})
	return c.request(protocol.DirectoryRenameRequest, nil, body)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
