package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// recvBufferSize matches the teacher's tcp_receiver buffering: reads are
// batched through a bufio.Reader rather than one syscall per frame.
const recvBufferSize = 8 * 1024

// Conn wraps a duplex byte stream (typically a net.Conn) with the
// length-prefixed packet framing: every frame is a 4-byte little-endian
// length prefix followed by that many bytes of JSON body. Send and Receive
// each hold their own lock, so one goroutine can be blocked writing a large
// upload chunk while another reads the next packet without the two
// interfering -- the duplex half of the session's read/write split.
type Conn struct {
	rw net.Conn
	r  *bufio.Reader

	sendMu sync.Mutex
	recvMu sync.Mutex
}

// NewConn wraps rw. If rw supports Nagle control (a *net.TCPConn), the
// caller is expected to have already called SetNoDelay; Conn itself does not
// reach into the concrete type.
func NewConn(rw net.Conn) *Conn {
	return &Conn{
		rw: rw,
		r:  bufio.NewReaderSize(rw, recvBufferSize),
	}
}

// Send encodes p and writes it as one length-prefixed frame. Safe to call
// concurrently with Receive, but not with another Send.
func (c *Conn) Send(p *Packet) error {
	body, err := Encode(p)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := c.rw.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("protocol: write length prefix: %w", err)
	}
	if _, err := c.rw.Write(body); err != nil {
		return fmt.Errorf("protocol: write body: %w", err)
	}
	return nil
}

// Receive blocks until one full frame has arrived and returns the decoded
// Packet. Safe to call concurrently with Send, but not with another Receive.
func (c *Conn) Receive() (*Packet, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, fmt.Errorf("protocol: frame length must be > 0")
	}
	if n > MaxPacketSize {
		return nil, fmt.Errorf("protocol: frame of %d bytes exceeds max %d", n, MaxPacketSize)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, fmt.Errorf("protocol: read body: %w", err)
	}

	return Decode(body)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.rw.Close()
}

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.rw.RemoteAddr()
}

// EnableNoDelay disables Nagle's algorithm on the underlying connection when
// it is a TCP connection, matching the teacher's receiver: a session
// exchanges many small packets and batching them would add latency without
// saving bandwidth. It also sizes the socket's own read/write buffers to
// recvBufferSize, matching the bufio.Reader sitting in front of them.
func EnableNoDelay(rw net.Conn) {
	if tcp, ok := rw.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetReadBuffer(recvBufferSize)
		_ = tcp.SetWriteBuffer(recvBufferSize)
	}
}
