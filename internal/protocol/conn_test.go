package protocol

import (
	"net"
	"sync"
	"testing"
)

func TestConnSendReceiveRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := NewConn(server)
	clientConn := NewConn(client)

	want := NewPacket(FileListRequest, "user-1", map[string]string{"directoryId": "root"}, []byte("payload"))

	errCh := make(chan error, 1)
	go func() { errCh <- clientConn.Send(want) }()

	got, err := serverConn.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.CommandCode != want.CommandCode || got.UserID != want.UserID {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if string(got.Payload) != string(want.Payload) {
		t.Errorf("Payload = %q, want %q", got.Payload, want.Payload)
	}
}

// TestConnConcurrentSendAndReceive exercises the independent send/receive
// locks: one goroutine sends while another receives on the same Conn pair
// without the two blocking each other.
func TestConnConcurrentSendAndReceive(t *testing.T) {
	aSide, bSide := net.Pipe()
	defer aSide.Close()
	defer bSide.Close()

	a := NewConn(aSide)
	b := NewConn(bSide)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if err := a.Send(NewPacket(FileUploadChunkRequest, "u", nil, []byte{byte(i)})); err != nil {
				t.Errorf("a.Send: %v", err)
				return
			}
		}
	}()

	received := make([]*Packet, 0, n)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			p, err := b.Receive()
			if err != nil {
				t.Errorf("b.Receive: %v", err)
				return
			}
			received = append(received, p)
		}
	}()

	wg.Wait()
	if len(received) != n {
		t.Fatalf("received %d packets, want %d", len(received), n)
	}
	for i, p := range received {
		if len(p.Payload) != 1 || p.Payload[0] != byte(i) {
			t.Errorf("packet %d payload = %v, want [%d]", i, p.Payload, i)
		}
	}
}

func TestConnRejectsOversizedFrame(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := NewConn(server)

	go func() {
		var lenBuf [4]byte
		lenBuf[0] = 0xff
		lenBuf[1] = 0xff
		lenBuf[2] = 0xff
		lenBuf[3] = 0xff
		_, _ = client.Write(lenBuf[:])
	}()

	if _, err := serverConn.Receive(); err == nil {
		t.Fatal("expected error receiving oversized frame length, got nil")
	}
}
