package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestUDPLoopbackRoundTrip(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen(server) failed: %v", err)
	}
	defer server.Close()

	client, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen(client) failed: %v", err)
	}
	defer client.Close()

	received := make(chan []byte, 1)
	server.SetReceiver(func(addr net.IP, port uint16, data []byte) {
		received <- data
	})

	serverAddr := server.conn.LocalAddr().(*net.UDPAddr)
	if err := client.Send(context.Background(), serverAddr.IP, uint16(serverAddr.Port), []byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != "hello" {
			t.Errorf("got %q, want %q", data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestResolverParsesLiteralIP(t *testing.T) {
	r := NewResolver()
	ip, err := r.Resolve(context.Background(), "192.0.2.1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !ip.Equal(net.ParseIP("192.0.2.1")) {
		t.Errorf("got %v, want 192.0.2.1", ip)
	}
}
