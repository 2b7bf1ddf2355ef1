package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv6"
)

// UDP6 is a coap.Transport over an explicit IPv6 ipv6.PacketConn. It is
// the unicast-only descendant of the teacher's multicast UDP6 listener:
// joining a multicast group is a server-hosting concern and out of
// scope for a client engine, so JoinGroup is never called here.
type UDP6 struct {
	pktConn *ipv6.PacketConn
	conn    net.PacketConn

	mu       sync.RWMutex
	receiver func(addr net.IP, port uint16, data []byte)

	closeOnce sync.Once
	done      chan struct{}
}

// ListenUDP6 opens a UDP6 socket on the given port across all
// interfaces ("[::]:port") and starts its read loop.
func ListenUDP6(port int) (*UDP6, error) {
	c, err := net.ListenPacket("udp6", fmt.Sprintf("[::]:%d", port))
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp6: %w", err)
	}

	u := &UDP6{
		pktConn: ipv6.NewPacketConn(c),
		conn:    c,
		done:    make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

func (u *UDP6) SetReceiver(receiver func(addr net.IP, port uint16, data []byte)) {
	u.mu.Lock()
	u.receiver = receiver
	u.mu.Unlock()
}

func (u *UDP6) Send(ctx context.Context, addr net.IP, port uint16, data []byte) error {
	_, err := u.pktConn.WriteTo(data, nil, &net.UDPAddr{IP: addr, Port: int(port)})
	return err
}

func (u *UDP6) Close() error {
	err := u.conn.Close()
	u.closeOnce.Do(func() { close(u.done) })
	return err
}

func (u *UDP6) readLoop() {
	buf := make([]byte, 1500)
	for {
		n, _, raddr, err := u.pktConn.ReadFrom(buf)
		if err != nil {
			select {
			case <-u.done:
				return
			default:
				return
			}
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		udpAddr, ok := raddr.(*net.UDPAddr)
		if !ok {
			continue
		}

		u.mu.RLock()
		receiver := u.receiver
		u.mu.RUnlock()
		if receiver != nil {
			receiver(udpAddr.IP, uint16(udpAddr.Port), data)
		}
	}
}
