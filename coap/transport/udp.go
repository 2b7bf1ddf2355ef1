// Package transport provides the production UDP datagram transport
// and host resolver the coap package's engine is built against.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// UDP is a coap.Transport backed by a single *net.UDPConn. It owns the
// socket and is the only writer to it, started by Listen and read by
// one background goroutine that hands every datagram to the receiver
// installed via SetReceiver.
type UDP struct {
	conn   *net.UDPConn
	logger logrus.FieldLogger

	mu       sync.RWMutex
	receiver func(addr net.IP, port uint16, data []byte)

	closeOnce sync.Once
	done      chan struct{}
}

// Listen opens a UDP socket on the given local address ("" binds all
// interfaces, any port) and starts its read loop. addr may be a v4 or
// v6 wildcard, e.g. ":0" or "[::]:0".
func Listen(addr string) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve local addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}

	u := &UDP{
		conn:   conn,
		logger: logrus.StandardLogger(),
		done:   make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

// SetReceiver installs the callback invoked for every inbound
// datagram. It satisfies coap.Transport without importing the coap
// package, avoiding an import cycle.
func (u *UDP) SetReceiver(receiver func(addr net.IP, port uint16, data []byte)) {
	u.mu.Lock()
	u.receiver = receiver
	u.mu.Unlock()
}

// Send writes data to addr:port. ctx is accepted for interface
// symmetry with other transports; UDP writes never block long enough
// to need cancellation.
func (u *UDP) Send(ctx context.Context, addr net.IP, port uint16, data []byte) error {
	_, err := u.conn.WriteToUDP(data, &net.UDPAddr{IP: addr, Port: int(port)})
	return err
}

// Close stops the read loop and releases the socket.
func (u *UDP) Close() error {
	err := u.conn.Close()
	u.closeOnce.Do(func() { close(u.done) })
	return err
}

func (u *UDP) readLoop() {
	buf := make([]byte, 1500)
	for {
		n, raddr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-u.done:
				return
			default:
				u.logger.WithError(err).Warn("coap/transport: read failed")
				return
			}
		}

		// Every pending datagram gets its own copy and its own call to
		// the receiver; none are dropped in favor of only the latest.
		data := make([]byte, n)
		copy(data, buf[:n])

		u.mu.RLock()
		receiver := u.receiver
		u.mu.RUnlock()
		if receiver != nil {
			receiver(raddr.IP, uint16(raddr.Port), data)
		}
	}
}
