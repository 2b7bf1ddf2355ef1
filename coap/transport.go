package coap

import (
	"context"
	"net"
	"time"
)

// Resolver looks up the IP address backing a request's URL host. It is
// invoked once per transaction start.
type Resolver interface {
	Resolve(ctx context.Context, host string) (net.IP, error)
}

// Transport is the datagram send/receive abstraction the engine is
// built on; it owns the UDP socket and is the only writer to it. The
// engine calls SetReceiver exactly once, at construction, to install
// its inbound datagram callback.
type Transport interface {
	Send(ctx context.Context, addr net.IP, port uint16, data []byte) error
	SetReceiver(receiver func(addr net.IP, port uint16, data []byte))
}

// Clock arms one-shot timers. Production code uses the real clock;
// tests use a fake one driven manually so retransmission schedules can
// be asserted without sleeping.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle returned by Clock.AfterFunc. Stop prevents a
// pending callback from firing; it is a no-op if the timer already
// fired or was already stopped.
type Timer interface {
	Stop() bool
}

// realClock implements Clock with the standard library's time.AfterFunc.
type realClock struct{}

// NewRealClock returns a Clock backed by time.AfterFunc, suitable for
// production use.
func NewRealClock() Clock {
	return realClock{}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
