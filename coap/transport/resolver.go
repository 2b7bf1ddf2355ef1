package transport

import (
	"context"
	"fmt"
	"net"
)

// Resolver resolves a request's URL host to an IP address using
// net.Resolver. It satisfies coap.Resolver.
type Resolver struct {
	Net *net.Resolver // nil uses net.DefaultResolver
}

// NewResolver returns a Resolver backed by net.DefaultResolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

func (r *Resolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	res := r.Net
	if res == nil {
		res = net.DefaultResolver
	}

	addrs, err := res.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("transport: resolve %q: no addresses found", host)
	}
	return addrs[0].IP, nil
}
