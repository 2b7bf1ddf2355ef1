package coap

import (
	"context"
	"fmt"
	"net/url"
)

// A Request represents a CoAP request to be submitted by a Client.
//
// The shape is oriented on net/http.Request to make the API familiar
// to developers coming from HTTP clients.
type Request struct {
	// Method is one of EMPTY, GET, POST, PUT, DELETE. NewRequest turns
	// an empty string into GET; a Request built directly with an empty
	// Method is sent with the empty code 0.00.
	Method string

	// Confirmable requests are acknowledged (and retransmitted) by
	// the engine; non-confirmable requests are fired once.
	Confirmable bool

	// URL is the coap:// endpoint being requested. Host specifies the
	// server to connect to; the engine resolves it once per
	// transaction start.
	URL *url.URL

	// ContentFormat is sent as the CONTENT-FORMAT option on the
	// initial PDU of every POST/PUT request.
	ContentFormat uint16

	// Payload is the request body. Immutable once submitted; the
	// block-wise driver slices it without mutating the slice.
	Payload []byte

	ctx context.Context
}

// NewRequest returns a new Request for method against urlStr.
func NewRequest(method, urlStr string, payload []byte) (*Request, error) {
	if method == "" {
		method = "GET"
	}
	if !ValidMethod(method) {
		return nil, fmt.Errorf("coap: invalid method %q", method)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}
	u.Host = removeEmptyPort(u.Host)

	return &Request{
		Method:      method,
		Confirmable: true,
		URL:         u,
		Payload:     payload,
	}, nil
}

// Context returns the request's context, defaulting to Background.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of r with its context changed to
// ctx, which controls cancellation of the submitted transaction.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("nil context")
	}
	r2 := new(Request)
	*r2 = *r
	r2.ctx = ctx
	return r2
}

var validMethods = []string{"EMPTY", "GET", "POST", "PUT", "DELETE"}

func ValidMethod(method string) bool {
	for _, m := range validMethods {
		if method == m {
			return true
		}
	}
	return false
}
