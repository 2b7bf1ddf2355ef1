package coap

import "fmt"

// Kind classifies why a transaction finished without a usable response
// payload. A 4.xx/5.xx reply is not a Kind - the server answered the
// request, so it is delivered to the caller as an ordinary Result.
type Kind int

const (
	// KindInvalidURLScheme means the request URL was not coap://...
	KindInvalidURLScheme Kind = iota
	// KindHostNotFound means the Resolver could not resolve the host.
	KindHostNotFound
	// KindInvalidPDU means a datagram failed to parse, or a block
	// sequence went out of order.
	KindInvalidPDU
	// KindTimeout means the retransmission budget was exhausted with
	// no matching response.
	KindTimeout
	// KindCancelled means the caller cancelled the transaction.
	KindCancelled
	// KindProtocolError means the peer sent a RESET.
	KindProtocolError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURLScheme:
		return "InvalidURLScheme"
	case KindHostNotFound:
		return "HostNotFound"
	case KindInvalidPDU:
		return "InvalidPDU"
	case KindTimeout:
		return "Timeout"
	case KindCancelled:
		return "Cancelled"
	case KindProtocolError:
		return "ProtocolError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned to a caller when a transaction finishes without a
// response to report. It wraps an optional underlying cause and mimics
// the Timeout()/Temporary() convention of the net.Error interface.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "coap: " + e.Kind.String()
	}
	return fmt.Sprintf("coap: %s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Timeout() bool {
	return e.Kind == KindTimeout
}

func (e *Error) Temporary() bool {
	return e.Kind == KindTimeout || e.Kind == KindHostNotFound
}

func wrapError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
