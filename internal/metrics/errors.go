package metrics

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Error categories used as keys of Stats.Errors for transport failures.
// HTTP failures are keyed "HTTP <code>".
const (
	ErrTimeout       = "Request timeout"
	ErrCanceled      = "Request canceled"
	ErrDNS           = "DNS lookup failed"
	ErrConnRefused   = "Connection refused"
	ErrConnReset     = "Connection reset"
	ErrTLS           = "TLS error"
	ErrUnexpectedEOF = "Unexpected EOF"
	ErrConnection    = "Connection error"
	ErrRequest       = "Request error"
)

// ErrorCategory maps a transport error to the category it is counted under.
func ErrorCategory(err error) string {
	var (
		dnsErr  *net.DNSError
		netErr  net.Error
		opErr   *net.OpError
		certErr *x509.UnknownAuthorityError
		hostErr x509.HostnameError
	)
	switch {
	case err == nil:
		return ErrRequest
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	case errors.As(err, &dnsErr):
		return ErrDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrConnRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return ErrConnReset
	case errors.As(err, &certErr), errors.As(err, &hostErr):
		return ErrTLS
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return ErrUnexpectedEOF
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout
	case errors.As(err, &opErr):
		return ErrConnection
	}
	return ErrRequest
}

func httpErrorKey(statusCode int) string {
	return fmt.Sprintf("HTTP %d", statusCode)
}
