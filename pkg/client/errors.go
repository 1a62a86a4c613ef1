package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for use with errors.Is.
var (
	ErrCertLoad         = errors.New("client certificate could not be loaded")
	ErrTransport        = errors.New("transport failure")
	ErrUnexpectedStatus = errors.New("unexpected response")
	ErrInvalidEndpoint  = errors.New("invalid endpoint")
	ErrInvalidConfig    = errors.New("invalid client configuration")
)

// Kind classifies an Error.
type Kind int

const (
	KindCertLoad Kind = iota + 1
	KindTransport
	KindUnexpected
	KindInvalidEndpoint
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindCertLoad:
		return "cert_load"
	case KindTransport:
		return "transport"
	case KindUnexpected:
		return "unexpected"
	case KindInvalidEndpoint:
		return "invalid_endpoint"
	case KindConfig:
		return "config"
	}
	return "unknown"
}

// TransportKind narrows a KindTransport error.
type TransportKind int

const (
	TransportDial TransportKind = iota + 1
	TransportHandshake
	TransportTimeout
	TransportCanceled
	TransportMalformedResponse
)

func (k TransportKind) String() string {
	switch k {
	case TransportDial:
		return "dial"
	case TransportHandshake:
		return "handshake"
	case TransportTimeout:
		return "timeout"
	case TransportCanceled:
		return "canceled"
	case TransportMalformedResponse:
		return "malformed_response"
	}
	return "unknown"
}

// Error is the error type returned by this package.
type Error struct {
	Kind      Kind
	Transport TransportKind // set when Kind == KindTransport
	Status    int           // set when Kind == KindUnexpected
	Op        string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch e.Kind {
	case KindTransport:
		fmt.Fprintf(&b, "transport failure (%s)", e.Transport)
	case KindUnexpected:
		fmt.Fprintf(&b, "unexpected status %d", e.Status)
	case KindCertLoad:
		b.WriteString("load client certificate")
	case KindInvalidEndpoint:
		b.WriteString("invalid endpoint")
	default:
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrCertLoad:
		return e.Kind == KindCertLoad
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrUnexpectedStatus:
		return e.Kind == KindUnexpected
	case ErrInvalidEndpoint:
		return e.Kind == KindInvalidEndpoint
	case ErrInvalidConfig:
		return e.Kind == KindConfig
	}
	return false
}

// Retryable reports whether repeating the request may succeed. Only dial
// failures and timeouts qualify; a rejected certificate never does.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport && (e.Transport == TransportDial || e.Transport == TransportTimeout)
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

func transportError(kind TransportKind, err error) *Error {
	return &Error{Kind: KindTransport, Transport: kind, Op: "send", Err: err}
}

// classifyTransport maps an error from http.Client.Do to a TransportKind.
func classifyTransport(err error) TransportKind {
	if errors.Is(err, context.Canceled) {
		return TransportCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}
	if isHandshakeError(err) {
		return TransportHandshake
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportDial
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return TransportDial
	}
	return TransportMalformedResponse
}

func isHandshakeError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
		alertErr    tls.AlertError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &recordErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidCert),
		errors.As(err, &alertErr):
		return true
	}
	// Alerts sent by the peer are not exported as a type.
	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:")
}
