// Package afip implements the native clients for AFIP's SOAP web services:
// WSAA (authentication), ws_sr_padron_a5 (taxpayer registry) and WSFEv1
// (electronic invoicing), plus the code tables and the compliance QR payload.
// All errors produced by this package carry a Kind so callers can tell a
// business rejection from a broken certificate or a network problem.
package afip

import (
	"errors"
	"fmt"
)

// Kind classifies every failure this package can produce.
type Kind string

const (
	KindConfigurationMissing Kind = "configuration_missing"
	KindCertificateInvalid   Kind = "certificate_invalid"
	KindSigningFailure       Kind = "signing_failure"
	KindNetworkFailure       Kind = "network_failure"
	KindAuthorityFault       Kind = "authority_fault"
	KindResponseParseFailure Kind = "response_parse_failure"
)

// Error is the canonical error type of the package.
// AuthorityFault messages preserve the remote service's text verbatim.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "wsaa.login"
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func wrapError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// ErrorKind extracts the Kind of err, or "" when err is not a package error.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool { return ErrorKind(err) == kind }
