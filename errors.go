package spf

import (
	"errors"
	"fmt"

	"github.com/sentinelmail/spf/spferr"
)

// Errors can be used for root cause analysis.
var (
	ErrDNSTemperror           = errors.New("temporary DNS error")
	ErrDNSNotFound            = errors.New("domain not found")
	ErrDNSLimitExceeded       = errors.New("DNS lookup limit exceeded")
	ErrVoidLookupLimit        = errors.New("void lookup limit exceeded")
	ErrRecursionLimitExceeded = errors.New("recursion depth limit exceeded")
	ErrSPFNotFound            = errors.New("SPF record not found")
	ErrTooManySPFRecords      = errors.New("too many SPF records")
	ErrTooManyMXRecords       = errors.New("too many MX records")
	ErrTooManyRedirects       = errors.New(`too many "redirect"`)
	ErrTooManyExps            = errors.New(`too many "exp"`)
	ErrUnknownMechanism       = errors.New("unknown mechanism")
	ErrInvalidCIDRLength      = errors.New("invalid CIDR length")
	ErrSyntaxError            = errors.New("wrong syntax")
	ErrEmptyDomain            = errors.New("empty domain")
	ErrNotIPv4                = errors.New("address isn't ipv4")
	ErrNotIPv6                = errors.New("address isn't ipv6")
	ErrLoopDetected           = errors.New("infinite recursion detected")
)

// DomainError represents a domain check error.
type DomainError struct {
	Err    string // description of the error
	Domain string // domain checked
}

func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Domain == "" {
		return e.Err
	}
	return e.Err + ": " + e.Domain
}

func newInvalidDomainError(domain string) error {
	return &DomainError{
		Err:    "invalid domain name",
		Domain: domain,
	}
}

// SyntaxError represents a record parsing error. It holds a reference to the
// faulty term as well as the underlying error.
type SyntaxError struct {
	term Term
	err  error
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("error checking %q: %s", e.TermString(), e.err.Error())
}

func (e SyntaxError) Unwrap() error { return e.err }

// TermString returns the textual form of the term that failed to parse or
// evaluate. It may be empty when the failure is not tied to a single term.
func (e SyntaxError) TermString() string {
	if e.term == nil {
		return ""
	}
	return e.term.String()
}

// Kind classifies err into one of the spferr kinds. It unwraps wrapped
// errors before classifying.
func Kind(err error) spferr.Kind {
	switch {
	case err == nil:
		return spferr.KindUnknown
	case errors.Is(err, ErrDNSTemperror),
		errors.Is(err, ErrDNSNotFound),
		errors.Is(err, ErrSPFNotFound):
		return spferr.KindDNS
	case errors.Is(err, ErrDNSLimitExceeded),
		errors.Is(err, ErrVoidLookupLimit),
		errors.Is(err, ErrRecursionLimitExceeded),
		errors.Is(err, ErrTooManyMXRecords),
		errors.Is(err, ErrLoopDetected):
		return spferr.KindLimit
	case errors.Is(err, ErrSyntaxError),
		errors.Is(err, ErrUnknownMechanism),
		errors.Is(err, ErrInvalidCIDRLength),
		errors.Is(err, ErrTooManySPFRecords),
		errors.Is(err, ErrTooManyRedirects),
		errors.Is(err, ErrTooManyExps),
		errors.Is(err, ErrNotIPv4),
		errors.Is(err, ErrNotIPv6):
		return spferr.KindSyntax
	default:
		var de *DomainError
		if errors.As(err, &de) {
			return spferr.KindValidation
		}
		var se SyntaxError
		if errors.As(err, &se) {
			return spferr.KindSyntax
		}
		return spferr.KindUnknown
	}
}
