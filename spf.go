package spf

import (
	"context"
	"net"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// Option sets an optional parameter for evaluating e-mail with regard to SPF.
type Option func(*checker)

// WithResolver makes the check use r for all DNS lookups.
func WithResolver(r Resolver) Option {
	return func(c *checker) {
		c.resolver = r
	}
}

// WithListener attaches an evaluation listener, e.g. a printer.Printer.
func WithListener(l Listener) Option {
	return func(c *checker) {
		c.listener = l
	}
}

// HeloDomain sets the HELO/EHLO identity used by the %{h} macro.
func HeloDomain(s string) Option {
	return func(c *checker) {
		if isDomainName(s) {
			c.heloDomain = s
		}
	}
}

// ReceivingFQDN sets the receiver's domain used by the %{r} macro.
func ReceivingFQDN(s string) Option {
	return func(c *checker) {
		if isDomainName(s) {
			c.receivingFQDN = s
		}
	}
}

// EvaluatedOn pins the timestamp used by the %{t} macro.
func EvaluatedOn(t time.Time) Option {
	return func(c *checker) {
		c.evaluatedOn = t
	}
}

// MaxDNSLookups overrides the RFC 7208 limit of 10 DNS-costing lookups per
// check. Raising it weakens the DoS-amplification guard.
func MaxDNSLookups(n int) Option {
	return func(c *checker) {
		if n > 0 {
			c.limits.DNSLookups = n
		}
	}
}

// MaxVoidLookups overrides the limit of 2 void lookups per check.
func MaxVoidLookups(n int) Option {
	return func(c *checker) {
		if n > 0 {
			c.limits.VoidLookups = n
		}
	}
}

// MaxMXExamined overrides the limit of 10 exchanges examined per mx
// mechanism. Exceeding the limit is a Permerror.
func MaxMXExamined(n int) Option {
	return func(c *checker) {
		if n > 0 {
			c.limits.MXExamined = n
		}
	}
}

// MaxPTRExamined overrides the limit of 10 names examined per ptr
// mechanism. Names beyond the limit are ignored, not an error.
func MaxPTRExamined(n int) Option {
	return func(c *checker) {
		if n > 0 {
			c.limits.PTRExamined = n
		}
	}
}

// MaxRecursionDepth overrides the defensive cap on include/redirect
// nesting.
func MaxRecursionDepth(n int) Option {
	return func(c *checker) {
		if n > 0 {
			c.limits.RecursionDepth = n
		}
	}
}

// CountMXAddressLookups makes the per-exchange address queries under mx
// count against the shared lookup budget. RFC 7208 implementations read
// this point both ways; the default counts only the MX query itself.
func CountMXAddressLookups() Option {
	return func(c *checker) {
		c.countMXAddr = true
	}
}

// CheckHost is the main entry point, evaluating e-mail with regard to SPF.
// As per RFC 7208 it accepts:
// <ip> - IP{4,6} address of the connected client
// <domain> - domain portion of the MAIL FROM or HELO identity
// <sender> - MAIL FROM or HELO identity
// All parameters should already be parsed and dereferenced from real e-mail
// header fields.
//
// CheckHost returns the result of the verification, the explanation produced
// by "exp=" on Fail, and an error carrying the reason for the encountered
// problem. Each call owns its lookup counters; concurrent calls share no
// state. The context deadline bounds every resolver call.
func CheckHost(ctx context.Context, ip net.IP, domain, sender string, opts ...Option) (Result, string, error) {
	return newChecker(opts...).checkHost(ctx, ip, NormalizeFQDN(domain), sender)
}

// selectSPF picks the single SPF policy out of the TXT record set.
// Zero qualifying records mean "none"; more than one is a permerror.
func selectSPF(txt []string) (string, error) {
	var (
		spf string
		n   int
	)
	for _, s := range txt {
		if !HasSPFPrefix(s) {
			continue
		}
		spf = s
		n++
	}
	if n > 1 {
		return "", ErrTooManySPFRecords
	}
	return spf, nil
}

// isDomainName checks if a string is a presentation-format domain name
// (currently restricted to hostname-compatible "preferred name" LDH labels
// and SRV-like "underscore labels"; see golang.org/issue/12421).
//
// Copied from https://github.com/golang/go/blob/8a16c71067ca2cfd09281a82ee150a408095f0bc/src/net/dnsclient.go#L60
func isDomainName(s string) bool {
	// See RFC 1035, RFC 3696.
	// Presentation format has dots before every label except the first, and
	// the terminal empty label is optional here because we assume
	// fully-qualified (absolute) input. We must therefore reserve space for
	// the first and last labels' length octets in wire format, where they are
	// necessary and the maximum total length is 255.
	// So our _effective_ maximum is 253, but 254 is not rejected if the last
	// character is a dot.
	l := len(s)
	if l == 0 || l > 254 || l == 254 && s[l-1] != '.' {
		return false
	}

	last := byte('.')
	ok := false // Ok once we've seen a letter.
	partlen := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		default:
			return false
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_':
			ok = true
			partlen++
		case '0' <= c && c <= '9':
			// fine
			partlen++
		case c == '-':
			// Byte before dash cannot be dot.
			if last == '.' {
				return false
			}
			partlen++
		case c == '.':
			// Byte before dot cannot be dot, dash.
			if last == '.' || last == '-' {
				return false
			}
			if partlen > 63 || partlen == 0 {
				return false
			}
			partlen = 0
		}
		last = c
	}
	if last == '-' || partlen > 63 {
		return false
	}

	return ok
}

// NormalizeFQDN lowercases name, converts internationalized labels to their
// ASCII form, and appends the root dot.
func NormalizeFQDN(name string) string {
	if len(name) == 0 {
		return ""
	}
	if a, err := idna.Lookup.ToASCII(strings.TrimSuffix(name, ".")); err == nil {
		name = a
	}
	if name[len(name)-1] != '.' {
		name = name + "."
	}
	return strings.ToLower(name)
}

// truncateFQDN applies the RFC 7208 section 7.3 rule: when the result of
// macro expansion exceeds 253 characters, the left side is truncated to fit
// by removing successive domain labels (and their following dots) until the
// total length does not exceed 253 characters.
func truncateFQDN(s string) (string, error) {
	l := len(s)
	if l < 254 || l == 254 && s[l-1] == '.' {
		if l == 1 {
			return s, nil
		}
		for i := 1; i < l; i++ {
			if s[i-1] == '.' && s[i] == '.' {
				return "", newInvalidDomainError(s)
			}
		}
		return s, nil
	}
	dot := -1
	l = 0
	i := len(s) - 1
	labelLen := 0
	for i >= 0 && l < 253 {
		if s[i] == '.' {
			if labelLen == 0 {
				return "", newInvalidDomainError(s)
			}
			dot = i
			labelLen = 0
		} else {
			labelLen++
		}
		l++
		i--
	}
	if dot < 0 {
		return "", newInvalidDomainError(s)
	}
	if s[i] == '.' {
		return s[i+1:], nil
	}
	return s[dot+1:], nil
}
