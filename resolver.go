package spf

import (
	"context"
	"net"
)

// Resolver provides the DNS lookups the evaluator consumes. Implementations
// own transport, caching and retry policy; the engine performs no retries
// of its own and treats every call as a potential suspension point.
//
// Every method honors the context deadline. A deadline expiry, a SERVFAIL
// or any other transport failure is reported as ErrDNSTemperror; NXDOMAIN is
// reported as ErrDNSNotFound. A name that exists but has no records of the
// requested type yields an empty slice and a nil error.
type Resolver interface {
	// LookupTXT returns the TXT strings published at name.
	LookupTXT(ctx context.Context, name string) ([]string, error)

	// LookupA returns the IPv4 addresses of name.
	LookupA(ctx context.Context, name string) ([]net.IP, error)

	// LookupAAAA returns the IPv6 addresses of name.
	LookupAAAA(ctx context.Context, name string) ([]net.IP, error)

	// LookupMX returns the mail exchangers of name ordered by preference.
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)

	// LookupPTR returns the reverse names of ip.
	LookupPTR(ctx context.Context, ip net.IP) ([]string, error)
}

// lookupAddrs dispatches to LookupA or LookupAAAA depending on the family
// of the client address, per the "address type in use" rule of RFC 7208.
func lookupAddrs(ctx context.Context, r Resolver, name string, client net.IP) ([]net.IP, error) {
	if client.To4() != nil {
		return r.LookupA(ctx, name)
	}
	return r.LookupAAAA(ctx, name)
}

// errDNS classifies an error returned by the net package. NXDOMAIN maps to
// ErrDNSNotFound; everything else transient or unclassified maps to
// ErrDNSTemperror, per RFC 7208 section 5: an RCODE other than 0 or 3, or a
// timeout, stops the mechanism and yields temperror.
func errDNS(e error) error {
	if e == nil {
		return nil
	}
	if dnsErr, ok := e.(*net.DNSError); ok && dnsErr.IsNotFound {
		return ErrDNSNotFound
	}
	return ErrDNSTemperror
}
