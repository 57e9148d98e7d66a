package spf

import (
	"context"
	"net"
	"strings"
)

// MockResolver is a Resolver backed by in-memory zone maps, intended for
// tests. Keys are fully qualified lowercase names (a missing trailing dot is
// tolerated). PTR keys are the textual form of the address as produced by
// net.IP.String.
type MockResolver struct {
	TXT  map[string][]string
	A    map[string][]net.IP
	AAAA map[string][]net.IP
	MX   map[string][]*net.MX
	PTR  map[string][]string

	// NXDomain lists names that return NXDOMAIN for every record type.
	NXDomain []string

	// Fail lists queries answered with a transient failure, in the form
	// "type name", e.g. "txt example.com.".
	Fail []string
}

var _ Resolver = (*MockResolver)(nil)

func mockKey(name string) string {
	name = strings.ToLower(name)
	if name == "" || name[len(name)-1] != '.' {
		name += "."
	}
	return name
}

func (r *MockResolver) check(ctx context.Context, qtype, name string) error {
	if ctx.Err() != nil {
		return ErrDNSTemperror
	}
	for _, f := range r.Fail {
		if f == qtype+" "+name {
			return ErrDNSTemperror
		}
	}
	for _, n := range r.NXDomain {
		if mockKey(n) == mockKey(name) {
			return ErrDNSNotFound
		}
	}
	return nil
}

func (r *MockResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	name = mockKey(name)
	if err := r.check(ctx, "txt", name); err != nil {
		return nil, err
	}
	return r.TXT[name], nil
}

func (r *MockResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	name = mockKey(name)
	if err := r.check(ctx, "a", name); err != nil {
		return nil, err
	}
	return r.A[name], nil
}

func (r *MockResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	name = mockKey(name)
	if err := r.check(ctx, "aaaa", name); err != nil {
		return nil, err
	}
	return r.AAAA[name], nil
}

func (r *MockResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	name = mockKey(name)
	if err := r.check(ctx, "mx", name); err != nil {
		return nil, err
	}
	return r.MX[name], nil
}

func (r *MockResolver) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	name := ip.String()
	if err := r.check(ctx, "ptr", name); err != nil {
		return nil, err
	}
	return r.PTR[name], nil
}
