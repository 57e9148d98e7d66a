package spf

import (
	"context"
	"net"
)

// DNSResolver implements Resolver on top of net.Resolver, using the local
// stub resolver by default.
type DNSResolver struct {
	// Client is the underlying resolver. nil means net.DefaultResolver.
	Client *net.Resolver
}

func (r *DNSResolver) client() *net.Resolver {
	if r.Client != nil {
		return r.Client
	}
	return net.DefaultResolver
}

func (r *DNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	txts, err := r.client().LookupTXT(ctx, name)
	if err := errDNS(err); err != nil {
		return nil, err
	}
	return txts, nil
}

func (r *DNSResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	return r.lookupIP(ctx, "ip4", name)
}

func (r *DNSResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	return r.lookupIP(ctx, "ip6", name)
}

func (r *DNSResolver) lookupIP(ctx context.Context, network, name string) ([]net.IP, error) {
	addrs, err := r.client().LookupIP(ctx, network, name)
	if err := errDNS(err); err != nil {
		return nil, err
	}
	return addrs, nil
}

func (r *DNSResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	mxs, err := r.client().LookupMX(ctx, name)
	if err := errDNS(err); err != nil {
		return nil, err
	}
	return mxs, nil
}

func (r *DNSResolver) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	names, err := r.client().LookupAddr(ctx, ip.String())
	if err := errDNS(err); err != nil {
		return nil, err
	}
	return names, nil
}
