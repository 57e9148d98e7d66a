package spf

import (
	"context"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/sentinelmail/spf/z"
)

type MiekgDNSResolverOption func(r *miekgDNSResolver)

// MiekgDNSCache installs a response cache. Cached answers are served until
// their TTL expires.
func MiekgDNSCache(c z.Cache) MiekgDNSResolverOption {
	return func(r *miekgDNSResolver) {
		if c == nil {
			return
		}
		r.cache = c
	}
}

// MiekgDNSMinSaneTTL clamps cache entry lifetimes from below; zones that
// publish near-zero TTLs would otherwise defeat the cache entirely.
func MiekgDNSMinSaneTTL(d time.Duration) MiekgDNSResolverOption {
	return func(r *miekgDNSResolver) {
		r.minSaneTTL = d
	}
}

// MiekgDNSClient registers a dns.Client keyed by its Net ("udp", "tcp").
func MiekgDNSClient(c *dns.Client) MiekgDNSResolverOption {
	return func(r *miekgDNSResolver) {
		if c == nil {
			return
		}
		if r.dnsClients == nil {
			r.dnsClients = make(map[string]*dns.Client)
		}
		r.dnsClients[c.Net] = c
	}
}

// NewMiekgDNSResolver returns a Resolver backed by github.com/miekg/dns,
// querying the given server over UDP with TCP fallback on truncation.
func NewMiekgDNSResolver(addr string, opts ...MiekgDNSResolverOption) (*miekgDNSResolver, error) {
	if _, _, e := net.SplitHostPort(addr); e != nil {
		return nil, e
	}
	r := &miekgDNSResolver{
		dnsClients: map[string]*dns.Client{
			"udp": {Net: "udp"},
			"tcp": {Net: "tcp"},
		},
		serverAddr: addr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// miekgDNSResolver implements Resolver using github.com/miekg/dns.
type miekgDNSResolver struct {
	mu         sync.Mutex
	dnsClients map[string]*dns.Client
	cache      z.Cache
	minSaneTTL time.Duration
	serverAddr string
}

func (r *miekgDNSResolver) cachedResponse(req *dns.Msg) (*dns.Msg, bool) {
	if r.cache == nil {
		return nil, false
	}
	// dns.Question is comparable, https://golang.org/ref/spec#Comparison_operators
	res, found := r.cache.Get(req.Question[0])
	if !found {
		return nil, false
	}
	return res.(*dns.Msg), true
}

const maxUint32 = 1<<32 - 1

// CacheResponse stores res under its question, bounded by the answer TTLs.
func (r *miekgDNSResolver) CacheResponse(res *dns.Msg) {
	if r.cache == nil {
		return
	}
	if len(res.Answer) == 0 {
		// negative answers get a short fixed lifetime
		r.cache.SetWithTTL(res.Question[0], res, int64(res.Len()), 60*time.Second)
		return
	}
	var ttl uint32 = maxUint32
	for _, a := range res.Answer {
		if d := a.Header().Ttl; d < ttl {
			ttl = d
		}
	}

	d := time.Duration(ttl) * time.Second
	if r.minSaneTTL > 0 && d < r.minSaneTTL {
		d = r.minSaneTTL
	}

	_ = r.cache.SetWithTTL(res.Question[0], res, int64(res.Len()), d)
}

// exchange resolves req against the configured server. Per RFC 7208, a
// server failure (RCODE 2) or any RCODE other than 0 or 3, as well as a
// timeout, surfaces as ErrDNSTemperror. NXDOMAIN (RCODE 3) surfaces as
// ErrDNSNotFound so mechanisms can apply their void-lookup handling.
func (r *miekgDNSResolver) exchange(ctx context.Context, req *dns.Msg) (*dns.Msg, error) {
	if res, found := r.cachedResponse(req); found {
		if res.Rcode == dns.RcodeNameError {
			return nil, ErrDNSNotFound
		}
		return res, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		res *dns.Msg
		err error
	)
	for _, n := range []string{"udp", "tcp"} {
		dnsClient, found := r.dnsClients[n]
		if !found {
			continue
		}
		res, _, err = dnsClient.ExchangeContext(ctx, req, r.serverAddr)
		if nErr, ok := err.(net.Error); ok && nErr.Timeout() {
			continue
		}
		if err == nil && res.Truncated {
			continue
		}
		break
	}
	if err != nil {
		return nil, ErrDNSTemperror
	}
	if res.Rcode == dns.RcodeNameError {
		r.CacheResponse(res)
		return nil, ErrDNSNotFound
	}
	if res.Rcode != dns.RcodeSuccess {
		return nil, ErrDNSTemperror
	}
	r.CacheResponse(res)
	return res, nil
}

func (r *miekgDNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	res, err := r.exchange(ctx, req)
	if err != nil {
		return nil, err
	}

	txts := make([]string, 0, len(res.Answer))
	for _, a := range res.Answer {
		if rr, ok := a.(*dns.TXT); ok {
			// character-strings of a single RR concatenate without
			// separators, RFC 7208 section 3.3
			txts = append(txts, strings.Join(rr.Txt, ""))
		}
	}
	return txts, nil
}

func (r *miekgDNSResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), dns.TypeA)

	res, err := r.exchange(ctx, req)
	if err != nil {
		return nil, err
	}

	ips := make([]net.IP, 0, len(res.Answer))
	for _, a := range res.Answer {
		if rr, ok := a.(*dns.A); ok {
			ips = append(ips, rr.A)
		}
	}
	return ips, nil
}

func (r *miekgDNSResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), dns.TypeAAAA)

	res, err := r.exchange(ctx, req)
	if err != nil {
		return nil, err
	}

	ips := make([]net.IP, 0, len(res.Answer))
	for _, a := range res.Answer {
		if rr, ok := a.(*dns.AAAA); ok {
			ips = append(ips, rr.AAAA)
		}
	}
	return ips, nil
}

func (r *miekgDNSResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), dns.TypeMX)

	res, err := r.exchange(ctx, req)
	if err != nil {
		return nil, err
	}

	mxs := make([]*net.MX, 0, len(res.Answer))
	for _, a := range res.Answer {
		if rr, ok := a.(*dns.MX); ok {
			mxs = append(mxs, &net.MX{Host: rr.Mx, Pref: rr.Preference})
		}
	}
	sort.SliceStable(mxs, func(i, j int) bool { return mxs[i].Pref < mxs[j].Pref })
	return mxs, nil
}

func (r *miekgDNSResolver) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	rev, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return nil, ErrDNSTemperror
	}
	req := new(dns.Msg)
	req.SetQuestion(rev, dns.TypePTR)

	res, err := r.exchange(ctx, req)
	if err != nil {
		return nil, err
	}

	ptrs := make([]string, 0, len(res.Answer))
	for _, a := range res.Answer {
		if rr, ok := a.(*dns.PTR); ok {
			ptrs = append(ptrs, rr.Ptr)
		}
	}
	return ptrs, nil
}
