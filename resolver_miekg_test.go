package spf

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/miekg/dns"

	"github.com/sentinelmail/spf/spftest"
)

func TestMiekgLookupTXT(t *testing.T) {
	dns.HandleFunc("txt.test.", spftest.Zone(map[uint16][]string{
		dns.TypeTXT: {
			`txt.test. 3600 IN TXT "v=spf1 " "a -all"`,
			`txt.test. 3600 IN TXT "unrelated"`,
		},
	}))
	defer dns.HandleRemove("txt.test.")

	txts, err := testResolver.LookupTXT(context.Background(), "txt.test.")
	if err != nil {
		t.Fatalf("LookupTXT: %s", err)
	}
	// character-strings of one RR concatenate without separators
	want := map[string]bool{"v=spf1 a -all": true, "unrelated": true}
	if len(txts) != len(want) {
		t.Fatalf("got %q; want %d strings", txts, len(want))
	}
	for _, s := range txts {
		if !want[s] {
			t.Errorf("unexpected TXT string %q", s)
		}
	}
}

func TestMiekgLookupNXDomain(t *testing.T) {
	// no handler registered: the root zone answers NXDOMAIN
	if _, err := testResolver.LookupTXT(context.Background(), "nxdomain.test."); !errors.Is(err, ErrDNSNotFound) {
		t.Errorf("TXT: got %v; want %v", err, ErrDNSNotFound)
	}
	if _, err := testResolver.LookupA(context.Background(), "nxdomain.test."); !errors.Is(err, ErrDNSNotFound) {
		t.Errorf("A: got %v; want %v", err, ErrDNSNotFound)
	}
	if _, err := testResolver.LookupMX(context.Background(), "nxdomain.test."); !errors.Is(err, ErrDNSNotFound) {
		t.Errorf("MX: got %v; want %v", err, ErrDNSNotFound)
	}
	if _, err := testResolver.LookupPTR(context.Background(), net.ParseIP("192.0.2.99")); !errors.Is(err, ErrDNSNotFound) {
		t.Errorf("PTR: got %v; want %v", err, ErrDNSNotFound)
	}
}

func TestMiekgLookupA(t *testing.T) {
	dns.HandleFunc("addr.test.", spftest.Zone(map[uint16][]string{
		dns.TypeA:    {"addr.test. 3600 IN A 192.0.2.1"},
		dns.TypeAAAA: {"addr.test. 3600 IN AAAA 2001:db8::1"},
	}))
	defer dns.HandleRemove("addr.test.")

	ips, err := testResolver.LookupA(context.Background(), "addr.test.")
	if err != nil {
		t.Fatalf("LookupA: %s", err)
	}
	if len(ips) != 1 || !ips[0].Equal(net.ParseIP("192.0.2.1")) {
		t.Errorf("A: got %v; want [192.0.2.1]", ips)
	}

	ips, err = testResolver.LookupAAAA(context.Background(), "addr.test.")
	if err != nil {
		t.Fatalf("LookupAAAA: %s", err)
	}
	if len(ips) != 1 || !ips[0].Equal(net.ParseIP("2001:db8::1")) {
		t.Errorf("AAAA: got %v; want [2001:db8::1]", ips)
	}
}

func TestMiekgLookupMXSorted(t *testing.T) {
	dns.HandleFunc("mx.test.", spftest.Zone(map[uint16][]string{
		dns.TypeMX: {
			"mx.test. 3600 IN MX 30 backup.mx.test.",
			"mx.test. 3600 IN MX 10 primary.mx.test.",
			"mx.test. 3600 IN MX 20 secondary.mx.test.",
		},
	}))
	defer dns.HandleRemove("mx.test.")

	mxs, err := testResolver.LookupMX(context.Background(), "mx.test.")
	if err != nil {
		t.Fatalf("LookupMX: %s", err)
	}
	want := []string{"primary.mx.test.", "secondary.mx.test.", "backup.mx.test."}
	if len(mxs) != len(want) {
		t.Fatalf("got %d exchanges; want %d", len(mxs), len(want))
	}
	for i, mx := range mxs {
		if mx.Host != want[i] {
			t.Errorf("exchange %d = %s; want %s", i, mx.Host, want[i])
		}
	}
}

func TestMiekgLookupPTR(t *testing.T) {
	dns.HandleFunc("10.2.0.192.in-addr.arpa.", spftest.Zone(map[uint16][]string{
		dns.TypePTR: {"10.2.0.192.in-addr.arpa. 3600 IN PTR mail.ptr.test."},
	}))
	defer dns.HandleRemove("10.2.0.192.in-addr.arpa.")

	ptrs, err := testResolver.LookupPTR(context.Background(), net.ParseIP("192.0.2.10"))
	if err != nil {
		t.Fatalf("LookupPTR: %s", err)
	}
	if len(ptrs) != 1 || ptrs[0] != "mail.ptr.test." {
		t.Errorf("got %v; want [mail.ptr.test.]", ptrs)
	}
}

// Once cached, an answer survives the zone disappearing.
func TestMiekgCachedAnswer(t *testing.T) {
	cache := newTestCache()
	r, err := NewMiekgDNSResolver(testResolver.serverAddr, MiekgDNSCache(cache))
	if err != nil {
		t.Fatal(err)
	}

	dns.HandleFunc("cached.test.", spftest.Zone(map[uint16][]string{
		dns.TypeTXT: {`cached.test. 3600 IN TXT "v=spf1 -all"`},
	}))

	first, err := r.LookupTXT(context.Background(), "cached.test.")
	if err != nil {
		t.Fatalf("first lookup: %s", err)
	}
	cache.Wait()
	dns.HandleRemove("cached.test.")

	second, err := r.LookupTXT(context.Background(), "cached.test.")
	if err != nil {
		t.Fatalf("second lookup: %s", err)
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Errorf("cached answer diverged: first %q, second %q", first, second)
	}
}
