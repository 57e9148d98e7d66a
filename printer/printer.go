// Package printer renders the progress of an SPF evaluation as an indented
// trace, one level per include or redirect descent. It doubles as a
// resolver decorator so individual DNS queries show up inline.
package printer

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/sentinelmail/spf"
)

func New(w io.Writer, r spf.Resolver) *Printer {
	return &Printer{
		w: w,
		r: r,
	}
}

type Printer struct {
	sync.Mutex
	w io.Writer
	c int
	r spf.Resolver
}

func (p *Printer) CheckHost(ip net.IP, domain, sender string) {
	p.Lock()
	defer p.Unlock()
	fmt.Fprintf(p.w, "%sCHECK_HOST(%q, %q, %q)\n", p.pad(), ip, domain, sender)
	p.c++
}

func (p *Printer) SPFRecord(s string) {
	p.Lock()
	defer p.Unlock()
	fmt.Fprintf(p.w, "%sSPF: %s\n", p.pad(), s)
}

func (p *Printer) CheckHostResult(r spf.Result, explanation string, err error) {
	p.Lock()
	defer p.Unlock()
	p.c--
	fmt.Fprintf(p.w, "%s= %s, %q, %v\n", p.pad(), r, explanation, err)
}

func (p *Printer) Directive(qualifier, mechanism, value, effectiveValue string) {
	p.Lock()
	defer p.Unlock()
	if qualifier == "+" {
		qualifier = ""
	}
	fmt.Fprintf(p.w, "%s%s%s", p.pad(), qualifier, mechanism)
	if value != "" {
		delimiter := ":"
		if mechanism == "redirect" || mechanism == "exp" {
			delimiter = "="
		}
		fmt.Fprintf(p.w, "%s%s", delimiter, value)
	}
	if effectiveValue != "" {
		fmt.Fprintf(p.w, " (%s)", effectiveValue)
	}
	fmt.Fprintln(p.w)
}

func (p *Printer) NonMatch(qualifier, mechanism, value string, result spf.Result, err error) {}

func (p *Printer) Match(qualifier, mechanism, value string, result spf.Result, explanation string, err error) {
}

func (p *Printer) MatchingIP(qualifier, mechanism, value, fqdn string, candidate, client net.IP) {
	p.Lock()
	defer p.Unlock()
	fmt.Fprintf(p.w, "%s  candidate(%s:%s) %s -> %s vs %s\n", p.pad(), mechanism, value, fqdn, candidate, client)
}

func (p *Printer) VoidLookup(qualifier, mechanism, fqdn string) {
	p.Lock()
	defer p.Unlock()
	fmt.Fprintf(p.w, "%s  void(%s) %s\n", p.pad(), mechanism, fqdn)
}

// pad must be called with the mutex held.
func (p *Printer) pad() string {
	if p.c < 0 {
		return ""
	}
	return strings.Repeat("  ", p.c)
}

func (p *Printer) LookupTXT(ctx context.Context, name string) ([]string, error) {
	p.query("TXT", name)
	return p.r.LookupTXT(ctx, name)
}

func (p *Printer) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	p.query("A", name)
	return p.r.LookupA(ctx, name)
}

func (p *Printer) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	p.query("AAAA", name)
	return p.r.LookupAAAA(ctx, name)
}

func (p *Printer) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	p.query("MX", name)
	return p.r.LookupMX(ctx, name)
}

func (p *Printer) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	p.query("PTR", ip.String())
	return p.r.LookupPTR(ctx, ip)
}

func (p *Printer) query(qtype, name string) {
	p.Lock()
	defer p.Unlock()
	fmt.Fprintf(p.w, "%s  lookup(%s) %s\n", p.pad(), qtype, name)
}
