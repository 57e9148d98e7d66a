package spf

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// Limits bounds the resources one top-level check may consume. The DNS
// lookup and void lookup caps are mandated by RFC 7208 section 4.6.4; the
// recursion cap is defensive, guarding against pathological chains built
// from limit-exempt terms.
type Limits struct {
	DNSLookups     int
	VoidLookups    int
	MXExamined     int
	PTRExamined    int
	RecursionDepth int
}

func defaultLimits() Limits {
	return Limits{
		DNSLookups:     10,
		VoidLookups:    2,
		MXExamined:     10,
		PTRExamined:    10,
		RecursionDepth: 10,
	}
}

// checker holds the configuration and the mutable counters of a single
// top-level CheckHost call. The counters are threaded through the
// include/redirect recursion by exclusive ownership: one checker per call,
// never shared between calls.
type checker struct {
	resolver      Resolver
	listener      Listener
	heloDomain    string
	receivingFQDN string
	evaluatedOn   time.Time
	limits        Limits
	countMXAddr   bool

	sender  string
	ip      net.IP
	lookups int
	voids   int
	depth   int
	visited *stringsStack
}

func newChecker(opts ...Option) *checker {
	c := &checker{
		resolver:      &DNSResolver{},
		limits:        defaultLimits(),
		receivingFQDN: "unknown",
		evaluatedOn:   time.Now().UTC(),
		visited:       newStringsStack(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// vars builds the macro context for the domain under evaluation. The root
// dot is stripped so label transforms like %{d1} see no empty final label.
func (c *checker) vars(domain string) Vars {
	return Vars{
		Sender:     c.sender,
		Domain:     strings.TrimSuffix(domain, "."),
		HELODomain: c.heloDomain,
		IP:         c.ip,
		Receiver:   c.receivingFQDN,
		Now:        c.evaluatedOn,
	}
}

// countLookup charges one DNS-costing lookup against the shared budget.
// It must be called before the lookup is issued.
func (c *checker) countLookup() error {
	c.lookups++
	if c.lookups > c.limits.DNSLookups {
		return ErrDNSLimitExceeded
	}
	return nil
}

// countVoid charges one void outcome (NXDOMAIN or an empty answer where the
// mechanism expected data) against the void budget.
func (c *checker) countVoid(d *Directive, fqdn string) error {
	c.fireVoidLookup(d, fqdn)
	c.voids++
	if c.voids > c.limits.VoidLookups {
		return ErrVoidLookupLimit
	}
	return nil
}

func (c *checker) descend() error {
	c.depth++
	if c.depth > c.limits.RecursionDepth {
		return ErrRecursionLimitExceeded
	}
	return nil
}

func (c *checker) ascend() { c.depth-- }

// checkHost fetches the SPF policy of domain and evaluates it. It is called
// once at the top level and again for every include and redirect target,
// all sharing the counters of c.
func (c *checker) checkHost(ctx context.Context, ip net.IP, domain, sender string) (r Result, expl string, err error) {
	c.ip, c.sender = ip, sender
	c.fireCheckHost(ip, domain, sender)
	defer func() {
		c.fireCheckHostResult(r, expl, err)
	}()

	// As per RFC 7208 section 4.3: if the <domain> is malformed or is not
	// a multi-label domain name, check_host() immediately returns None.
	if !isDomainName(domain) {
		return None, "", newInvalidDomainError(domain)
	}

	if c.visited.has(domain) {
		return Permerror, "", ErrLoopDetected
	}

	// the record fetch itself is a DNS-costing lookup
	if err := c.countLookup(); err != nil {
		return Permerror, "", err
	}

	txts, err := c.resolver.LookupTXT(ctx, NormalizeFQDN(domain))
	switch err {
	case nil:
		// continue
	case ErrDNSNotFound:
		return None, "", err
	default:
		return Temperror, "", err
	}

	// If the resultant record set includes no records, check_host()
	// produces the "none" result. If it includes more than one record,
	// check_host() produces the "permerror" result.
	raw, err := selectSPF(txts)
	if err != nil {
		return Permerror, "", err
	}
	if raw == "" {
		return None, "", ErrSPFNotFound
	}

	rec, err := ParseRecord(raw)
	if err != nil {
		return Permerror, "", err
	}

	return c.evaluate(ctx, rec, domain)
}

// evaluate scans the record's directives strictly left to right, stopping
// at the first matching mechanism or the first error. An exhausted list
// falls through to the redirect modifier when one is present and no "all"
// appeared, and to Neutral otherwise.
func (c *checker) evaluate(ctx context.Context, rec *Record, domain string) (Result, string, error) {
	c.visited.push(domain)
	defer c.visited.pop()

	c.fireSPFRecord(rec.String())

	var all bool
	for _, t := range rec.Terms {
		d, ok := t.(*Directive)
		if !ok {
			continue
		}
		if d.Mechanism == MechAll {
			all = true
		}

		matched, result, err := c.evalDirective(ctx, d, domain)
		if err != nil {
			c.fireMatch(d, result, "", err)
			return result, "", err
		}
		if matched {
			var expl string
			if result == Fail && rec.Exp != nil {
				expl = c.explanation(ctx, domain, rec.Exp)
			}
			c.fireMatch(d, result, expl, nil)
			return result, expl, nil
		}
		c.fireNonMatch(d, result, nil)
	}

	if !all && rec.Redirect != nil {
		return c.redirect(ctx, rec.Redirect, domain)
	}
	return Neutral, "", nil
}

// evalDirective evaluates one mechanism. A non-nil error aborts the whole
// scan with the returned result; otherwise matched reports whether the
// qualifier's result applies.
func (c *checker) evalDirective(ctx context.Context, d *Directive, domain string) (matched bool, _ Result, _ error) {
	switch d.Mechanism {
	case MechAll:
		c.fireDirective(d, "")
		return true, d.Qualifier.Result(), nil
	case MechIP4, MechIP6:
		c.fireDirective(d, d.Arg)
		return ipNetContains(d.Net, c.ip), d.Qualifier.Result(), nil
	case MechA:
		return c.evalA(ctx, d, domain)
	case MechMX:
		return c.evalMX(ctx, d, domain)
	case MechPtr:
		return c.evalPtr(ctx, d, domain)
	case MechExists:
		return c.evalExists(ctx, d, domain)
	case MechInclude:
		return c.evalInclude(ctx, d, domain)
	default:
		return false, Permerror, SyntaxError{d, ErrUnknownMechanism}
	}
}

// target resolves the effective domain of a directive: the expanded
// domain-spec when present, the current domain otherwise. The result is
// truncated per RFC 7208 section 7.3, validated and normalized.
func (c *checker) target(d *Directive, domain string) (string, error) {
	t := domain
	if d.Spec != nil {
		expanded, err := ExpandMacro(d.Spec, c.vars(domain))
		if err != nil {
			return "", err
		}
		t = expanded
	}
	t, err := truncateFQDN(t)
	if err != nil {
		return "", err
	}
	if !isDomainName(t) {
		return "", newInvalidDomainError(t)
	}
	return NormalizeFQDN(t), nil
}

func (c *checker) evalA(ctx context.Context, d *Directive, domain string) (bool, Result, error) {
	fqdn, err := c.target(d, domain)
	c.fireDirective(d, fqdn)
	if err != nil {
		return false, Permerror, SyntaxError{d, err}
	}

	if err := c.countLookup(); err != nil {
		return false, Permerror, err
	}
	addrs, err := lookupAddrs(ctx, c.resolver, fqdn, c.ip)
	switch err {
	case nil, ErrDNSNotFound:
		// NXDOMAIN is handled as zero answers
	default:
		return false, Temperror, err
	}

	if len(addrs) == 0 {
		if err := c.countVoid(d, fqdn); err != nil {
			return false, Permerror, err
		}
		return false, d.Qualifier.Result(), nil
	}

	for _, a := range addrs {
		c.fireMatchingIP(d, fqdn, a)
		if matchDualCIDR(c.ip, a, d.Mask4, d.Mask6) {
			return true, d.Qualifier.Result(), nil
		}
	}
	return false, d.Qualifier.Result(), nil
}

func (c *checker) evalMX(ctx context.Context, d *Directive, domain string) (bool, Result, error) {
	fqdn, err := c.target(d, domain)
	c.fireDirective(d, fqdn)
	if err != nil {
		return false, Permerror, SyntaxError{d, err}
	}

	if err := c.countLookup(); err != nil {
		return false, Permerror, err
	}
	mxs, err := c.resolver.LookupMX(ctx, fqdn)
	switch err {
	case nil, ErrDNSNotFound:
	default:
		return false, Temperror, err
	}

	if len(mxs) == 0 {
		if err := c.countVoid(d, fqdn); err != nil {
			return false, Permerror, err
		}
		return false, d.Qualifier.Result(), nil
	}
	if len(mxs) > c.limits.MXExamined {
		return false, Permerror, SyntaxError{d, ErrTooManyMXRecords}
	}

	for _, mx := range mxs {
		if c.countMXAddr {
			if err := c.countLookup(); err != nil {
				return false, Permerror, err
			}
		}
		addrs, err := lookupAddrs(ctx, c.resolver, mx.Host, c.ip)
		switch err {
		case nil:
		case ErrDNSNotFound:
			continue
		default:
			return false, Temperror, err
		}
		for _, a := range addrs {
			c.fireMatchingIP(d, mx.Host, a)
			if matchDualCIDR(c.ip, a, d.Mask4, d.Mask6) {
				return true, d.Qualifier.Result(), nil
			}
		}
	}
	return false, d.Qualifier.Result(), nil
}

func (c *checker) evalPtr(ctx context.Context, d *Directive, domain string) (bool, Result, error) {
	fqdn, err := c.target(d, domain)
	c.fireDirective(d, fqdn)
	if err != nil {
		return false, Permerror, SyntaxError{d, err}
	}

	if err := c.countLookup(); err != nil {
		return false, Permerror, err
	}
	names, err := c.resolver.LookupPTR(ctx, c.ip)
	switch err {
	case nil, ErrDNSNotFound:
	default:
		return false, Temperror, err
	}

	if len(names) == 0 {
		if err := c.countVoid(d, fqdn); err != nil {
			return false, Permerror, err
		}
		return false, d.Qualifier.Result(), nil
	}
	// names beyond the cap are silently disregarded, RFC 7208 section 4.6.4
	if len(names) > c.limits.PTRExamined {
		names = names[:c.limits.PTRExamined]
	}

	for _, name := range names {
		name = NormalizeFQDN(name)
		if !isDomainName(name) {
			continue
		}
		// Forward validation: the PTR name counts only when one of its
		// own addresses maps back to the client. A DNS error on this
		// lookup skips the name, RFC 7208 section 5.5.
		addrs, err := lookupAddrs(ctx, c.resolver, name, c.ip)
		if err != nil {
			continue
		}
		validated := false
		for _, a := range addrs {
			if a.Equal(c.ip) {
				validated = true
				break
			}
		}
		if validated && isSubdomain(name, fqdn) {
			return true, d.Qualifier.Result(), nil
		}
	}
	return false, d.Qualifier.Result(), nil
}

func (c *checker) evalExists(ctx context.Context, d *Directive, domain string) (bool, Result, error) {
	fqdn, err := c.target(d, domain)
	c.fireDirective(d, fqdn)
	if err != nil {
		return false, Permerror, SyntaxError{d, err}
	}

	if err := c.countLookup(); err != nil {
		return false, Permerror, err
	}
	// always an A query, regardless of the connection's address family
	addrs, err := c.resolver.LookupA(ctx, fqdn)
	switch err {
	case nil:
	case ErrDNSNotFound:
		if err := c.countVoid(d, fqdn); err != nil {
			return false, Permerror, err
		}
		return false, d.Qualifier.Result(), nil
	default:
		return false, Temperror, err
	}
	return len(addrs) > 0, d.Qualifier.Result(), nil
}

// evalInclude recursively evaluates the target domain and maps its result
// onto the outer mechanism per the table of RFC 7208 section 5.2:
// pass matches; fail, softfail and neutral do not match; temperror and
// permerror propagate; none becomes permerror.
func (c *checker) evalInclude(ctx context.Context, d *Directive, domain string) (bool, Result, error) {
	target, err := c.target(d, domain)
	c.fireDirective(d, target)
	if err != nil {
		return false, Permerror, SyntaxError{d, err}
	}

	if err := c.descend(); err != nil {
		return false, Permerror, err
	}
	theirResult, _, err := c.checkHost(ctx, c.ip, target, c.sender)
	c.ascend()

	switch theirResult {
	case Pass:
		return true, d.Qualifier.Result(), nil
	case Fail, Softfail, Neutral:
		return false, d.Qualifier.Result(), nil
	case Temperror:
		return false, Temperror, SyntaxError{d, err}
	case None, Permerror:
		if err == nil {
			err = ErrSPFNotFound
		}
		return false, Permerror, SyntaxError{d, err}
	default:
		// should never happen; better an error than a panic
		return false, Permerror, fmt.Errorf("internal error: unknown result %s for %s", theirResult, d)
	}
}

// redirect tail-evaluates the redirect target, inheriting the counters.
// Per RFC 7208 section 6.1, none and permerror from the target become
// permerror; everything else, explanation included, is the final outcome.
func (c *checker) redirect(ctx context.Context, m *Modifier, domain string) (Result, string, error) {
	target, err := c.expandModifier(m, domain)
	c.fireRedirect(m, target)
	if err != nil {
		return Permerror, "", SyntaxError{m, err}
	}

	if err := c.descend(); err != nil {
		return Permerror, "", err
	}
	result, expl, err := c.checkHost(ctx, c.ip, target, c.sender)
	c.ascend()

	switch result {
	case None, Permerror:
		if err == nil {
			err = ErrSPFNotFound
		}
		return Permerror, "", SyntaxError{m, err}
	default:
		return result, expl, err
	}
}

func (c *checker) expandModifier(m *Modifier, domain string) (string, error) {
	expanded, err := ExpandMacro(m.Spec, c.vars(domain))
	if err != nil {
		return "", err
	}
	expanded, err = truncateFQDN(expanded)
	if err != nil {
		return "", err
	}
	if !isDomainName(expanded) {
		return "", newInvalidDomainError(expanded)
	}
	return NormalizeFQDN(expanded), nil
}

// explanation renders the exp= text for a failed check. The TXT fetch is
// diagnostic, not authorization-bearing, so it does not count against the
// lookup budget. Every failure along the way is swallowed: an explanation
// never changes the result.
func (c *checker) explanation(ctx context.Context, domain string, m *Modifier) string {
	target, err := c.expandModifier(m, domain)
	if err != nil {
		return ""
	}

	txts, err := c.resolver.LookupTXT(ctx, target)
	if err != nil || len(txts) == 0 {
		return ""
	}

	// RFC 7208 section 6.2: the strings concatenate with no spaces
	ms, err := ParseMacroString(strings.Join(txts, ""))
	if err != nil {
		return ""
	}
	expl, err := ExpandExplanation(ms, c.vars(domain))
	if err != nil {
		return ""
	}
	return expl
}

// isSubdomain reports whether name equals target or is one of its
// subdomains. Both must be normalized FQDNs.
func isSubdomain(name, target string) bool {
	return name == target || strings.HasSuffix(name, "."+target)
}

func (c *checker) fireCheckHost(ip net.IP, domain, sender string) {
	if c.listener == nil {
		return
	}
	c.listener.CheckHost(ip, domain, sender)
}

func (c *checker) fireCheckHostResult(r Result, explanation string, e error) {
	if c.listener == nil {
		return
	}
	c.listener.CheckHostResult(r, explanation, e)
}

func (c *checker) fireSPFRecord(s string) {
	if c.listener == nil {
		return
	}
	c.listener.SPFRecord(s)
}

func (c *checker) fireDirective(d *Directive, effectiveValue string) {
	if c.listener == nil {
		return
	}
	c.listener.Directive(d.Qualifier.String(), d.Mechanism.String(), d.Arg, effectiveValue)
}

func (c *checker) fireRedirect(m *Modifier, effectiveValue string) {
	if c.listener == nil {
		return
	}
	c.listener.Directive("", m.Name, m.Value, effectiveValue)
}

func (c *checker) fireMatchingIP(d *Directive, fqdn string, ip net.IP) {
	if c.listener == nil {
		return
	}
	c.listener.MatchingIP(d.Qualifier.String(), d.Mechanism.String(), d.Arg, fqdn, ip, c.ip)
}

func (c *checker) fireNonMatch(d *Directive, r Result, e error) {
	if c.listener == nil {
		return
	}
	c.listener.NonMatch(d.Qualifier.String(), d.Mechanism.String(), d.Arg, r, e)
}

func (c *checker) fireMatch(d *Directive, r Result, explanation string, e error) {
	if c.listener == nil {
		return
	}
	c.listener.Match(d.Qualifier.String(), d.Mechanism.String(), d.Arg, r, explanation, e)
}

func (c *checker) fireVoidLookup(d *Directive, fqdn string) {
	if c.listener == nil {
		return
	}
	c.listener.VoidLookup(d.Qualifier.String(), d.Mechanism.String(), fqdn)
}
