package spf

import (
	"net"
)

// Listener observes the evaluation of a single CheckHost call. Every hook
// is invoked synchronously from the evaluating goroutine, so implementations
// must be fast and must not call back into the checker.
//
// CheckHost and CheckHostResult bracket each record evaluation, the
// top-level one and every include/redirect descent. Directive fires before
// a mechanism is resolved, with the effective (macro-expanded, truncated)
// value when one exists. VoidLookup fires for every lookup that produced
// no usable answer, before the void budget is charged.
type Listener interface {
	CheckHost(ip net.IP, domain, sender string)
	CheckHostResult(r Result, explanation string, err error)
	SPFRecord(s string)
	Directive(qualifier, mechanism, value, effectiveValue string)
	NonMatch(qualifier, mechanism, value string, result Result, err error)
	Match(qualifier, mechanism, value string, result Result, explanation string, err error)
	MatchingIP(qualifier, mechanism, value, fqdn string, candidate, client net.IP)
	VoidLookup(qualifier, mechanism, fqdn string)
}
