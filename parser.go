package spf

import (
	"net"
	"strconv"
	"strings"
)

// ParseRecord parses the raw text of a single SPF TXT record into an
// ordered term sequence. The text must start with the version token
// "v=spf1" (case-insensitive). All syntax failures surface as a
// SyntaxError wrapping the classified sentinel; during evaluation any of
// them maps to Permerror.
func ParseRecord(raw string) (*Record, error) {
	rest, ok := cutVersion(raw)
	if !ok {
		return nil, SyntaxError{nil, ErrSPFNotFound}
	}

	rec := &Record{}
	for _, rt := range lexRecord(rest) {
		t, err := parseTerm(rt)
		if err != nil {
			return nil, err
		}
		if m, ok := t.(*Modifier); ok {
			switch m.Name {
			case "redirect":
				if rec.Redirect != nil {
					return nil, SyntaxError{m, ErrTooManyRedirects}
				}
				rec.Redirect = m
			case "exp":
				if rec.Exp != nil {
					return nil, SyntaxError{m, ErrTooManyExps}
				}
				rec.Exp = m
			}
		}
		rec.Terms = append(rec.Terms, t)
	}
	return rec, nil
}

// cutVersion strips the leading version token. A record qualifies only when
// it begins with exactly "v=spf1" followed by whitespace or end of string;
// "v=spf10" does not qualify.
func cutVersion(raw string) (string, bool) {
	const v = "v=spf1"
	if len(raw) < len(v) || !strings.EqualFold(raw[:len(v)], v) {
		return "", false
	}
	rest := raw[len(v):]
	if rest == "" {
		return "", true
	}
	if rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return rest, true
}

// unparsedTerm carries the raw text of a term that failed to parse, for
// error reporting only.
type unparsedTerm string

func (unparsedTerm) term() {}

func (t unparsedTerm) String() string { return string(t) }

func parseTerm(rt rawTerm) (Term, error) {
	if rt.name == "" {
		return nil, SyntaxError{unparsedTerm(rt.raw), ErrSyntaxError}
	}

	if mech, ok := mechanismFromString(rt.name); ok && rt.sep != '=' {
		return parseDirective(mech, rt)
	}

	if rt.sep == '=' {
		return parseModifier(rt)
	}

	// a term without '=' and without a known mechanism name
	return nil, SyntaxError{unparsedTerm(rt.raw), ErrUnknownMechanism}
}

func parseDirective(mech Mechanism, rt rawTerm) (*Directive, error) {
	d := &Directive{
		Qualifier: rt.qualifier,
		Mechanism: mech,
		Arg:       rt.value,
	}

	switch mech {
	case MechAll:
		// all must carry no argument at all
		if rt.sep != 0 {
			return nil, SyntaxError{d, ErrSyntaxError}
		}

	case MechInclude, MechExists:
		if rt.sep != ':' || rt.value == "" {
			return nil, SyntaxError{d, ErrSyntaxError}
		}
		spec, err := ParseMacroString(rt.value)
		if err != nil {
			return nil, SyntaxError{d, err}
		}
		d.Spec = spec

	case MechA, MechMX:
		domain, mask4, mask6, err := splitDomainDualCIDR(rt.value)
		if err != nil {
			return nil, SyntaxError{d, err}
		}
		d.Mask4, d.Mask6 = mask4, mask6
		if domain != "" {
			if d.Spec, err = ParseMacroString(domain); err != nil {
				return nil, SyntaxError{d, err}
			}
		}

	case MechPtr:
		if rt.value != "" {
			spec, err := ParseMacroString(rt.value)
			if err != nil {
				return nil, SyntaxError{d, err}
			}
			d.Spec = spec
		}

	case MechIP4:
		ipnet, err := parseIPNet(rt.value, false)
		if err != nil {
			return nil, SyntaxError{d, err}
		}
		d.Net = ipnet

	case MechIP6:
		ipnet, err := parseIPNet(rt.value, true)
		if err != nil {
			return nil, SyntaxError{d, err}
		}
		d.Net = ipnet
	}

	return d, nil
}

func parseModifier(rt rawTerm) (*Modifier, error) {
	m := &Modifier{Name: rt.name, Value: rt.value}

	// qualifiers are valid on directives only
	if rt.hasQual {
		return nil, SyntaxError{m, ErrSyntaxError}
	}

	// a mechanism name with '=' is not a valid unknown modifier
	if IsKnownMechanism(rt.name) {
		return nil, SyntaxError{m, ErrSyntaxError}
	}

	switch strings.ToLower(rt.name) {
	case "redirect", "exp":
		m.Name = strings.ToLower(rt.name)
		if rt.value == "" {
			return nil, SyntaxError{m, ErrEmptyDomain}
		}
		spec, err := ParseMacroString(rt.value)
		if err != nil {
			return nil, SyntaxError{m, err}
		}
		m.Spec = spec
	default:
		// unknown modifiers are kept and ignored during evaluation,
		// provided they are syntactically well formed
		if !checkUnknownModifierSyntax(rt.name, rt.value) {
			return nil, SyntaxError{m, ErrSyntaxError}
		}
	}
	return m, nil
}

// parseIPNet parses the ip4/ip6 argument: an address or an address with a
// CIDR length. The address family must match the mechanism.
func parseIPNet(s string, v6 bool) (*net.IPNet, error) {
	bits := 8 * net.IPv4len
	if v6 {
		bits = 8 * net.IPv6len
	}

	if ip, ipnet, err := net.ParseCIDR(s); err == nil {
		if err := checkFamily(ip, v6); err != nil {
			return nil, err
		}
		if ones, max := ipnet.Mask.Size(); max != bits || ones > bits {
			return nil, ErrInvalidCIDRLength
		}
		return ipnet, nil
	}

	ip := net.ParseIP(s)
	if ip == nil {
		if v6 {
			return nil, ErrNotIPv6
		}
		return nil, ErrNotIPv4
	}
	if err := checkFamily(ip, v6); err != nil {
		return nil, err
	}
	if !v6 {
		ip = ip.To4()
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

func checkFamily(ip net.IP, v6 bool) error {
	if v6 {
		if ip.To4() != nil || ip.To16() == nil {
			return ErrNotIPv6
		}
		return nil
	}
	if ip.To4() == nil {
		return ErrNotIPv4
	}
	return nil
}

// parseCIDRMask parses a decimal prefix length into a mask of the given
// family width. An empty string yields the full-length mask.
func parseCIDRMask(s string, bits int) (net.IPMask, error) {
	if s == "" {
		return net.CIDRMask(bits, bits), nil
	}
	l, err := strconv.Atoi(s)
	if err != nil {
		return nil, ErrInvalidCIDRLength
	}
	mask := net.CIDRMask(l, bits)
	if mask == nil {
		return nil, ErrInvalidCIDRLength
	}
	return mask, nil
}

// splitDomainDualCIDR splits an a/mx argument of the form
// [domain-spec]["/"cidr4]["//"cidr6] into its parts. Absent lengths yield
// the full-width mask of their family.
func splitDomainDualCIDR(arg string) (string, net.IPMask, net.IPMask, error) {
	domain := arg
	var dual string
	if i := strings.IndexByte(arg, '/'); i >= 0 {
		domain, dual = arg[:i], arg[i:]
	}

	var ip4Len, ip6Len string
	switch {
	case dual == "":
	case strings.HasPrefix(dual, "//"):
		if ip6Len = dual[2:]; ip6Len == "" {
			return "", nil, nil, ErrInvalidCIDRLength
		}
	default:
		ip4Len = dual[1:]
		if j := strings.Index(ip4Len, "//"); j >= 0 {
			ip4Len, ip6Len = ip4Len[:j], ip4Len[j+2:]
			if ip6Len == "" {
				return "", nil, nil, ErrInvalidCIDRLength
			}
		}
		if ip4Len == "" || strings.ContainsRune(ip4Len, '/') {
			return "", nil, nil, ErrInvalidCIDRLength
		}
	}

	ip4Mask, err := parseCIDRMask(ip4Len, 8*net.IPv4len)
	if err != nil {
		return "", nil, nil, err
	}
	ip6Mask, err := parseCIDRMask(ip6Len, 8*net.IPv6len)
	if err != nil {
		return "", nil, nil, err
	}

	return domain, ip4Mask, ip6Mask, nil
}
