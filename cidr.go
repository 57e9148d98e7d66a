package spf

import "net"

// MatchCIDR reports whether addr falls inside the network identified by
// network/prefix. Both addresses must belong to the same family: a
// cross-family comparison is a plain non-match, never an error. A zero
// prefix matches every address of the family. Masking is bit-exact at
// non-byte-aligned prefix boundaries.
func MatchCIDR(addr, network net.IP, prefix int) bool {
	a4, n4 := addr.To4(), network.To4()
	switch {
	case a4 != nil && n4 != nil:
		mask := net.CIDRMask(prefix, 8*net.IPv4len)
		if mask == nil {
			return false
		}
		return (&net.IPNet{IP: n4.Mask(mask), Mask: mask}).Contains(a4)
	case a4 == nil && n4 == nil:
		a16, n16 := addr.To16(), network.To16()
		if a16 == nil || n16 == nil {
			return false
		}
		mask := net.CIDRMask(prefix, 8*net.IPv6len)
		if mask == nil {
			return false
		}
		return (&net.IPNet{IP: n16.Mask(mask), Mask: mask}).Contains(a16)
	default:
		return false
	}
}

// matchDualCIDR matches the client address against a candidate address
// returned by an a/mx lookup, applying the mask of the candidate's family.
// Family mismatch is a non-match.
func matchDualCIDR(client, candidate net.IP, mask4, mask6 net.IPMask) bool {
	if c4 := candidate.To4(); c4 != nil {
		if client.To4() == nil {
			return false
		}
		if mask4 == nil {
			mask4 = net.CIDRMask(8*net.IPv4len, 8*net.IPv4len)
		}
		return (&net.IPNet{IP: c4.Mask(mask4), Mask: mask4}).Contains(client.To4())
	}
	if client.To4() != nil {
		return false
	}
	c16 := candidate.To16()
	if c16 == nil {
		return false
	}
	if mask6 == nil {
		mask6 = net.CIDRMask(8*net.IPv6len, 8*net.IPv6len)
	}
	return (&net.IPNet{IP: c16.Mask(mask6), Mask: mask6}).Contains(client.To16())
}

// ipNetContains matches the client address against an ip4/ip6 network,
// treating family mismatch as a non-match.
func ipNetContains(ipnet *net.IPNet, client net.IP) bool {
	if ipnet == nil {
		return false
	}
	v6net := ipnet.IP.To4() == nil
	if v6client := client.To4() == nil; v6client != v6net {
		return false
	}
	return ipnet.Contains(client)
}
