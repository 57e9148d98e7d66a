package spf

import (
	"strings"
)

const version = "v=spf1"

// HasSPFPrefix reports whether s is an SPF policy: the version token,
// case-insensitive, either alone or followed by whitespace. "v=spf10" and
// "v=spf1x" are different versions, not policies.
func HasSPFPrefix(s string) bool {
	if len(s) < len(version) || !strings.EqualFold(s[:len(version)], version) {
		return false
	}
	if len(s) == len(version) {
		return true
	}
	return s[len(version)] == ' ' || s[len(version)] == '\t'
}

// IsSPFCandidate matches TXT strings that look like an attempt at an SPF
// record without being one: any "v", separator and "spf" in sequence, with
// optional whitespace between them. Useful for surfacing broken policies
// ("v=spf 1 ...", "v: spf1 ...") that check_host itself must ignore.
func IsSPFCandidate(s string) bool {
	i := skipSpace(s, 0)

	// the version letter is optional: "=spf..." is still worth flagging
	if i < len(s) && (s[i] == 'v' || s[i] == 'V') {
		i = skipSpace(s, i+1)
	}
	if i >= len(s) || (s[i] != '=' && s[i] != ':') {
		return false
	}
	i = skipSpace(s, i+1)

	return len(s)-i >= 3 && strings.EqualFold(s[i:i+3], "spf")
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// FilterSPFCandidates splits TXT strings into confirmed policies and
// near-miss candidates. Candidates never influence evaluation; they exist
// for diagnostics.
func FilterSPFCandidates(lines []string) (candidates, policies []string) {
	for _, line := range lines {
		switch {
		case HasSPFPrefix(line):
			policies = append(policies, line)
		case IsSPFCandidate(line):
			candidates = append(candidates, line)
		}
	}
	return candidates, policies
}
