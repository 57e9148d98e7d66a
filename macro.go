package spf

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MacroString is the parsed form of an RFC 7208 macro-string: an ordered
// sequence of literal text and macro tokens. The same AST serves domain-spec
// arguments and exp= explanation templates; it is immutable after parse.
type MacroString struct {
	raw  string
	segs []macroSeg
}

// String returns the original macro-string text.
func (m *MacroString) String() string {
	if m == nil {
		return ""
	}
	return m.raw
}

// Empty reports whether the macro-string has no content at all.
func (m *MacroString) Empty() bool { return m == nil || m.raw == "" }

type macroSeg interface{ seg() }

type literal string

func (literal) seg() {}

// macroToken is a single %{...} expansion with its transformers: an optional
// digit limit (keep the rightmost N parts), a reversal flag and custom
// delimiter characters. Uppercase letters additionally URL-escape the
// expansion.
type macroToken struct {
	letter  byte
	digits  int // -1 when absent
	reverse bool
	escape  bool
	delims  string // empty means the default "."
}

func (macroToken) seg() {}

const macroLetters = "slodiphcrtv"

// explanation-only letters
const expLetters = "crt"

// macroParser scans the raw macro-string. It mirrors the record lexer:
// a cursor over the input with state functions consuming one construct at
// a time.
type macroParser struct {
	start  int
	pos    int
	prev   int
	length int
	input  string
	segs   []macroSeg
	state  macroStateFn
}

type macroStateFn func(*macroParser) (macroStateFn, error)

// ParseMacroString parses raw into a MacroString AST. It validates escape
// sequences and token syntax but not letter applicability; exp-only letters
// are rejected at expansion time when the string feeds a domain-spec.
func ParseMacroString(raw string) (*MacroString, error) {
	m := &macroParser{length: len(raw), input: raw}
	var err error
	for m.state = scanLiteral; m.state != nil; {
		m.state, err = m.state(m)
		if err != nil {
			return nil, err
		}
	}
	return &MacroString{raw: raw, segs: m.segs}, nil
}

func (m *macroParser) eof() bool { return m.pos >= m.length }

func (m *macroParser) next() (rune, error) {
	if m.eof() {
		return 0, fmt.Errorf("unexpected eof for macro (%v)", m.input)
	}
	r, size := utf8.DecodeRuneInString(m.input[m.pos:])
	m.prev = m.pos
	m.pos += size
	return r, nil
}

func (m *macroParser) moveon() { m.start = m.pos }

func (m *macroParser) back() { m.pos = m.prev }

func (m *macroParser) emitLiteral(end int) {
	if end > m.start {
		m.segs = append(m.segs, literal(m.input[m.start:end]))
	}
}

// scanLiteral consumes plain text up to the next '%'.
func scanLiteral(m *macroParser) (macroStateFn, error) {
	for {
		r, err := m.next()
		if err != nil {
			m.emitLiteral(m.pos)
			m.moveon()
			return nil, nil
		}
		if r == '%' {
			m.emitLiteral(m.prev)
			m.moveon()
			return scanPercent, nil
		}
	}
}

// scanPercent consumes the rune after '%': an escape or a token opener.
func scanPercent(m *macroParser) (macroStateFn, error) {
	r, err := m.next()
	if err != nil {
		return nil, err
	}
	switch r {
	case '{':
		m.moveon()
		return scanToken, nil
	case '%':
		m.segs = append(m.segs, literal("%"))
	case '_':
		m.segs = append(m.segs, literal(" "))
	case '-':
		m.segs = append(m.segs, literal("%20"))
	default:
		return nil, fmt.Errorf("forbidden character (%v) after %%", r)
	}
	m.moveon()
	return scanLiteral, nil
}

// scanToken consumes the letter and transformers of a %{...} expansion.
func scanToken(m *macroParser) (macroStateFn, error) {
	r, err := m.next()
	if err != nil {
		return nil, err
	}

	lower := r | 0x20 // ASCII lowercase
	if lower > 0x7f || !strings.ContainsRune(macroLetters, lower) {
		return nil, fmt.Errorf("unknown macro letter (%c)", r)
	}
	tok := macroToken{
		letter: byte(lower),
		digits: -1,
		escape: r >= 'A' && r <= 'Z',
	}
	m.moveon()

	r, err = m.next()
	if err != nil {
		return nil, err
	}
	if isDigit(r) {
		for isDigit(r) {
			if r, err = m.next(); err != nil {
				return nil, err
			}
		}
		m.back()
		n, err := strconv.Atoi(m.input[m.start:m.pos])
		if err != nil {
			return nil, err
		}
		tok.digits = n
		if r, err = m.next(); err != nil {
			return nil, err
		}
	}
	if r == 'r' || r == 'R' {
		tok.reverse = true
		if r, err = m.next(); err != nil {
			return nil, err
		}
	}
	for isMacroDelimiter(r) {
		tok.delims += string(r)
		if r, err = m.next(); err != nil {
			return nil, err
		}
	}
	if r != '}' {
		return nil, fmt.Errorf("unexpected char (%v), expected '}'", r)
	}

	m.segs = append(m.segs, tok)
	m.moveon()
	return scanLiteral, nil
}

// isMacroDelimiter reports whether ch is one of the delimiters of RFC 7208
// section 7.1.
func isMacroDelimiter(ch rune) bool {
	return strings.ContainsRune(".-+,/_=", ch)
}

// Vars carries the evaluation context values macro letters expand to.
type Vars struct {
	// Sender is the envelope-from identity ("local@domain" or a bare
	// domain, in which case the local part defaults to "postmaster").
	Sender string
	// Domain is the domain currently under evaluation.
	Domain string
	// HELODomain is the HELO/EHLO identity.
	HELODomain string
	// IP is the address of the connecting client.
	IP net.IP
	// Receiver is the receiving MTA's domain, used by %{r}.
	Receiver string
	// Now is the evaluation timestamp, used by %{t}.
	Now time.Time
}

// ExpandMacro expands a domain-spec macro-string against v. The
// explanation-only letters c, r and t are rejected.
func ExpandMacro(m *MacroString, v Vars) (string, error) {
	return expandMacro(m, v, false)
}

// ExpandExplanation expands an exp= template against v, permitting the
// explanation-only letters.
func ExpandExplanation(m *MacroString, v Vars) (string, error) {
	return expandMacro(m, v, true)
}

func expandMacro(m *MacroString, v Vars, exp bool) (string, error) {
	if m == nil {
		return "", nil
	}
	var b strings.Builder
	b.Grow(len(m.raw))
	for _, s := range m.segs {
		switch s := s.(type) {
		case literal:
			b.WriteString(string(s))
		case macroToken:
			out, err := expandToken(s, v, exp)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
		}
	}
	return b.String(), nil
}

func expandToken(t macroToken, v Vars, exp bool) (string, error) {
	if !exp && strings.IndexByte(expLetters, t.letter) >= 0 {
		return "", fmt.Errorf("%q macro letter allowed only in \"exp\" text", t.letter)
	}

	var value string
	switch t.letter {
	case 's':
		value = v.Sender
	case 'l':
		value = localPart(v.Sender)
	case 'o':
		value = senderDomain(v.Sender)
	case 'd':
		value = v.Domain
	case 'i':
		value = toDottedAddr(v.IP)
	case 'p':
		// The validated reverse-DNS name is deliberately not resolved;
		// RFC 7208 discourages the letter and a constant keeps the
		// lookup budget untouched.
		value = "unknown"
	case 'v':
		if v.IP.To4() == nil {
			value = "ip6"
		} else {
			value = "in-addr"
		}
	case 'h':
		value = v.HELODomain
	case 'c':
		value = v.IP.String()
	case 'r':
		if value = v.Receiver; value == "" {
			value = "unknown"
		}
	case 't':
		now := v.Now
		if now.IsZero() {
			now = time.Now()
		}
		value = strconv.FormatInt(now.UTC().Unix(), 10)
	}

	value = transform(value, t)
	if t.escape {
		value = escapeURL(value)
	}
	return value, nil
}

// transform applies the token's delimiter split, reversal and rightmost-N
// trim, re-joining with ".".
func transform(value string, t macroToken) string {
	if t.digits < 0 && !t.reverse && t.delims == "" {
		return value
	}
	delims := t.delims
	if delims == "" {
		delims = "."
	}
	parts := splitAny(value, delims)
	if t.reverse {
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
	}
	if t.digits >= 0 && t.digits < len(parts) {
		parts = parts[len(parts)-t.digits:]
	}
	return strings.Join(parts, ".")
}

// splitAny splits s on every occurrence of any byte in delims, keeping
// empty parts.
func splitAny(s, delims string) []string {
	parts := make([]string, 0, strings.Count(s, ".")+1)
	start := 0
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(delims, s[i]) >= 0 {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// escapeURL percent-encodes everything outside the RFC 3986 unreserved set,
// as required for uppercase macro letters.
func escapeURL(s string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9',
			c == '-' || c == '.' || c == '_' || c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		}
	}
	return b.String()
}

// localPart extracts the local part of the sender identity, defaulting to
// "postmaster" per the initial processing of RFC 7208 section 4.3.
func localPart(sender string) string {
	if i := strings.LastIndexByte(sender, '@'); i > 0 {
		return sender[:i]
	}
	return "postmaster"
}

func senderDomain(sender string) string {
	if i := strings.LastIndexByte(sender, '@'); i >= 0 {
		return sender[i+1:]
	}
	return sender
}

// toDottedAddr renders the client address for %{i}: dotted decimal for
// IPv4 and dot-separated lowercase nibbles for IPv6, so that reversal and
// label trimming operate on sensible parts.
func toDottedAddr(ip net.IP) string {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4.String()
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return ""
	}
	const hexDigit = "0123456789abcdef"
	b := make([]byte, 0, len("f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f.f"))
	for i := 0; i < net.IPv6len; i++ {
		if i > 0 {
			b = append(b, '.')
		}
		b = append(b, hexDigit[ip16[i]>>4], '.', hexDigit[ip16[i]&0xf])
	}
	return string(b)
}
