package spf

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// lexer scans the raw record text and carves it into terms.
type lexer struct {
	start  int
	pos    int
	prev   int
	length int
	input  string
}

// rawTerm is a single whitespace-delimited term split into its syntactic
// parts. The parser turns rawTerms into Directives and Modifiers.
type rawTerm struct {
	qualifier Qualifier
	hasQual   bool
	name      string
	sep       byte // ':', '=', '/' or 0 when the term has no argument
	value     string
	raw       string
}

// lexRecord reads the SPF record and returns its terms in textual order.
// The parser validates them and builds the Record.
func lexRecord(input string) []rawTerm {
	var terms []rawTerm
	l := &lexer{0, 0, 0, len(input), input}
	for {
		t, eof := l.scan()
		if eof {
			return terms
		}
		if t.raw != "" {
			terms = append(terms, t)
		}
	}
}

// scan advances to the end of the next term and splits it.
func (l *lexer) scan() (rawTerm, bool) {
	for {
		r, eof := l.next()
		if eof {
			if l.pos > l.start {
				return l.scanTerm(), false
			}
			return rawTerm{}, true
		}
		if isWhitespace(r) || l.eof() {
			t := l.scanTerm()
			l.scanWhitespaces()
			l.moveon()
			return t, false
		}
	}
}

// eof returns true when the scanned record has ended.
func (l *lexer) eof() bool { return l.pos >= l.length }

// next returns the next rune and an indicator whether the record has ended.
// It also moves pos past the rune and keeps prev at the previous position.
func (l *lexer) next() (rune, bool) {
	if l.eof() {
		return 0, true
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.prev = l.pos
	l.pos += size
	return r, false
}

// moveon sets start to pos, usually once a term has been scanned.
func (l *lexer) moveon() { l.start = l.pos }

// back moves pos to the previous position.
func (l *lexer) back() { l.pos = l.prev }

// scanWhitespaces moves the position to the first rune which is not a
// space, tab or newline.
func (l *lexer) scanWhitespaces() {
	for {
		if ch, eof := l.next(); eof {
			return
		} else if !isWhitespace(ch) {
			l.back()
			return
		}
	}
}

// scanTerm splits the slice [l.start:l.pos) into qualifier, name, separator
// and value. The cursor looks for the first of '=', ':' or '/'; everything
// before it is the (optionally qualified) name, everything after it the raw
// value. A '/' keeps its place in the value so dual-cidr arguments survive
// re-serialization.
func (l *lexer) scanTerm() rawTerm {
	raw := strings.TrimSpace(l.input[l.start:l.pos])
	t := rawTerm{raw: raw}

	s := raw
	if s != "" {
		if q, ok := qualifiers[rune(s[0])]; ok {
			t.qualifier = q
			t.hasQual = true
			s = s[1:]
		}
	}

	if i := strings.IndexAny(s, "=:/"); i >= 0 {
		t.name = s[:i]
		t.sep = s[i]
		if t.sep == '/' {
			// dual-cidr-length shorthand (mx/24, a//64): the slash
			// belongs to the value
			t.value = s[i:]
		} else {
			t.value = s[i+1:]
		}
	} else {
		t.name = s
	}
	return t
}

var (
	// name = ALPHA *( ALPHA / DIGIT / "-" / "_" / "." )
	reNameRFC7208 = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\-_.]*$`)
	// macro-string     = *( macro-expand / macro-literal )
	// macro-expand     = ( "%{" macro-letter transformers *delimiter "}" ) / "%%" / "%_" / "%-"
	// macro-literal    = %x21-24 / %x26-7E ; visible characters except "%"
	// macro-letter     = "s" / "l" / "o" / "d" / "i" / "p" / "h" / "c" / "r" / "t" / "v"
	// transformers     = *DIGIT [ "r" ]
	// delimiter        = "." / "-" / "+" / "," / "/" / "_" / "="
	reMacroStringRFC7208 = regexp.MustCompile(`^((%\{[slodiphcrtvSLODIPHCRTV][0-9]*[rR]?[.\-+,/_=]*\})|%%|%_|%-|[\x21\x22\x23\x24\x26-\x7E])*$`)
)

func checkUnknownModifierSyntax(key, value string) bool {
	return reNameRFC7208.MatchString(key) && reMacroStringRFC7208.MatchString(value)
}

// isWhitespace returns true if the rune is a space, tab, or newline.
func isWhitespace(ch rune) bool { return ch == ' ' || ch == '\t' || ch == '\n' }

// isDigit returns true if the rune is between '0' and '9'.
func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }
