package spf

import (
	"net"
	"strings"
)

// Qualifier is the result prefix of a mechanism: "+", "-", "~" or "?".
// The default, when no prefix is present, is QPass.
type Qualifier int

const (
	QPass     Qualifier = iota // +
	QFail                      // -
	QSoftfail                  // ~
	QNeutral                   // ?
)

func (q Qualifier) String() string {
	switch q {
	case QFail:
		return "-"
	case QSoftfail:
		return "~"
	case QNeutral:
		return "?"
	default:
		return "+"
	}
}

// Result maps the qualifier to the evaluation result produced when its
// mechanism matches.
func (q Qualifier) Result() Result {
	switch q {
	case QFail:
		return Fail
	case QSoftfail:
		return Softfail
	case QNeutral:
		return Neutral
	default:
		return Pass
	}
}

var qualifiers = map[rune]Qualifier{
	'+': QPass,
	'-': QFail,
	'~': QSoftfail,
	'?': QNeutral,
}

// Mechanism identifies one of the eight matchable terms of RFC 7208.
type Mechanism int

const (
	MechAll Mechanism = iota + 1
	MechInclude
	MechA
	MechMX
	MechPtr
	MechIP4
	MechIP6
	MechExists
)

func (m Mechanism) String() string {
	switch m {
	case MechAll:
		return "all"
	case MechInclude:
		return "include"
	case MechA:
		return "a"
	case MechMX:
		return "mx"
	case MechPtr:
		return "ptr"
	case MechIP4:
		return "ip4"
	case MechIP6:
		return "ip6"
	case MechExists:
		return "exists"
	default:
		return ""
	}
}

func mechanismFromString(s string) (Mechanism, bool) {
	switch strings.ToLower(s) {
	case "all":
		return MechAll, true
	case "include":
		return MechInclude, true
	case "a":
		return MechA, true
	case "mx":
		return MechMX, true
	case "ptr":
		return MechPtr, true
	case "ip4":
		return MechIP4, true
	case "ip6":
		return MechIP6, true
	case "exists":
		return MechExists, true
	default:
		return 0, false
	}
}

// IsKnownMechanism reports whether s names one of the RFC 7208 mechanisms.
func IsKnownMechanism(s string) bool {
	_, ok := mechanismFromString(s)
	return ok
}

// Term is a single parsed element of an SPF record: a Directive or a
// Modifier. Order within the record is significant and preserved.
type Term interface {
	String() string
	term()
}

// Directive is a mechanism together with its qualifier and arguments.
// Directives are immutable once parsed.
type Directive struct {
	Qualifier Qualifier
	Mechanism Mechanism

	// Arg is the raw argument text following the mechanism name, without
	// the separator. Empty when the mechanism carries no argument.
	Arg string

	// Spec is the parsed domain-spec when the mechanism carries one
	// (include, exists, and optionally a, mx, ptr). Nil means the current
	// domain is used.
	Spec *MacroString

	// Mask4 and Mask6 are the dual-cidr masks for a and mx. They default
	// to full-length masks.
	Mask4 net.IPMask
	Mask6 net.IPMask

	// Net is the parsed network for ip4 and ip6.
	Net *net.IPNet
}

func (*Directive) term() {}

func (d *Directive) String() string {
	var b strings.Builder
	if d.Qualifier != QPass {
		b.WriteString(d.Qualifier.String())
	}
	b.WriteString(d.Mechanism.String())
	if d.Arg != "" {
		if d.Arg[0] != '/' {
			b.WriteByte(':')
		}
		b.WriteString(d.Arg)
	}
	return b.String()
}

// Modifier is a non-matching auxiliary term: redirect, exp, or an unknown
// name kept for forward compatibility and ignored during evaluation.
type Modifier struct {
	// Name is the modifier name, lowercase for redirect and exp, original
	// spelling for unknown modifiers.
	Name string

	// Value is the raw macro-string value.
	Value string

	// Spec is the parsed macro-string for redirect and exp. Nil for
	// unknown modifiers, whose values are only syntax-checked.
	Spec *MacroString
}

func (*Modifier) term() {}

func (m *Modifier) String() string {
	return m.Name + "=" + m.Value
}

// Record is an ordered, immutable sequence of terms parsed from a single
// SPF TXT record.
type Record struct {
	Terms []Term

	// Redirect and Exp point at the corresponding modifiers within Terms,
	// when present. Each may appear at most once.
	Redirect *Modifier
	Exp      *Modifier
}

// Directives returns the mechanisms of the record in textual order.
func (r *Record) Directives() []*Directive {
	ds := make([]*Directive, 0, len(r.Terms))
	for _, t := range r.Terms {
		if d, ok := t.(*Directive); ok {
			ds = append(ds, d)
		}
	}
	return ds
}

// Modifiers returns the modifiers of the record in textual order, unknown
// ones included.
func (r *Record) Modifiers() []*Modifier {
	ms := make([]*Modifier, 0, 2)
	for _, t := range r.Terms {
		if m, ok := t.(*Modifier); ok {
			ms = append(ms, m)
		}
	}
	return ms
}

// String re-serializes the record. Parsing the result yields an identical
// term sequence.
func (r *Record) String() string {
	var b strings.Builder
	b.WriteString("v=spf1")
	for _, t := range r.Terms {
		b.WriteByte(' ')
		b.WriteString(t.String())
	}
	return b.String()
}
