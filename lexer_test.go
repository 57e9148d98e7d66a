package spf

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLexRecord(t *testing.T) {
	tests := []struct {
		input string
		want  []rawTerm
	}{
		{
			"",
			nil,
		},
		{
			"   ",
			nil,
		},
		{
			" -all",
			[]rawTerm{
				{qualifier: QFail, hasQual: true, name: "all", raw: "-all"},
			},
		},
		{
			" ip4:192.0.2.0/24",
			[]rawTerm{
				{name: "ip4", sep: ':', value: "192.0.2.0/24", raw: "ip4:192.0.2.0/24"},
			},
		},
		{
			" a mx/24 ~include:_spf.example.org",
			[]rawTerm{
				{name: "a", raw: "a"},
				{name: "mx", sep: '/', value: "/24", raw: "mx/24"},
				{qualifier: QSoftfail, hasQual: true, name: "include", sep: ':', value: "_spf.example.org", raw: "~include:_spf.example.org"},
			},
		},
		{
			" a:example.com/24//64",
			[]rawTerm{
				{name: "a", sep: ':', value: "example.com/24//64", raw: "a:example.com/24//64"},
			},
		},
		{
			" redirect=_spf.example.org exp=explain.%{d}",
			[]rawTerm{
				{name: "redirect", sep: '=', value: "_spf.example.org", raw: "redirect=_spf.example.org"},
				{name: "exp", sep: '=', value: "explain.%{d}", raw: "exp=explain.%{d}"},
			},
		},
		{
			// tabs and repeated whitespace separate terms just like spaces
			" ?all \t +mx",
			[]rawTerm{
				{qualifier: QNeutral, hasQual: true, name: "all", raw: "?all"},
				{qualifier: QPass, hasQual: true, name: "mx", raw: "+mx"},
			},
		},
		{
			" unknown-mod=macro%%percent",
			[]rawTerm{
				{name: "unknown-mod", sep: '=', value: "macro%%percent", raw: "unknown-mod=macro%%percent"},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got := lexRecord(test.input)
			if diff := cmp.Diff(test.want, got, cmp.AllowUnexported(rawTerm{})); diff != "" {
				t.Errorf("lexRecord(%q) mismatch (-want +got):\n%s", test.input, diff)
			}
		})
	}
}

func TestCheckUnknownModifierSyntax(t *testing.T) {
	tests := []struct {
		key, value string
		want       bool
	}{
		{"match_subdomains", "yes", true},
		{"unknown-mod", "macro%{s}", true},
		{"unknown", "%{x}", false},
		{"9starts-with-digit", "x", false},
		{"spaces", "a b", false},
	}

	for _, test := range tests {
		if got := checkUnknownModifierSyntax(test.key, test.value); got != test.want {
			t.Errorf("checkUnknownModifierSyntax(%q, %q) = %t; want %t", test.key, test.value, got, test.want)
		}
	}
}
