package spf

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/miekg/dns"
)

func respMsg(t *testing.T, name string, qtype uint16, answers ...string) *dns.Msg {
	t.Helper()
	req := new(dns.Msg)
	req.SetQuestion(name, qtype)
	res := new(dns.Msg)
	res.SetReply(req)
	for _, a := range answers {
		rr, err := dns.NewRR(a)
		if err != nil {
			t.Fatalf("bad answer %q: %s", a, err)
		}
		res.Answer = append(res.Answer, rr)
	}
	return res
}

func TestCacheDumpRoundTrip(t *testing.T) {
	txt := respMsg(t, "example.com.", dns.TypeTXT,
		`example.com. 3600 IN TXT "v=spf1 a -all"`)
	a := respMsg(t, "mail.example.com.", dns.TypeA,
		"mail.example.com. 3600 IN A 192.0.2.1",
		"mail.example.com. 3600 IN A 192.0.2.2")
	dump := CacheDump{
		txt.Question[0]: txt,
		a.Question[0]:   a,
	}

	b, err := json.Marshal(dump)
	if err != nil {
		t.Fatalf("marshal: %s", err)
	}

	// each message carries a reviewable comment entry
	var raw []string
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("dump is not a JSON string array: %s", err)
	}
	comments := 0
	for _, v := range raw {
		if strings.HasPrefix(v, ";") {
			comments++
		}
	}
	if comments != len(dump) {
		t.Errorf("got %d comment entries; want %d", comments, len(dump))
	}

	var got CacheDump
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %s", err)
	}
	if len(got) != len(dump) {
		t.Fatalf("got %d messages; want %d", len(got), len(dump))
	}
	for q, want := range dump {
		msg, ok := got[q]
		if !ok {
			t.Fatalf("question %v missing after round trip", q)
		}
		if len(msg.Answer) != len(want.Answer) {
			t.Fatalf("%v: got %d answers; want %d", q, len(msg.Answer), len(want.Answer))
		}
		for i := range want.Answer {
			if got, want := msg.Answer[i].String(), want.Answer[i].String(); got != want {
				t.Errorf("%v answer %d:\n got %s\nwant %s", q, i, got, want)
			}
		}
	}
}

func TestCacheDumpNull(t *testing.T) {
	var dump CacheDump
	b, err := json.Marshal(dump)
	if err != nil {
		t.Fatalf("marshal: %s", err)
	}
	if string(b) != "null" {
		t.Errorf("nil dump marshals as %s; want null", b)
	}
	var got CacheDump
	if err := got.UnmarshalJSON([]byte("null")); err != nil {
		t.Fatalf("unmarshal null: %s", err)
	}
	if got != nil {
		t.Errorf("null unmarshals as %v; want nil", got)
	}
}

// A primed cache answers without any server behind the resolver.
func TestCacheDumpPrimesResolver(t *testing.T) {
	txt := respMsg(t, "offline.test.", dns.TypeTXT,
		`offline.test. 3600 IN TXT "v=spf1 ip4:203.0.113.0/24 -all"`)
	dump := CacheDump{txt.Question[0]: txt}

	cache := newTestCache()
	// 192.0.2.0/24 is TEST-NET-1; nothing listens there
	r, err := NewMiekgDNSResolver("192.0.2.1:53", MiekgDNSCache(cache))
	if err != nil {
		t.Fatal(err)
	}

	dump.ForEach(r.CacheResponse)
	cache.Wait()

	txts, err := r.LookupTXT(context.Background(), "offline.test.")
	if err != nil {
		t.Fatalf("LookupTXT: %s", err)
	}
	want := []string{"v=spf1 ip4:203.0.113.0/24 -all"}
	if len(txts) != 1 || txts[0] != want[0] {
		t.Errorf("got %q; want %q", txts, want)
	}
}
