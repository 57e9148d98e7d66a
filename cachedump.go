package spf

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/miekg/dns"
)

// CacheDump is a serializable snapshot of resolver responses, keyed by
// question. Dumps captured from live traffic can be committed as fixtures
// and primed back into a resolver, making evaluations reproducible without
// network access.
type CacheDump map[dns.Question]*dns.Msg

// MarshalJSON renders the dump as a JSON array of packed, base64-encoded
// messages. Each message is preceded by a ";name class type" comment string
// so the fixture stays reviewable; UnmarshalJSON skips those.
func (c CacheDump) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}

	longestName := 0
	for q := range c {
		if len(q.Name) > longestName {
			longestName = len(q.Name)
		}
	}

	var bb bytes.Buffer
	bb.WriteString("[\n")
	i := 0
	for q, msg := range c {
		if i > 0 {
			bb.WriteString(",\n")
		}

		packed, err := msg.Pack()
		if err != nil {
			return nil, err
		}

		bb.WriteString(`";`)
		bb.WriteString(q.Name)
		bb.Write(bytes.Repeat([]byte{' '}, longestName-len(q.Name)+1))
		bb.WriteString(dns.Class(q.Qclass).String())
		bb.WriteByte(' ')
		bb.WriteString(dns.Type(q.Qtype).String())
		bb.WriteString(`", "`)
		bb.WriteString(base64.StdEncoding.EncodeToString(packed))
		bb.WriteByte('"')
		i++
	}
	if i > 0 {
		bb.WriteByte('\n')
	}
	bb.WriteByte(']')
	return bb.Bytes(), nil
}

func (c *CacheDump) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	var values []string
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	m := make(map[dns.Question]*dns.Msg, len(values))
	for _, v := range values {
		if len(v) > 0 && v[0] == ';' {
			continue
		}
		packed, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return err
		}
		msg := new(dns.Msg)
		if err := msg.Unpack(packed); err != nil {
			return err
		}
		if len(msg.Question) == 0 {
			continue
		}
		m[msg.Question[0]] = msg
	}
	*c = m
	return nil
}

// ForEach visits every message in the dump. Priming a resolver is
//
//	dump.ForEach(r.CacheResponse)
func (c CacheDump) ForEach(f func(*dns.Msg)) {
	for _, msg := range c {
		f(msg)
	}
}
