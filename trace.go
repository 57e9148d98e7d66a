package spf

import (
	"fmt"
	"net"
	"strings"
)

// Trace holds the data for a "Received-SPF" header field,
// RFC 7208 section 9.1.
type Trace struct {
	Result       Result `json:"result"`                 // the result
	Explanation  string `json:"exp,omitempty"`          // supporting information for the result
	ClientIP     net.IP `json:"clientIp,omitempty"`     // the IP address of the SMTP client
	Identity     string `json:"identity,omitempty"`     // the identity that was checked
	Helo         string `json:"helo,omitempty"`         // the host name given in the HELO or EHLO command
	EnvelopeFrom string `json:"envelopeFrom,omitempty"` // the envelope sender mailbox
	Problem      error  `json:"problem,omitempty"`      // if an error was returned, details about the error
	Receiver     string `json:"receiver,omitempty"`     // the host name of the SPF verifier
	Mechanism    string `json:"mechanism,omitempty"`    // the mechanism that matched
}

// ReceivedSPF renders the header field body: the result, a parenthesized
// comment and the key-value pairs. The comment carries the exp= text when
// one was produced and a generic description of the result otherwise.
func (t *Trace) ReceivedSPF() string {
	if t == nil {
		return ""
	}
	var b strings.Builder

	b.WriteString(t.Result.String())
	b.WriteString(" (")
	t.writeComment(&b)
	b.WriteByte(')')

	var sep bool
	writeKV := func(k, v string) {
		if v == "" {
			return
		}
		if sep {
			b.WriteByte(';')
		}
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		sep = true
	}

	if t.ClientIP != nil {
		writeKV("client-ip", t.ClientIP.String())
	}
	if t.Problem != nil {
		writeKV("problem", t.Problem.Error())
	}
	writeKV("identity", t.Identity)
	writeKV("helo", t.Helo)
	writeKV("envelope-from", t.EnvelopeFrom)
	writeKV("receiver", t.Receiver)
	writeKV("mechanism", t.Mechanism)
	return b.String()
}

func (t *Trace) writeComment(b *strings.Builder) {
	if t.Explanation != "" {
		b.WriteString(t.Explanation)
		return
	}
	if t.Receiver != "" {
		b.WriteString(t.Receiver)
		b.WriteString(": ")
	}
	sender := "sender"
	if t.EnvelopeFrom != "" {
		sender = t.EnvelopeFrom
	}
	host := "the host"
	if t.ClientIP != nil {
		host = t.ClientIP.String()
	}
	switch t.Result {
	case Pass:
		fmt.Fprintf(b, "domain of %s designates %s as permitted sender", sender, host)
	case Fail:
		fmt.Fprintf(b, "domain of %s does not designate %s as permitted sender", sender, host)
	case Softfail:
		fmt.Fprintf(b, "domain of %s does not designate %s as permitted sender but is in transition", sender, host)
	case Neutral:
		b.WriteString("nothing can be said about validity")
	case None:
		fmt.Fprintf(b, "domain of %s does not have an SPF record or the SPF record does not evaluate to a result", sender)
	case Permerror:
		b.WriteString("a permanent error occurred")
	case Temperror:
		b.WriteString("a transient error occurred")
	}
}
