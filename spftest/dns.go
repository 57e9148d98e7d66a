// Package spftest runs a local DNS server for exercising resolvers against
// hand-built zones. Handlers register through the plain miekg/dns muxer, so
// a test owns exactly the names it registers.
package spftest

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// StartDNSServer listens on laddr and serves the default dns muxer. It
// returns once the server accepts queries.
func StartDNSServer(network, laddr string) (*dns.Server, error) {
	pc, err := net.ListenPacket(network, laddr)
	if err != nil {
		return nil, err
	}
	server := &dns.Server{PacketConn: pc, ReadTimeout: time.Second, WriteTimeout: time.Second}

	started := sync.Mutex{}
	started.Lock()
	server.NotifyStartedFunc = started.Unlock

	go func() {
		_ = server.ActivateAndServe()
		_ = pc.Close()
	}()

	started.Lock()
	return server, nil
}

// RootZone answers the root SOA and NXDOMAINs everything else, standing in
// for names no test registered a handler for.
func RootZone(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	switch req.Question[0].Name {
	case ".":
		m.SetReply(req)
		rr, _ := dns.NewRR(". 0 IN SOA a.root-servers.net. nstld.verisign-grs.com. 2016110600 1800 900 604800 86400")
		m.Ns = []dns.RR{rr}
	default:
		m.SetRcode(req, dns.RcodeNameError)
	}
	_ = w.WriteMsg(m)
}

// WithDelay wraps a handler with a fixed delay, for timeout and retry tests.
func WithDelay(f dns.HandlerFunc, d time.Duration) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		time.Sleep(d)
		f(w, req)
	}
}

// Zone serves records from a literal map of qtype to zone-file lines. Lines
// whose owner name does not match the question are skipped, so one map can
// hold a whole subtree.
func Zone(zone map[uint16][]string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)

		lines, ok := zone[req.Question[0].Qtype]
		if !ok {
			_ = w.WriteMsg(m)
			return
		}
		m.Answer = make([]dns.RR, 0, len(lines))
		for _, line := range lines {
			if !strings.HasPrefix(line, req.Question[0].Name) {
				continue
			}
			rr, err := dns.NewRR(line)
			if err != nil {
				fmt.Printf("unable to prepare dns response: %s\n", err)
				continue
			}
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	}
}
