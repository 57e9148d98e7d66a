package spf

import (
	"fmt"
	"os"
	"testing"

	"github.com/miekg/dns"
	"github.com/outcaste-io/ristretto"

	"github.com/sentinelmail/spf/spftest"
	"github.com/sentinelmail/spf/z"
)

var (
	testResolver      *miekgDNSResolver
	testResolverCache *ristretto.Cache
)

func newTestCache() *ristretto.Cache {
	return z.MustRistrettoCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
		KeyToHash:   z.QuestionToHash,
		Cost:        z.MsgCost,
	})
}

func TestMain(m *testing.M) {
	s, err := spftest.StartDNSServer("udp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Errorf("unable to run local DNS server: %w", err))
	}

	dns.HandleFunc(".", spftest.RootZone)

	defer func() {
		dns.HandleRemove(".")
		_ = s.Shutdown()
	}()

	testResolverCache = newTestCache()

	testResolver, _ = NewMiekgDNSResolver(s.PacketConn.LocalAddr().String(),
		MiekgDNSCache(testResolverCache))
	os.Exit(m.Run())
}
