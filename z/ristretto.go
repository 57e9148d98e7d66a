package z

import (
	"github.com/cespare/xxhash/v2"
	"github.com/miekg/dns"
	"github.com/outcaste-io/ristretto"
)

// MsgCost weighs a cached response by its wire length, so the cache budget
// tracks memory rather than entry count.
func MsgCost(v any) int64 {
	return int64(v.(*dns.Msg).Len())
}

// QuestionToHash keys cache entries by the full question tuple. The name is
// hashed as stored; callers normalize it before lookup.
func QuestionToHash(k any) (uint64, uint64) {
	q := k.(dns.Question)

	h := xxhash.New()
	h.Write([]byte(q.Name))
	h.Write([]byte{byte(q.Qtype >> 8), byte(q.Qtype)})
	h.Write([]byte{byte(q.Qclass >> 8), byte(q.Qclass)})

	return h.Sum64(), 0
}

// MustRistrettoCache builds a ristretto cache or panics. Meant for
// process-lifetime caches wired at startup.
func MustRistrettoCache(cfg *ristretto.Config) *ristretto.Cache {
	c, err := ristretto.NewCache(cfg)
	if err != nil {
		panic(err)
	}
	return c
}
