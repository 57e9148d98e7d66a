package spferr

import "strconv"

// Kind buckets evaluation failures so callers can report or alert on them
// without matching individual sentinel errors.
type Kind int8

const (
	KindUnknown Kind = iota
	KindSyntax
	KindValidation
	KindDNS
	KindLimit
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindValidation:
		return "validation"
	case KindDNS:
		return "dns"
	case KindLimit:
		return "limit"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = 0
		return nil
	}
	switch s := string(text); s {
	case "unknown":
		*k = KindUnknown
		return nil
	case "syntax":
		*k = KindSyntax
		return nil
	case "validation":
		*k = KindValidation
		return nil
	case "dns":
		*k = KindDNS
		return nil
	case "limit":
		*k = KindLimit
		return nil
	default:
		i, err := strconv.Atoi(s)
		*k = Kind(i)
		return err
	}
}
