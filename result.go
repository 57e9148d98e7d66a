package spf

import "strconv"

// Result represents the outcome of an SPF evaluation as defined by RFC 7208
// https://tools.ietf.org/html/rfc7208#section-2.6
type Result int

const (
	_ Result = iota

	// None means either (a) no syntactically valid DNS domain name was
	// extracted from the SMTP session that could be used as the one to be
	// authorized, or (b) no SPF records were retrieved from the DNS.
	None
	// Neutral means the ADMD has explicitly stated that it is not asserting
	// whether the IP address is authorized.
	Neutral
	// Pass is an explicit statement that the client is authorized to inject
	// mail with the given identity.
	Pass
	// Fail is an explicit statement that the client is not authorized to use
	// the domain in the given identity.
	Fail
	// Softfail is a weak statement by the publishing ADMD that the host is
	// probably not authorized. It has not published a stronger, more
	// definitive policy that results in a "fail".
	Softfail
	// Temperror means the SPF verifier encountered a transient (generally
	// DNS) error while performing the check. A later retry may succeed
	// without further DNS operator action.
	Temperror
	// Permerror means the domain's published records could not be correctly
	// interpreted. This signals an error condition that requires DNS operator
	// intervention to be resolved.
	Permerror

	internalError
)

// String returns the string form of the result as defined by RFC 7208
// https://tools.ietf.org/html/rfc7208#section-2.6
func (r Result) String() string {
	switch r {
	case None:
		return "none"
	case Neutral:
		return "neutral"
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case Softfail:
		return "softfail"
	case Temperror:
		return "temperror"
	case Permerror:
		return "permerror"
	default:
		return strconv.Itoa(int(r))
	}
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = 0
		return nil
	}
	switch s := string(text); s {
	case "none":
		*r = None
		return nil
	case "neutral":
		*r = Neutral
		return nil
	case "pass":
		*r = Pass
		return nil
	case "fail":
		*r = Fail
		return nil
	case "softfail":
		*r = Softfail
		return nil
	case "temperror":
		*r = Temperror
		return nil
	case "permerror":
		*r = Permerror
		return nil
	default:
		i, err := strconv.Atoi(s)
		*r = Result(i)
		return err
	}
}
