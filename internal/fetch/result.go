package fetch

// Kind classifies why a fetch produced no data.
type Kind int

const (
	// KindNone means the call succeeded.
	KindNone Kind = iota
	// KindStatus means the upstream answered with a non-2xx status.
	KindStatus
	// KindTransport means the request never got a usable answer.
	KindTransport
	// KindDecode means the body was not valid JSON for the target type.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStatus:
		return "status"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Result is the outcome of a fetch: success, or a failure kind with its cause.
type Result struct {
	URL        string
	Status     int
	StatusText string
	Kind       Kind
	Err        error
}

// OK reports whether the payload was fetched and decoded.
func (r Result) OK() bool {
	return r.Kind == KindNone
}
