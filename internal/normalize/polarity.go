package normalize

// Polarity describes how a device kind's simulator output maps onto the
// measured sheet's sign conventions.
type Polarity struct {
	Kind string
	// ProbeSign prefixes the probed current in the result header, {-I(VCP)} vs {I(VCP)}.
	ProbeSign string
	// KeySign maps pivot keys onto the canonical positive keys.
	KeySign float64
	// BiasSign maps the driving variable onto the measured axis.
	BiasSign float64
	// Reverse flips the row order after pivoting.
	Reverse bool
}

var polarities = map[string]Polarity{
	"npn":  {Kind: "npn", ProbeSign: "-", KeySign: 1, BiasSign: 1},
	"nmos": {Kind: "nmos", ProbeSign: "-", KeySign: 1, BiasSign: 1},
	"pnp":  {Kind: "pnp", ProbeSign: "", KeySign: -1, BiasSign: -1, Reverse: true},
	"pmos": {Kind: "pmos", ProbeSign: "", KeySign: -1, BiasSign: -1, Reverse: true},
}

// PolarityFor returns the rule for a device kind. Unknown kinds get the
// identity rule and ok=false.
func PolarityFor(kind string) (Polarity, bool) {
	p, ok := polarities[kind]
	if !ok {
		return Polarity{Kind: kind, KeySign: 1, BiasSign: 1}, false
	}
	return p, true
}

// ProbeHeader is the result column holding a probed quantity, e.g. {-I(VCP)}.
func (p Polarity) ProbeHeader(probe string) string {
	return "{" + p.ProbeSign + probe + "}"
}
