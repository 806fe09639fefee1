package domain

// Sentinels is an instrument-specific set of in-band "no data" markers.
// WeatherLink consoles use {-1, 255, 32767}; other hardware differs, so the
// set is configured per adapter rather than fixed globally.
type Sentinels map[float64]struct{}

// NewSentinels builds a sentinel set from the given marker values.
func NewSentinels(values ...float64) Sentinels {
	s := make(Sentinels, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// IsMissing reports whether v is absent or one of the sentinel markers.
func (s Sentinels) IsMissing(v *float64) bool {
	if v == nil {
		return true
	}
	_, ok := s[*v]
	return ok
}

// conversion holds the affine transform v*factor + offset for a unit pair.
type conversion struct {
	factor float64
	offset float64
}

// conversions maps from-unit -> to-unit -> transform. The factors are fixed
// properties of the units; the clicks/min rate is the tip volume of the Davis
// rain bucket in service (0.4 in = 10.16 mm per click).
var conversions = map[string]map[string]conversion{
	"°F":         {"°C": {factor: 5.0 / 9.0, offset: -32.0 * 5.0 / 9.0}},
	"mph":        {"m/s": {factor: 0.44704}},
	"inHg":       {"hPa": {factor: 33.8639}},
	"in":         {"mm": {factor: 25.4}},
	"clicks/min": {"mm/h": {factor: 10.16}},
}

// Convert converts v from one unit to another, returning nil when the value
// is missing per the sentinel set. Unknown unit pairs pass the value through
// unchanged: a permissive default, not an error.
func Convert(v *float64, from, to string, sentinels Sentinels) *float64 {
	if sentinels.IsMissing(v) {
		return nil
	}
	out := *v
	if byTo, ok := conversions[from]; ok {
		if c, ok := byTo[to]; ok {
			out = out*c.factor + c.offset
		}
	}
	return &out
}

// VariableKind selects the plausibility bounds applied by InRange.
type VariableKind int

const (
	KindUnknown VariableKind = iota
	KindWindSpeed
	KindRelativeHumidity
	KindDirection
	KindBarometricPressure
	KindAirTemperature
)

// bounds are physical-plausibility limits in SI units; half-open on the
// upper end only for angular variables.
var bounds = map[VariableKind]struct {
	min, max  float64
	openUpper bool
}{
	KindWindSpeed:          {min: 0, max: 100},
	KindRelativeHumidity:   {min: 0, max: 100},
	KindDirection:          {min: 0, max: 360, openUpper: true},
	KindBarometricPressure: {min: 870, max: 1085},
	KindAirTemperature:     {min: -60, max: 60},
}

// InRange reports whether v is physically plausible for the variable kind.
// Unknown kinds are always in range. Callers drop (and log) failing values;
// they are never coerced into range.
func InRange(kind VariableKind, v float64) bool {
	b, ok := bounds[kind]
	if !ok {
		return true
	}
	if v < b.min {
		return false
	}
	if b.openUpper {
		return v < b.max
	}
	return v <= b.max
}
