package request

import "strconv"

// Metadata is the dynamic `Map<String, Value>` spec section 9 calls for.
// Values may be raw Go scalars (bool, int, float64, string) or already
// string-encoded (as they would arrive over the automation JSON wire);
// every accessor tolerates both.
type Metadata map[string]any

// aliases maps the bare alias some callers use to its canonical dotted
// key (e.g. "mode" -> "video.mode"), per spec section 9's "consistent key
// aliasing" requirement.
var aliases = map[string]string{
	"mode":                 "video.mode",
	"maxWidth":             "video.maxWidth",
	"fps":                  "video.fps",
	"removeAudio":          "video.removeAudio",
	"playbackSpeedFactor":  "video.playbackSpeedFactor",
}

func (m Metadata) lookup(key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	if canonical, ok := aliases[key]; ok {
		if v, ok := m[canonical]; ok {
			return v, true
		}
	}
	for alias, canonical := range aliases {
		if canonical == key {
			if v, ok := m[alias]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// Bool returns the boolean value of key, or def if absent/unparsable.
func (m Metadata) Bool(key string, def bool) bool {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Int returns the integer value of key, or def if absent/unparsable.
func (m Metadata) Int(key string, def int) int {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// Float returns the float64 value of key, or def if absent/unparsable.
func (m Metadata) Float(key string, def float64) float64 {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// String returns the string value of key, or def if absent.
func (m Metadata) String(key string, def string) string {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// StringSlice returns the []string value of key, or def if absent.
func (m Metadata) StringSlice(key string, def []string) []string {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return def
	}
}
