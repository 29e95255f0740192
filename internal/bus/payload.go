package bus

// Payload carries the untrusted arguments of one dispatched action. Values
// typically arrive from decoded JSON, so the accessors tolerate the loose
// types encoding/json produces and return zero values on any mismatch.
type Payload map[string]any

// String returns the string under key, or "".
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int64 returns the integer under key. JSON numbers decode as float64; only
// whole values are accepted.
func (p Payload) Int64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// Strings returns the string list under key, accepting either []string or
// the []any that JSON decoding produces. Non-string elements are dropped.
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Map returns the nested object under key, or nil.
func (p Payload) Map(key string) map[string]any {
	m, _ := p[key].(map[string]any)
	return m
}

// StringMap returns the nested object under key with its values narrowed to
// strings. Non-string values are dropped.
func (p Payload) StringMap(key string) map[string]string {
	src := p.Map(key)
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
