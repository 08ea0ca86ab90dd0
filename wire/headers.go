package wire

import "sort"

// Headers is a case-insensitive header map keeping an ordered value list per
// field name. Each value corresponds to one field line on the wire; values are
// never comma-joined, so fields like Set-Cookie whose values embed commas stay
// intact.
type Headers struct{ underlying map[string][]string }

func NewHeaders() Headers {
	return Headers{underlying: make(map[string][]string)}
}

// HeadersFrom creates Headers from raw field lines, one value per line.
func HeadersFrom(fields []Field) Headers {
	h := NewHeaders()
	for _, field := range fields {
		h.Add(field.Name, field.Value)
	}
	return h
}

// Fields returns all field lines, sorted by canonical name so serialization
// is deterministic. Values within a name keep their insertion order.
func (h Headers) Fields() (fields []Field) {
	names := make([]string, 0, len(h.underlying))
	for k := range h.underlying {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		for _, v := range h.underlying[k] {
			fields = append(fields, Field{Name: k, Value: v})
		}
	}

	return fields
}

// Get assumes the field is a singleton field. Even if the key has multiple
// values, only the first is returned. For list-based fields use
// [Headers.Values].
func (h Headers) Get(key string) (value string, ok bool) {
	v, ok := h.underlying[h.canonical(key)]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (h Headers) Values(key string) []string {
	return h.underlying[h.canonical(key)]
}

func (h Headers) Has(key string) bool {
	v, ok := h.underlying[h.canonical(key)]
	return ok && len(v) > 0
}

// Set assumes the field is a singleton field. It overwrites the existing
// value instead of appending to it. For list-based fields use [Headers.Add].
func (h *Headers) Set(key, value string) {
	h.init()
	h.underlying[h.canonical(key)] = []string{value}
}

func (h *Headers) Add(key, value string) {
	h.init()
	key = h.canonical(key)
	h.underlying[key] = append(h.underlying[key], value)
}

func (h *Headers) Del(key string) {
	delete(h.underlying, h.canonical(key))
}

func (h Headers) Len() int { return len(h.underlying) }

func (h Headers) Clone() Headers {
	clone := NewHeaders()
	for k, v := range h.underlying {
		vals := make([]string, len(v))
		copy(vals, v)
		clone.underlying[k] = vals
	}
	return clone
}

func (h *Headers) init() {
	if h.underlying == nil {
		h.underlying = make(map[string][]string)
	}
}

func (h Headers) canonical(s string) string {
	if IsValidToken(s) {
		s = toCanonicalFieldName(s)
	}
	return s
}

// This only works for a valid token.
func toCanonicalFieldName(s string) string {
	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			c -= capitalDiff
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += capitalDiff
		}
		b[i] = c
		upper = c == '-'
	}
	return string(b)
}
