package reqfile

import (
	"net/textproto"
)

// headerSet keeps the document's header shape: a mapping stays a mapping
// and a pair list stays a pair list, so translate applies the matching
// semantics.
type headerSet struct {
	fields map[string]string
	pairs  [][]string
}

func (h *headerSet) has(name string) bool {
	key := textproto.CanonicalMIMEHeaderKey(name)
	for k := range h.fields {
		if textproto.CanonicalMIMEHeaderKey(k) == key {
			return true
		}
	}
	for _, p := range h.pairs {
		if textproto.CanonicalMIMEHeaderKey(p[0]) == key {
			return true
		}
	}
	return false
}

func (h *headerSet) setDefault(name, value string) {
	if h.has(name) {
		return
	}
	if h.fields != nil {
		h.fields[name] = value
		return
	}
	h.pairs = append(h.pairs, []string{name, value})
}

func (h *headerSet) value() any {
	switch {
	case h.fields != nil:
		return h.fields
	case h.pairs != nil:
		return h.pairs
	}
	return nil
}
