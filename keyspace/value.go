package keyspace

import (
	"encoding/json"
	"sort"
)

// Kind tags the shape of a decoded [Value].
type Kind uint8

const (
	KindUnsupported Kind = iota
	KindString
	KindHash
	KindList
	KindSet
	KindSortedSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindHash:
		return "hash"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindSortedSet:
		return "zset"
	default:
		return "unsupported"
	}
}

// Value is a fully materialized Redis value. The set of implementations is
// closed to this package.
type Value interface {
	Kind() Kind
	sealed()
}

// String is the value of a Redis string key.
type String string

// Hash is the field/value map of a Redis hash.
type Hash map[string]string

// List holds list elements in index order.
type List []string

// Set holds set members sorted lexically; Redis itself keeps no order.
type Set []string

// SortedSet holds sorted-set members in ascending score order.
type SortedSet []string

// Unsupported stands in for a key whose Redis type has no decoder.
type Unsupported struct {
	Type string
}

func (String) Kind() Kind      { return KindString }
func (Hash) Kind() Kind        { return KindHash }
func (List) Kind() Kind        { return KindList }
func (Set) Kind() Kind         { return KindSet }
func (SortedSet) Kind() Kind   { return KindSortedSet }
func (Unsupported) Kind() Kind { return KindUnsupported }

func (String) sealed()      {}
func (Hash) sealed()        {}
func (List) sealed()        {}
func (Set) sealed()         {}
func (SortedSet) sealed()   {}
func (Unsupported) sealed() {}

func (u Unsupported) String() string {
	return "Unsupported key type: " + u.Type
}

// MarshalJSON renders the placeholder text rather than an object so that an
// export stays a flat {key: value} document.
func (u Unsupported) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (h Hash) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(h))
}

func (l List) MarshalJSON() ([]byte, error)      { return marshalStrings(l) }
func (s Set) MarshalJSON() ([]byte, error)       { return marshalStrings(s) }
func (z SortedSet) MarshalJSON() ([]byte, error) { return marshalStrings(z) }

func marshalStrings(items []string) ([]byte, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}

// Materialize converts v into plain Go values: string, map[string]string or
// []string. Unsupported values become their placeholder string.
func Materialize(v Value) any {
	switch t := v.(type) {
	case String:
		return string(t)
	case Hash:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case List:
		return append([]string{}, t...)
	case Set:
		return append([]string{}, t...)
	case SortedSet:
		return append([]string{}, t...)
	case Unsupported:
		return t.String()
	default:
		return Unsupported{Type: "unknown"}.String()
	}
}

func newSet(members []string) Set {
	out := append(Set{}, members...)
	sort.Strings(out)
	return out
}
