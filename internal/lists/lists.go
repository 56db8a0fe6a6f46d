package lists

import "strings"

// Set is a lower-cased string set.
type Set map[string]struct{}

func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s Set) Add(v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return
	}
	s[v] = struct{}{}
}

func (s Set) Has(v string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// MatchAny reports whether any of the non-empty values is in the set.
func (s Set) MatchAny(values ...string) bool {
	for _, v := range values {
		if v == "" {
			continue
		}
		if s.Has(v) {
			return true
		}
	}
	return false
}

// AddressLists: статические справочники одного прогона, только для чтения.
type AddressLists struct {
	Blacklist        Set
	Watchlist        Set
	SensitiveTokens  Set
	SensitiveMethods Set
}

func Empty() AddressLists {
	return AddressLists{
		Blacklist:        NewSet(),
		Watchlist:        NewSet(),
		SensitiveTokens:  NewSet(),
		SensitiveMethods: NewSet(),
	}
}
