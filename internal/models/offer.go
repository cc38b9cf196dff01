package models

import "encoding/json"

// RawSearchResult is what the upstream client hands to the normalizer. Offers
// stay undecoded so that one malformed offer cannot poison a whole page.
type RawSearchResult struct {
	Offers       []json.RawMessage
	Dictionaries Dictionaries
	Pages        int
	Partial      bool
}

type Dictionaries struct {
	Carriers   map[string]string `json:"carriers,omitempty"`
	Aircraft   map[string]string `json:"aircraft,omitempty"`
	Currencies map[string]string `json:"currencies,omitempty"`
}

// Merge copies entries from other without overwriting existing keys.
func (d *Dictionaries) Merge(other Dictionaries) {
	d.Carriers = mergeMap(d.Carriers, other.Carriers)
	d.Aircraft = mergeMap(d.Aircraft, other.Aircraft)
	d.Currencies = mergeMap(d.Currencies, other.Currencies)
}

func mergeMap(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}
