package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Stock maps product ids to the quantity still available to reserve.
type Stock map[ProductID]int

// Clone returns an independent copy of s.
func (s Stock) Clone() Stock {
	out := make(Stock, len(s))
	for id, qty := range s {
		out[id] = qty
	}
	return out
}

// IDs returns the product ids in s, sorted.
func (s Stock) IDs() []ProductID {
	ids := make([]ProductID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarshalStock serializes s as canonical JSON.
func MarshalStock(s Stock) (string, error) {
	obj := make(map[string]any, len(s))
	for id, qty := range s {
		obj[string(id)] = int64(qty)
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal stock: %w", err)
	}
	return string(data), nil
}

// UnmarshalStock parses a persisted stock mapping. Empty input yields an
// empty Stock. Negative quantities are rejected: a ledger holding one has
// been corrupted outside the engine.
func UnmarshalStock(data string) (Stock, error) {
	if data == "" {
		return Stock{}, nil
	}
	var raw map[string]int
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal stock: %w", err)
	}
	s := make(Stock, len(raw))
	for id, qty := range raw {
		if qty < 0 {
			return nil, fmt.Errorf("unmarshal stock: product %s has negative quantity %d", id, qty)
		}
		s[ProductID(id)] = qty
	}
	return s, nil
}
