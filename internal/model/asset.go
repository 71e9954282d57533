package model

import "strings"

// Asset is one entry from the Pendle assets listing.
type Asset struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	ChainID uint64 `json:"chainId"`
}

// Key returns the stable identity used for diffing between polls.
func (a Asset) Key() string {
	return strings.ToLower(a.Address) + "::" + a.Symbol
}

// DisplayName prefers the human name, falling back to symbol.
func (a Asset) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Address
}
