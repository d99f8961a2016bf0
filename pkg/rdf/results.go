// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package rdf

import (
	"encoding/json"
	"io"
)

// Binding is one row of a SPARQL SELECT result.
type Binding map[string]Term

// Get returns the term bound to name, if any.
func (b Binding) Get(name string) (Term, bool) {
	t, ok := b[name]
	return t, ok
}

// Value returns the lexical value bound to name, or "" when unbound.
func (b Binding) Value(name string) string {
	return b[name].Value
}

// Results is the SPARQL 1.1 Query Results JSON document.
type Results struct {
	Head struct {
		Vars []string `json:"vars,omitempty"`
	} `json:"head"`
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean,omitempty"`
}

// DecodeResults parses a SPARQL JSON results document.
func DecodeResults(r io.Reader) (*Results, error) {
	var res Results
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
