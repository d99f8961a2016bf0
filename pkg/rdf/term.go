// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package rdf holds the RDF term model shared by the SPARQL client, the
// resolvers and the graph, together with the SPARQL JSON results decoder
// and the term serialization used when embedding terms in queries.
package rdf

import (
	"encoding/json"
	"net/url"
	"strings"
	"unicode"
)

// Kind is the type of an RDF term as reported by the SPARQL JSON results format.
type Kind string

const (
	KindURI     Kind = "uri"
	KindLiteral Kind = "literal"
	KindBlank   Kind = "bnode"
)

// Term is one value of a SPARQL binding.
type Term struct {
	Kind     Kind   `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// URI returns a URI term.
func URI(value string) Term {
	return Term{Kind: KindURI, Value: value}
}

// Literal returns a plain literal term.
func Literal(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

// TypedLiteral returns a literal with a datatype.
func TypedLiteral(value, datatype string) Term {
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal.
func LangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Lang: lang}
}

// IsURI reports whether the term names a resource.
func (t Term) IsURI() bool { return t.Kind == KindURI }

// IsLiteral reports whether the term is a literal value.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// UnmarshalJSON accepts the legacy "typed-literal" kind still emitted by
// Virtuoso-based endpoints such as DBpedia.
func (t *Term) UnmarshalJSON(data []byte) error {
	type raw Term
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if r.Kind == "typed-literal" {
		r.Kind = KindLiteral
	}
	*t = Term(r)
	return nil
}

// IsURI reports whether s looks like an absolute IRI rather than a literal
// value. Prefixed names such as wd:Q42 should be expanded first.
func IsURI(s string) bool {
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

// TermFor classifies a raw identifier as a URI or a plain literal.
func TermFor(s string) Term {
	if IsURI(s) {
		return URI(s)
	}
	return Literal(s)
}
