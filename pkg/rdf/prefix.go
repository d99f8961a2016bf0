// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package rdf

import (
	"regexp"
	"strings"
)

// Prefix maps a short name to a namespace IRI.
type Prefix struct {
	Name      string
	Namespace string
}

// KnownPrefixes is declared at the top of every query, so any term shortened
// with ShortenURI is always resolvable by the endpoint.
var KnownPrefixes = []Prefix{
	{"wd", "http://www.wikidata.org/entity/"},
	{"wdt", "http://www.wikidata.org/prop/direct/"},
	{"wikibase", "http://wikiba.se/ontology#"},
	{"p", "http://www.wikidata.org/prop/"},
	{"ps", "http://www.wikidata.org/prop/statement/"},
	{"pq", "http://www.wikidata.org/prop/qualifier/"},
	{"bd", "http://www.bigdata.com/rdf#"},
	{"schema", "http://schema.org/"},
	{"rdf", "http://www.w3.org/1999/02/22-rdf-syntax-ns#"},
	{"rdfs", "http://www.w3.org/2000/01/rdf-schema#"},
	{"xsd", "http://www.w3.org/2001/XMLSchema#"},
	{"owl", "http://www.w3.org/2002/07/owl#"},
	{"skos", "http://www.w3.org/2004/02/skos/core#"},
	{"foaf", "http://xmlns.com/foaf/0.1/"},
	{"dct", "http://purl.org/dc/terms/"},
	{"dbo", "http://dbpedia.org/ontology/"},
	{"dbp", "http://dbpedia.org/property/"},
	{"dbr", "http://dbpedia.org/resource/"},
}

// localName matches local parts that are safe to emit unescaped in a
// prefixed name.
var localName = regexp.MustCompile(`^[A-Za-z0-9_]([A-Za-z0-9_.-]*[A-Za-z0-9_-])?$`)

// PrefixHeader renders PREFIX declarations for every known prefix.
func PrefixHeader() string {
	var b strings.Builder
	for _, p := range KnownPrefixes {
		b.WriteString("PREFIX ")
		b.WriteString(p.Name)
		b.WriteString(": <")
		b.WriteString(p.Namespace)
		b.WriteString(">\n")
	}
	return b.String()
}

// ShortenURI renders uri as a prefixed name when a known namespace matches
// and the remainder is a safe local name, and as <uri> otherwise.
func ShortenURI(uri string) string {
	best := -1
	for i, p := range KnownPrefixes {
		if !strings.HasPrefix(uri, p.Namespace) {
			continue
		}
		if best == -1 || len(p.Namespace) > len(KnownPrefixes[best].Namespace) {
			best = i
		}
	}
	if best >= 0 {
		local := strings.TrimPrefix(uri, KnownPrefixes[best].Namespace)
		if localName.MatchString(local) {
			return KnownPrefixes[best].Name + ":" + local
		}
	}
	return "<" + escapeIRI(uri) + ">"
}

// ExpandURI turns a prefixed name such as wd:Q42 into a full IRI. Values
// that do not use a known prefix are returned unchanged.
func ExpandURI(s string) string {
	name, local, ok := strings.Cut(s, ":")
	if !ok || strings.HasPrefix(local, "//") {
		return s
	}
	for _, p := range KnownPrefixes {
		if p.Name == name {
			return p.Namespace + local
		}
	}
	return s
}

// FormatLiteral renders a literal as a quoted string with an optional
// ^^<datatype> or @lang suffix. A language tag wins over a datatype.
func FormatLiteral(value, datatype, lang string) string {
	q := `"` + literalEscaper.Replace(value) + `"`
	switch {
	case lang != "":
		return q + "@" + lang
	case datatype != "":
		return q + "^^<" + escapeIRI(datatype) + ">"
	default:
		return q
	}
}

// FormatTerm serializes t for embedding in a query, e.g. in a VALUES clause.
func FormatTerm(t Term) string {
	if t.Kind == KindLiteral {
		return FormatLiteral(t.Value, t.Datatype, t.Lang)
	}
	return ShortenURI(t.Value)
}

// FormatTerms joins the serialized terms with single spaces.
func FormatTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = FormatTerm(t)
	}
	return strings.Join(parts, " ")
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeIRI(s string) string {
	return strings.NewReplacer(">", "%3E", "<", "%3C", " ", "%20", `"`, "%22").Replace(s)
}
