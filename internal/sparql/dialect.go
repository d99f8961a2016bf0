// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sparql

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// Dialect holds the endpoint-specific SPARQL fragments used when looking up
// labels, descriptions, images and explorable predicates. Predicates are
// written in prefixed form and rely on rdf.PrefixHeader.
type Dialect struct {
	Name        string
	Label       string
	Description string
	Image       string
	Type        string

	// PropertyFilter is a format string taking the predicate variable. It
	// restricts that variable to predicates worth exploring. Empty means
	// every predicate qualifies.
	PropertyFilter string

	// PropertyLabel is a format string taking the predicate variable and
	// the label variable.
	PropertyLabel string
}

// Wikidata labels hang off the property entity, not the wdt: predicate
// that appears in triples, so both lookups go through wikibase:directClaim.
var Wikidata = Dialect{
	Name:           "wikidata",
	Label:          "rdfs:label",
	Description:    "schema:description",
	Image:          "wdt:P18",
	Type:           "wdt:P31",
	PropertyFilter: "[] wikibase:directClaim %s .",
	PropertyLabel:  "[] wikibase:directClaim %s ; rdfs:label %s .",
}

var DBpedia = Dialect{
	Name:          "dbpedia",
	Label:         "rdfs:label",
	Description:   "rdfs:comment",
	Image:         "dbo:thumbnail",
	Type:          "rdf:type",
	PropertyLabel: "%s rdfs:label %s .",
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

func init() {
	RegisterDialect(Wikidata)
	RegisterDialect(DBpedia)
}

// RegisterDialect makes d available under d.Name, replacing any earlier
// registration with the same name.
func RegisterDialect(d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[d.Name] = d
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, sigilerr.New(sigilerr.CodeSparqlDialectNotFound,
			fmt.Sprintf("no SPARQL dialect registered for %q", name),
			sigilerr.Field("dialect", name))
	}
	return d, nil
}

// DialectNames lists the registered dialects in sorted order.
func DialectNames() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LangFilter restricts a literal variable to the given language tag.
func LangFilter(variable, lang string) string {
	return fmt.Sprintf("FILTER(LANG(%s) = %s)", variable, strconv.Quote(strings.ToLower(lang)))
}

// LabelOf binds label to the language-filtered label of subject.
func (d Dialect) LabelOf(subject, label, lang string) string {
	return fmt.Sprintf("%s %s %s . %s", subject, d.Label, label, LangFilter(label, lang))
}

// DescriptionOf binds desc to the language-filtered description of subject.
func (d Dialect) DescriptionOf(subject, desc, lang string) string {
	return fmt.Sprintf("%s %s %s . %s", subject, d.Description, desc, LangFilter(desc, lang))
}

// TypeLabelOf binds typeLabel to the label of any type of subject.
func (d Dialect) TypeLabelOf(subject, typeLabel, lang string) string {
	return fmt.Sprintf("%s %s ?__type . ?__type rdfs:label %s . %s",
		subject, d.Type, typeLabel, LangFilter(typeLabel, lang))
}

// ImageOf binds image to an image of subject.
func (d Dialect) ImageOf(subject, image string) string {
	return fmt.Sprintf("%s %s %s .", subject, d.Image, image)
}

// PropertyLabelOf binds label to the language-filtered label of the
// predicate held in property.
func (d Dialect) PropertyLabelOf(property, label, lang string) string {
	return fmt.Sprintf(d.PropertyLabel, property, label) + " " + LangFilter(label, lang)
}

// FilterProperty returns the pattern that restricts property to explorable
// predicates, or "" when the dialect does not restrict them.
func (d Dialect) FilterProperty(property string) string {
	if d.PropertyFilter == "" {
		return ""
	}
	return fmt.Sprintf(d.PropertyFilter, property)
}
