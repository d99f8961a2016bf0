// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package resolver

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/sigil-dev/graphscope/pkg/rdf"
	"golang.org/x/sync/errgroup"
)

// Property is a predicate attached to a subject together with its capped
// in/out degree.
type Property struct {
	URI      string `json:"uri"`
	Label    string `json:"label"`
	InCount  int    `json:"in_count"`
	OutCount int    `json:"out_count"`
}

// Direction tells which side of a triple the subject sits on.
type Direction string

const (
	// DirectionOut means subject --property--> related.
	DirectionOut Direction = "out"
	// DirectionIn means related --property--> subject.
	DirectionIn Direction = "in"
)

// Related is one node reachable from a subject through a property.
type Related struct {
	Term      rdf.Term  `json:"term"`
	Label     string    `json:"label"`
	Direction Direction `json:"direction"`
	// PropertyLabel is the label of the predicate that links Term to the
	// subject, or "" when the endpoint has none in the configured language.
	PropertyLabel string `json:"property_label,omitempty"`
}

// ProgressFunc receives a completion percentage between 0 and 100.
type ProgressFunc func(percent int)

// FetchProperties lists the predicates touching subject with their in/out
// counts, each capped at the size limit. Predicates excluded by
// configuration are skipped. progress, when non-nil, is called as counts
// arrive; calls are serialized.
func (r *Resolver) FetchProperties(ctx context.Context, subject rdf.Term, progress ProgressFunc) []Property {
	if !queryable(subject) {
		return nil
	}
	s := r.settings()
	subj := rdf.FormatTerm(subject)

	body := fmt.Sprintf(`SELECT DISTINCT ?property WHERE {
  { ?o ?property %[1]s } UNION { %[1]s ?property ?o }
  %[2]s
}`, subj, s.dialect.FilterProperty("?property"))

	var uris []string
	for _, b := range r.query(ctx, "properties", body) {
		p := b.Value("property")
		if p == "" || s.cfg.ExcludesProperty(p) {
			continue
		}
		uris = append(uris, p)
	}
	if len(uris) == 0 {
		if progress != nil {
			progress(100)
		}
		return nil
	}

	props := make([]Property, len(uris))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, uri := range uris {
		g.Go(func() error {
			in, out := r.countProperty(gctx, subj, uri, s.cfg.Limits.SizeLimit)
			props[i] = Property{URI: uri, InCount: in, OutCount: out}
			if progress != nil {
				mu.Lock()
				done++
				progress(done * 100 / len(uris))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	labels := r.FetchPropertyLabels(ctx, uris)
	for i := range props {
		props[i].Label = labels[props[i].URI]
	}
	return props
}

// FetchProperty returns the counts and label of one predicate on subject.
func (r *Resolver) FetchProperty(ctx context.Context, subject rdf.Term, property string) Property {
	p := Property{URI: property, Label: property}
	if !queryable(subject) || !rdf.IsURI(property) {
		return p
	}
	s := r.settings()
	p.InCount, p.OutCount = r.countProperty(ctx, rdf.FormatTerm(subject), property, s.cfg.Limits.SizeLimit)
	p.Label = r.FetchPropertyLabels(ctx, []string{property})[property]
	return p
}

func (r *Resolver) countProperty(ctx context.Context, subj, property string, limit int) (in, out int) {
	pred := rdf.ShortenURI(property)
	body := fmt.Sprintf(`SELECT (COUNT(?out) AS ?outCount) (COUNT(?in) AS ?inCount) WHERE {
  { SELECT DISTINCT ?out WHERE { %[1]s %[2]s ?out } LIMIT %[3]d }
  UNION
  { SELECT DISTINCT ?in WHERE { ?in %[2]s %[1]s } LIMIT %[3]d }
}`, subj, pred, limit)

	bindings := r.query(ctx, "property_count", body)
	if len(bindings) == 0 {
		return 0, 0
	}
	in, _ = strconv.Atoi(bindings[0].Value("inCount"))
	out, _ = strconv.Atoi(bindings[0].Value("outCount"))
	return in, out
}

// FetchRelatedNodes returns the nodes linked to subject through property in
// either direction, with their labels, in one query capped at the size
// limit. A node reached both ways is reported once, with the direction of
// its first binding.
func (r *Resolver) FetchRelatedNodes(ctx context.Context, subject rdf.Term, property string) []Related {
	if !queryable(subject) || !rdf.IsURI(property) {
		return nil
	}
	s := r.settings()
	subj := rdf.FormatTerm(subject)
	pred := rdf.ShortenURI(property)

	body := fmt.Sprintf(`SELECT DISTINCT ?object ?label ?direction ?propertyLabel WHERE {
  { %[1]s %[2]s ?object . BIND("out" AS ?direction) }
  UNION
  { ?object %[2]s %[1]s . BIND("in" AS ?direction) }
  OPTIONAL { %[3]s }
  OPTIONAL { %[5]s }
} LIMIT %[4]d`, subj, pred, s.dialect.LabelOf("?object", "?label", s.lang), s.cfg.Limits.SizeLimit,
		s.dialect.PropertyLabelOf(pred, "?propertyLabel", s.lang))

	bindings := r.query(ctx, "related", body)
	seen := make(map[rdf.Term]bool, len(bindings))
	out := make([]Related, 0, len(bindings))
	for _, b := range bindings {
		obj, ok := b.Get("object")
		if !ok || obj.Value == "" || seen[obj] {
			continue
		}
		seen[obj] = true

		label := b.Value("label")
		if label == "" {
			label = obj.Value
		}
		dir := DirectionOut
		if b.Value("direction") == string(DirectionIn) {
			dir = DirectionIn
		}
		out = append(out, Related{Term: obj, Label: label, Direction: dir, PropertyLabel: b.Value("propertyLabel")})
	}
	return out
}
