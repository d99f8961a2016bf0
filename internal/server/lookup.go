// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/graphscope/internal/resolver"
	"github.com/sigil-dev/graphscope/pkg/rdf"
)

// Session-free lookups straight against the endpoint.
func (s *Server) registerLookupRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "lookup-properties",
		Method:      http.MethodGet,
		Path:        "/api/v1/properties",
		Summary:     "List a subject's properties",
		Description: "Properties come back with their in and out counts, sorted by label.",
		Tags:        []string{"lookup"},
	}, s.handleLookupProperties)

	huma.Register(s.api, huma.Operation{
		OperationID: "lookup-related",
		Method:      http.MethodGet,
		Path:        "/api/v1/related",
		Summary:     "List nodes related through one property",
		Tags:        []string{"lookup"},
	}, s.handleLookupRelated)
}

type lookupPropertiesInput struct {
	URI string `query:"uri" required:"true" minLength:"1" doc:"URI or literal"`
}

type lookupPropertiesOutput struct {
	Body struct {
		Subject    rdf.Term            `json:"subject"`
		Properties []resolver.Property `json:"properties"`
	}
}

type lookupRelatedInput struct {
	URI      string `query:"uri" required:"true" minLength:"1"`
	Property string `query:"property" required:"true" minLength:"1"`
}

type lookupRelatedOutput struct {
	Body struct {
		Subject rdf.Term           `json:"subject"`
		Related []resolver.Related `json:"related"`
	}
}

func (s *Server) handleLookupProperties(ctx context.Context, input *lookupPropertiesInput) (*lookupPropertiesOutput, error) {
	if s.svc.Lookup == nil {
		return nil, huma.Error503ServiceUnavailable("lookup not configured")
	}
	subject := rdf.TermFor(input.URI)
	out := &lookupPropertiesOutput{}
	out.Body.Subject = subject
	out.Body.Properties = s.svc.Lookup.FetchProperties(ctx, subject, nil)
	if out.Body.Properties == nil {
		out.Body.Properties = []resolver.Property{}
	}
	return out, nil
}

func (s *Server) handleLookupRelated(ctx context.Context, input *lookupRelatedInput) (*lookupRelatedOutput, error) {
	if s.svc.Lookup == nil {
		return nil, huma.Error503ServiceUnavailable("lookup not configured")
	}
	subject := rdf.TermFor(input.URI)
	out := &lookupRelatedOutput{}
	out.Body.Subject = subject
	out.Body.Related = s.svc.Lookup.FetchRelatedNodes(ctx, subject, input.Property)
	if out.Body.Related == nil {
		out.Body.Related = []resolver.Related{}
	}
	return out, nil
}
