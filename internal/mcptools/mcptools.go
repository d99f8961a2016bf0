// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package mcptools serves one graph session as Model Context Protocol
// tools, so an assistant can load, expand and inspect the graph.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sigil-dev/graphscope/internal/graph"
	"github.com/sigil-dev/graphscope/internal/session"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
)

// Options configures a Server.
type Options struct {
	Session *session.Session
	Version string
	Logger  *slog.Logger
}

// Server is an MCP server bound to one session.
type Server struct {
	sess      *session.Session
	logger    *slog.Logger
	mcpServer *mcp.Server
}

// New registers the graph tools for opts.Session.
func New(opts Options) (*Server, error) {
	if opts.Session == nil {
		return nil, sigilerr.New(sigilerr.CodeMCPRequestInvalid, "session is required")
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sess:   opts.Session,
		logger: logger,
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "graphscope",
			Version: opts.Version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server {
	return s.mcpServer
}

// Run serves the tools over t until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	if err := s.mcpServer.Run(ctx, t); err != nil && ctx.Err() == nil {
		return sigilerr.Wrap(err, sigilerr.CodeMCPServeFailure, "serving mcp tools")
	}
	return nil
}

// Arguments structs

type LoadNodeArgs struct {
	URI    string `json:"uri" jsonschema:"the URI or literal value to load"`
	Hidden bool   `json:"hidden,omitempty" jsonschema:"merge the node without showing it"`
}

type ListPropertiesArgs struct {
	URI     string `json:"uri" jsonschema:"the node whose properties to list"`
	Refresh bool   `json:"refresh,omitempty" jsonschema:"query the endpoint even when already loaded"`
}

type ExpandArgs struct {
	URI      string `json:"uri" jsonschema:"the node to expand"`
	Property string `json:"property" jsonschema:"the property URI to follow"`
	Hidden   bool   `json:"hidden,omitempty" jsonschema:"merge related nodes without showing them"`
}

type SetVisibilityArgs struct {
	URIs    []string `json:"uris" jsonschema:"the nodes to show or hide"`
	Visible bool     `json:"visible" jsonschema:"true to show, false to hide"`
}

type HistoryArgs struct{}

type ViewArgs struct {
	All bool `json:"all,omitempty" jsonschema:"include hidden nodes"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "load_node",
		Description: "Loads a node by URI or literal value, fetching its label and description",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args LoadNodeArgs) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(args.URI) == "" {
			return errorResult("uri is required"), nil, nil
		}
		n, err := s.sess.Graph.LoadNode(ctx, args.URI, !args.Hidden)
		if err != nil {
			return s.failure("load_node", err), nil, nil
		}
		return jsonResult(nodeSummary(n)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_properties",
		Description: "Lists a node's properties with incoming and outgoing counts",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ListPropertiesArgs) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(args.URI) == "" {
			return errorResult("uri is required"), nil, nil
		}
		load := s.sess.Graph.GetProperties
		if args.Refresh {
			load = s.sess.Graph.LoadProperties
		}
		n, err := load(ctx, args.URI, nil)
		if err != nil {
			return s.failure("list_properties", err), nil, nil
		}
		if len(n.Properties) == 0 {
			return textResult(fmt.Sprintf("%s has no properties", n.Label)), nil, nil
		}
		return jsonResult(n.Properties), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "expand",
		Description: "Adds the nodes related to a node through one property",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ExpandArgs) (*mcp.CallToolResult, any, error) {
		if args.URI == "" || args.Property == "" {
			return errorResult("uri and property are required"), nil, nil
		}
		nodes, err := s.sess.Graph.LoadRelatedNodes(ctx, args.URI, args.Property, graph.ExpandOptions{Hidden: args.Hidden})
		if err != nil {
			return s.failure("expand", err), nil, nil
		}
		if len(nodes) == 0 {
			return textResult("no related nodes"), nil, nil
		}
		out := make([]map[string]any, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, nodeSummary(n))
		}
		return jsonResult(out), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_visibility",
		Description: "Shows or hides nodes; the change can be undone",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args SetVisibilityArgs) (*mcp.CallToolResult, any, error) {
		if len(args.URIs) == 0 {
			return errorResult("uris must not be empty"), nil, nil
		}
		apply := s.sess.Graph.HideNodes
		verb := "hidden"
		if args.Visible {
			apply, verb = s.sess.Graph.ShowNodes, "shown"
		}
		if err := apply(ctx, args.URIs); err != nil {
			return s.failure("set_visibility", err), nil, nil
		}
		return textResult(fmt.Sprintf("%d node(s) %s", len(args.URIs), verb)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "undo",
		Description: "Reverts the last visibility change",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ HistoryArgs) (*mcp.CallToolResult, any, error) {
		return s.history(ctx, "undo", s.sess.Graph.Undo), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "redo",
		Description: "Re-applies the next undone visibility change",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ HistoryArgs) (*mcp.CallToolResult, any, error) {
		return s.history(ctx, "redo", s.sess.Graph.Redo), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "view",
		Description: "Describes the graph as currently shown: nodes and labelled edges",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args ViewArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.describe(ctx, args.All)
		if err != nil {
			return s.failure("view", err), nil, nil
		}
		return textResult(text), nil, nil
	})
}

func (s *Server) history(ctx context.Context, name string, step func(context.Context) (bool, error)) *mcp.CallToolResult {
	applied, err := step(ctx)
	if err != nil {
		return s.failure(name, err)
	}
	steps, index, err := s.sess.Graph.HistoryState(ctx)
	if err != nil {
		return s.failure(name, err)
	}
	if !applied {
		return textResult(fmt.Sprintf("nothing to %s (step %d of %d)", name, index, steps))
	}
	return textResult(fmt.Sprintf("%s applied (step %d of %d)", name, index, steps))
}

// describe renders the graph as one line per node followed by one line
// per edge, both in label order.
func (s *Server) describe(ctx context.Context, all bool) (string, error) {
	nodes, err := s.sess.Graph.Nodes(ctx)
	if err != nil {
		return "", err
	}
	edges, err := s.sess.Graph.Edges(ctx)
	if err != nil {
		return "", err
	}

	shown := make(map[string]string, len(nodes))
	nodes = slices.DeleteFunc(nodes, func(n graph.Node) bool { return !all && !n.Visible })
	slices.SortFunc(nodes, func(a, b graph.Node) int { return strings.Compare(a.Label, b.Label) })
	if len(nodes) == 0 {
		return "the graph is empty", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d node(s):\n", len(nodes))
	for _, n := range nodes {
		shown[n.ID] = n.Label
		fmt.Fprintf(&b, "- %s <%s>", n.Label, n.ID)
		if !n.Visible {
			b.WriteString(" (hidden)")
		}
		if n.Fixed {
			b.WriteString(" (locked)")
		}
		b.WriteByte('\n')
	}

	var lines []string
	for _, e := range edges {
		from, okFrom := shown[e.From]
		to, okTo := shown[e.To]
		if !okFrom || !okTo {
			continue
		}
		tail := "-"
		if e.Bidirectional {
			tail = "<-"
		}
		lines = append(lines, fmt.Sprintf("- %s %s[%s]-> %s", from, tail, e.Label, to))
	}
	if len(lines) > 0 {
		slices.Sort(lines)
		fmt.Fprintf(&b, "%d edge(s):\n%s\n", len(lines), strings.Join(lines, "\n"))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	s.logger.Debug("mcp tool failed", "tool", tool, "code", sigilerr.CodeOf(err), "error", err)
	return errorResult(err.Error())
}

func nodeSummary(n graph.Node) map[string]any {
	out := map[string]any{
		"id":      n.ID,
		"label":   n.Label,
		"kind":    n.Kind,
		"visible": n.Visible,
	}
	if n.Description != "" {
		out["description"] = n.Description
	}
	if n.Type != "" {
		out["type"] = n.Type
	}
	return out
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}, IsError: true}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encoding result: %v", err))
	}
	return textResult(string(data))
}
