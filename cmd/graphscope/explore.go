// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/sigil-dev/graphscope/internal/graph"
	"github.com/sigil-dev/graphscope/internal/session"
	"github.com/sigil-dev/graphscope/internal/store"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore <uri>",
		Short: "Load an entity and expand it along properties",
		Long: "Load <uri> from the endpoint, follow each --property, and print the resulting graph as a tree.\n" +
			"Prefixed names such as wd:Q42 and wdt:P31 are expanded.\n\n" +
			"Example: graphscope explore wd:Q42 --property wdt:P31 --property wdt:P106",
		Args: cobra.ExactArgs(1),
		RunE: runExplore,
	}

	cmd.Flags().StringArrayP("property", "p", nil, "property to expand (repeatable)")
	cmd.Flags().String("save", "", "save the explored graph as a named snapshot")

	return cmd
}

// expansion is the result of following one property from the root.
type expansion struct {
	Property string
	Label    string
	Nodes    []graph.Node
}

func runExplore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	properties, _ := cmd.Flags().GetStringArray("property")
	saveAs, _ := cmd.Flags().GetString("save")
	uri := rdf.ExpandURI(strings.TrimSpace(args[0]))
	if uri == "" {
		return sigilerr.New(sigilerr.CodeCLIInputInvalid, "uri must not be empty")
	}

	ex, err := WireExplorer(viper.GetViper(), WireOptions{Snapshots: saveAs != ""})
	if err != nil {
		return err
	}
	defer func() { _ = ex.Close() }()

	sess, err := ex.Sessions.Create(ctx, session.CreateOptions{Name: "explore", Root: uri})
	if err != nil {
		return err
	}

	root, err := sess.Graph.Node(ctx, uri)
	if err != nil {
		return err
	}

	var expansions []expansion
	for _, p := range properties {
		p = rdf.ExpandURI(p)
		nodes, err := sess.Graph.LoadRelatedNodes(ctx, uri, p, graph.ExpandOptions{})
		if err != nil {
			return err
		}
		expansions = append(expansions, expansion{Property: p, Nodes: nodes})
	}
	// Relation discovery between the loaded nodes runs in the background.
	sess.Graph.Wait()

	if root, err = sess.Graph.Node(ctx, uri); err != nil {
		return err
	}
	for i := range expansions {
		expansions[i].Label = propertyLabel(root, expansions[i].Property)
	}
	edges, err := sess.Graph.Edges(ctx)
	if err != nil {
		return err
	}
	nodes, err := sess.Graph.Nodes(ctx)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderExploration(root, expansions, crossEdges(uri, expansions, edges), labelIndex(nodes)))

	if saveAs != "" {
		snap, err := sess.Graph.Snapshot(ctx)
		if err != nil {
			return err
		}
		rec := &store.Record{SnapshotInfo: store.SnapshotInfo{Name: saveAs, Root: uri}, Snapshot: snap}
		if err := ex.Snapshots.Save(ctx, rec); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nSaved snapshot %s (%d nodes, %d edges)\n", rec.ID, rec.NodeCount, rec.EdgeCount)
	}
	return nil
}

func propertyLabel(n graph.Node, uri string) string {
	for _, p := range n.Properties {
		if p.URI == uri && p.Label != "" {
			return p.Label
		}
	}
	return rdf.ShortenURI(uri)
}

func labelIndex(nodes []graph.Node) map[string]string {
	out := make(map[string]string, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n.Label
	}
	return out
}

// crossEdges returns the edges discovered between loaded nodes, leaving out
// the ones the expansions themselves created.
func crossEdges(root string, expansions []expansion, edges []graph.Edge) []graph.Edge {
	expanded := make(map[string]bool, len(expansions))
	for _, e := range expansions {
		expanded[e.Property] = true
	}
	var out []graph.Edge
	for _, e := range edges {
		if expanded[e.Property] && (e.From == root || e.To == root) {
			continue
		}
		out = append(out, e)
	}
	return out
}

var (
	rootStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	propertyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	enumStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
)

// renderExploration draws the root, one branch per expanded property and a
// final branch with the relations found between the loaded nodes.
func renderExploration(root graph.Node, expansions []expansion, edges []graph.Edge, labels map[string]string) string {
	title := rootStyle.Render(root.Label) + " " + dimStyle.Render(rdf.ShortenURI(root.ID))
	if root.Description != "" {
		title += "\n" + dimStyle.Render(root.Description)
	}

	t := tree.Root(title).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(enumStyle)

	for _, e := range expansions {
		branch := tree.Root(propertyStyle.Render(e.Label))
		if len(e.Nodes) == 0 {
			branch.Child(dimStyle.Render("(no related nodes)"))
		}
		for _, n := range e.Nodes {
			branch.Child(nodeLine(n))
		}
		t.Child(branch)
	}

	if len(edges) > 0 {
		lines := make([]string, 0, len(edges))
		for _, e := range edges {
			arrow := "->"
			if e.Bidirectional {
				arrow = "<->"
			}
			lines = append(lines, fmt.Sprintf("%s %s %s %s", labelOf(labels, e.From), propertyStyle.Render(e.Label), arrow, labelOf(labels, e.To)))
		}
		slices.Sort(lines)
		relations := tree.Root(propertyStyle.Render("relations"))
		for _, l := range lines {
			relations.Child(l)
		}
		t.Child(relations)
	}

	return t.String()
}

func nodeLine(n graph.Node) string {
	if n.Kind == graph.KindLiteral {
		return rdf.FormatLiteral(n.ID, n.Datatype, n.Lang)
	}
	return n.Label + " " + dimStyle.Render(rdf.ShortenURI(n.ID))
}

func labelOf(labels map[string]string, id string) string {
	if l, ok := labels[id]; ok && l != "" {
		return l
	}
	return rdf.ShortenURI(id)
}
