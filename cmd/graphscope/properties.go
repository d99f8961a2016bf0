// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sigil-dev/graphscope/internal/resolver"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPropertiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "properties <uri>",
		Short: "List an entity's properties with link counts",
		Long: "Query the endpoint for every property of <uri> and print a table with the number of\n" +
			"outgoing and incoming links per property.",
		Args: cobra.ExactArgs(1),
		RunE: runProperties,
	}

	cmd.Flags().Bool("uris", false, "print full property URIs instead of prefixed names")

	return cmd
}

func runProperties(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	fullURIs, _ := cmd.Flags().GetBool("uris")
	subject := rdf.TermFor(rdf.ExpandURI(strings.TrimSpace(args[0])))
	if subject.Value == "" {
		return sigilerr.New(sigilerr.CodeCLIInputInvalid, "uri must not be empty")
	}

	ex, err := WireExplorer(viper.GetViper(), WireOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = ex.Close() }()

	props := ex.Resolver.FetchProperties(ctx, subject, nil)
	out := cmd.OutOrStdout()
	if len(props) == 0 {
		_, _ = fmt.Fprintf(out, "%s has no properties\n", rdf.FormatTerm(subject))
		return nil
	}
	_, _ = fmt.Fprintln(out, renderProperties(props, fullURIs))
	return nil
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1)

// renderProperties lays properties out as a bordered table in the order
// they were fetched.
func renderProperties(props []resolver.Property, fullURIs bool) string {
	cell := lipgloss.NewStyle().Padding(0, 1)
	count := cell.Align(lipgloss.Right)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("PROPERTY", "LABEL", "OUT", "IN").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 2:
				return count
			default:
				return cell
			}
		})

	for _, p := range props {
		uri := rdf.ShortenURI(p.URI)
		if fullURIs {
			uri = p.URI
		}
		t.Row(uri, p.Label, strconv.Itoa(p.OutCount), strconv.Itoa(p.InCount))
	}
	return t.String()
}
