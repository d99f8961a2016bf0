// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/store"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// snapshotStoreFactory opens the snapshot store. Tests point it at a
// temporary database.
var snapshotStoreFactory = func() (store.SnapshotStore, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return openSnapshotStore(cfg)
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage saved graph snapshots",
		Long:  "List, export, import and delete graphs saved in the local snapshot store.",
	}

	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a snapshot as a compressed, checksummed file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotExport,
	}
	export.Flags().StringP("output", "o", "", "output file (default stdout)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots, newest first",
		RunE:  runSnapshotList,
	}
	list.Flags().Int("limit", 50, "maximum number of snapshots to list")

	cmd.AddCommand(
		list,
		export,
		&cobra.Command{
			Use:   "import <file>",
			Short: "Import a snapshot file written by export (- reads stdin)",
			Args:  cobra.ExactArgs(1),
			RunE:  runSnapshotImport,
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a saved snapshot",
			Args:  cobra.ExactArgs(1),
			RunE:  runSnapshotDelete,
		},
	)

	return cmd
}

// withSnapshotStore opens the store for the duration of fn.
func withSnapshotStore(cmd *cobra.Command, fn func(ctx context.Context, ss store.SnapshotStore) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ss, err := snapshotStoreFactory()
	if err != nil {
		return err
	}
	defer func() { _ = ss.Close() }()
	return fn(ctx, ss)
}

func runSnapshotList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	return withSnapshotStore(cmd, func(ctx context.Context, ss store.SnapshotStore) error {
		infos, err := ss.List(ctx, store.ListOpts{Limit: limit})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(infos) == 0 {
			_, _ = fmt.Fprintln(out, "No snapshots saved.")
			return nil
		}
		_, _ = fmt.Fprintln(out, renderSnapshots(infos))
		return nil
	})
}

func renderSnapshots(infos []store.SnapshotInfo) string {
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "NAME", "NODES", "EDGES", "CREATED").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cell
		})
	for _, info := range infos {
		t.Row(info.ID, info.Name, strconv.Itoa(info.NodeCount), strconv.Itoa(info.EdgeCount), info.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return t.String()
}

func runSnapshotExport(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	return withSnapshotStore(cmd, func(ctx context.Context, ss store.SnapshotStore) error {
		rec, err := ss.Get(ctx, args[0])
		if err != nil {
			return err
		}

		if output == "" || output == "-" {
			return store.Export(cmd.OutOrStdout(), rec)
		}

		f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return sigilerr.Errorf(sigilerr.CodeCLIInputInvalid, "creating %s: %w", output, err)
		}
		if err := store.Export(f, rec); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return sigilerr.Errorf(sigilerr.CodeCLIRequestFailure, "writing %s: %w", output, err)
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Exported snapshot %s to %s\n", rec.ID, output)
		return nil
	})
}

func runSnapshotImport(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return sigilerr.Errorf(sigilerr.CodeCLIInputInvalid, "opening %s: %w", args[0], err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	rec, err := store.Import(r)
	if err != nil {
		return err
	}
	return withSnapshotStore(cmd, func(ctx context.Context, ss store.SnapshotStore) error {
		if err := ss.Save(ctx, rec); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported snapshot %s %q (%d nodes, %d edges)\n", rec.ID, rec.Name, rec.NodeCount, rec.EdgeCount)
		return nil
	})
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	return withSnapshotStore(cmd, func(ctx context.Context, ss store.SnapshotStore) error {
		if err := ss.Delete(ctx, args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted snapshot: %s\n", args[0])
		return nil
	})
}
