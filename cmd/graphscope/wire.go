// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/relations"
	"github.com/sigil-dev/graphscope/internal/resolver"
	"github.com/sigil-dev/graphscope/internal/secrets"
	"github.com/sigil-dev/graphscope/internal/session"
	"github.com/sigil-dev/graphscope/internal/sparql"
	"github.com/sigil-dev/graphscope/internal/store"
	_ "github.com/sigil-dev/graphscope/internal/store/sqlite" // register sqlite backend
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/spf13/viper"
)

// Explorer holds the wired subsystems shared by every session of one process.
type Explorer struct {
	Config    *config.Watcher
	Client    *sparql.Client
	Resolver  *resolver.Resolver
	Relations *relations.Fetcher
	Sessions  *session.Manager
	Snapshots store.SnapshotStore
}

// WireOptions selects what WireExplorer builds.
type WireOptions struct {
	Secrets secrets.Store
	Logger  *slog.Logger
	// Snapshots opens the snapshot store under the data directory.
	Snapshots bool
}

// WireExplorer decodes the configuration held by v and builds the query
// client, resolvers and session manager on top of it.
func WireExplorer(v *viper.Viper, opts WireOptions) (*Explorer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Secrets == nil {
		opts.Secrets = secretStoreFactory()
	}

	cfgPath := v.ConfigFileUsed()
	watcher, err := config.NewWatcher(v, logger,
		func(cfg *config.Config) error {
			config.WarnExposedToken(cfgPath, cfg)
			return nil
		},
		secrets.ConfigResolver(opts.Secrets),
	)
	if err != nil {
		return nil, err
	}

	client, err := sparql.NewClient(sparql.Options{Config: watcher, Logger: logger})
	if err != nil {
		return nil, sigilerr.Wrap(err, sigilerr.CodeCLISetupFailure, "creating sparql client")
	}

	res, err := resolver.New(resolver.Options{Client: client, Config: watcher, Logger: logger})
	if err != nil {
		client.Close()
		return nil, sigilerr.Wrap(err, sigilerr.CodeCLISetupFailure, "creating resolver")
	}

	rel, err := relations.New(relations.Options{Client: client, Labels: res, Config: watcher, Logger: logger})
	if err != nil {
		client.Close()
		return nil, sigilerr.Wrap(err, sigilerr.CodeCLISetupFailure, "creating relation fetcher")
	}

	sessions, err := session.NewManager(session.Options{
		Config:    watcher,
		Resolver:  res,
		Relations: rel,
		Logger:    logger,
	})
	if err != nil {
		client.Close()
		return nil, sigilerr.Wrap(err, sigilerr.CodeCLISetupFailure, "creating session manager")
	}

	ex := &Explorer{
		Config:    watcher,
		Client:    client,
		Resolver:  res,
		Relations: rel,
		Sessions:  sessions,
	}

	if opts.Snapshots {
		ex.Snapshots, err = openSnapshotStore(watcher.Current())
		if err != nil {
			_ = ex.Close()
			return nil, err
		}
	}
	return ex, nil
}

// openSnapshotStore opens the configured backend, creating the data
// directory first.
func openSnapshotStore(cfg *config.Config) (store.SnapshotStore, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}
	ss, err := store.NewSnapshotStore(&cfg.Storage, dataDir)
	if err != nil {
		return nil, sigilerr.Wrap(err, sigilerr.CodeCLISetupFailure, "opening snapshot store")
	}
	return ss, nil
}

// Close stops every session, releases queries waiting on the rate limit and
// closes the snapshot store.
func (ex *Explorer) Close() error {
	ex.Sessions.CloseAll()
	ex.Client.Close()

	var errs []error
	if ex.Snapshots != nil {
		if err := ex.Snapshots.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
