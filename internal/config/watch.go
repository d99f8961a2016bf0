// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Source hands out the configuration in effect right now. Callers read a
// fresh snapshot per operation and must not hold on to it.
type Source interface {
	Current() *Config
}

// Static is a Source that never changes.
type Static struct {
	cfg *Config
}

// NewStatic wraps cfg as a Source.
func NewStatic(cfg *Config) *Static {
	return &Static{cfg: cfg}
}

func (s *Static) Current() *Config { return s.cfg }

// Watcher is a Source backed by a viper instance. When the config file
// changes on disk the new content is validated and swapped in atomically;
// an invalid edit is logged and the previous snapshot stays in effect.
type Watcher struct {
	v       *viper.Viper
	current atomic.Pointer[Config]
	logger  *slog.Logger
	hooks   []func(*Config) error

	mu        sync.Mutex
	listeners []func(*Config)
}

// NewWatcher decodes the configuration held by v and returns a Watcher
// serving it. Call Watch to start following file changes. Each hook runs
// on every decoded snapshot before it is served, for example to resolve
// keyring references; a failing hook rejects the snapshot.
func NewWatcher(v *viper.Viper, logger *slog.Logger, hooks ...func(*Config) error) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{v: v, logger: logger, hooks: hooks}
	cfg, err := w.decode()
	if err != nil {
		return nil, err
	}
	w.current.Store(cfg)
	w.logDiagnostics(cfg)
	return w, nil
}

func (w *Watcher) Current() *Config { return w.current.Load() }

func (w *Watcher) decode() (*Config, error) {
	cfg, err := FromViper(w.v)
	if err != nil {
		return nil, err
	}
	for _, hook := range w.hooks {
		if err := hook(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// OnChange registers fn to run after every accepted reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Watch starts following the config file. It is a no-op when no file was read.
func (w *Watcher) Watch() {
	if w.v.ConfigFileUsed() == "" {
		return
	}
	w.v.OnConfigChange(w.handleChange)
	w.v.WatchConfig()
}

func (w *Watcher) handleChange(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	w.Reload(e.Name)
}

// Reload re-decodes the viper state and swaps it in when valid.
func (w *Watcher) Reload(source string) bool {
	cfg, err := w.decode()
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous settings", "file", source, "error", err)
		return false
	}

	w.current.Store(cfg)
	w.logger.Info("config reloaded", "file", source)
	w.logDiagnostics(cfg)

	w.mu.Lock()
	listeners := append([]func(*Config){}, w.listeners...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return true
}

func (w *Watcher) logDiagnostics(cfg *Config) {
	for _, d := range cfg.Diagnostics() {
		w.logger.Warn("config diagnostic", "detail", d)
	}
}
